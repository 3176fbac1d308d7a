// Package worktree defines the write-side external collaborator the
// sequencer drives to actually move the working tree, index, and HEAD:
// cherry-pick, commit, checkout, merge, and the conflict/cleanliness
// probes the executor needs to decide whether to pause.
package worktree

import (
	"context"
	"errors"

	"github.com/gitseq/sequencer/internal/oracle"
)

// ErrConflict is returned by CherryPick or Merge when the operation could
// not complete because of a conflicting change. The worktree and index are
// left in the conflicted state for the user (or their tool of choice) to
// resolve.
var ErrConflict = errors.New("conflict")

// CherryPickOptions configures a cherry-pick.
type CherryPickOptions struct {
	// AllowEmpty permits cherry-picking a commit whose tree equals its
	// first parent's tree (i.e. would otherwise produce an empty commit).
	AllowEmpty bool

	// FastForward allows a fast-forward instead of an actual cherry-pick
	// when HEAD already equals the commit's first parent.
	FastForward bool
}

// CommitOptions configures creating or amending a commit.
type CommitOptions struct {
	// Amend rewrites HEAD instead of creating a new commit.
	Amend bool

	// NoVerify skips pre-commit and commit-msg hooks.
	NoVerify bool

	// MessageFile, if set, is a path to read the commit message from.
	MessageFile string

	// Message is used instead of MessageFile when both are empty-file
	// free; if both are empty the previous message (on amend) is reused.
	Message string

	// Edit opens the configured editor on the message before committing.
	Edit bool

	// Author, if set, overrides the commit's authorship -- used to
	// restore an AuthorScript captured before a pause.
	Author *oracle.Author
}

// MergeOptions configures a non-fast-forward merge of one or more parents.
type MergeOptions struct {
	// Parents to merge into HEAD. HEAD itself is always the first parent
	// of the resulting merge commit.
	Parents []oracle.ID

	// Message is the merge commit's message.
	Message string
}

// Worktree is driven by the executor to mutate the working tree, index,
// and HEAD one instruction at a time.
type Worktree interface {
	// CherryPick replays the diff of id onto HEAD.
	// Returns ErrConflict if the pick could not apply cleanly.
	CherryPick(ctx context.Context, id oracle.ID, opts CherryPickOptions) error

	// Commit creates or amends a commit from the current index.
	// Returns the new commit's ID.
	Commit(ctx context.Context, opts CommitOptions) (oracle.ID, error)

	// Checkout moves HEAD to id. If detach is true, HEAD becomes
	// detached; otherwise id must name a branch.
	Checkout(ctx context.Context, id oracle.ID, detach bool) error

	// Merge performs a non-fast-forward merge of opts.Parents into HEAD.
	// Returns ErrConflict if the merge could not complete cleanly.
	Merge(ctx context.Context, opts MergeOptions) (oracle.ID, error)

	// IsClean reports whether the working tree and index have no pending
	// changes relative to HEAD.
	IsClean(ctx context.Context) (bool, error)

	// Diff returns a unified diff of the current conflicted state, for
	// materializing the `patch` artifact on a pause.
	Diff(ctx context.Context) (string, error)

	// Rerere clears any cached conflict-resolution state, invoked by
	// the `skip` entry point before resuming the executor loop.
	Rerere(ctx context.Context) error

	// Head reports the commit HEAD currently points to.
	Head(ctx context.Context) (oracle.ID, error)

	// UpdateRef points the branch named name at id, creating it if
	// necessary. Used only by finalisation to land the rebased branch
	// on its new tip; the engine never otherwise touches the ref
	// database, which is an external collaborator per the spec.
	UpdateRef(ctx context.Context, name string, id oracle.ID) error

	// Identity reports an error if no committer identity can be
	// determined (name/email unconfigured and unguessable from the
	// environment). Checked once, at start, so a run that would fail on
	// its very first commit aborts before creating any state.
	Identity(ctx context.Context) error
}
