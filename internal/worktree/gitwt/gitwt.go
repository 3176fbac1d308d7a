// Package gitwt adapts a real Git working tree to [worktree.Worktree] by
// shelling out to git, mirroring internal/git's *_wt.go files.
package gitwt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/worktree"
)

// Worktree implements [worktree.Worktree] against a real checkout.
type Worktree struct {
	dir string
	git string
}

var _ worktree.Worktree = (*Worktree)(nil)

// New returns a Worktree rooted at dir.
func New(dir string) (*Worktree, error) {
	git, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("find git: %w", err)
	}
	return &Worktree{dir: dir, git: git}, nil
}

func (w *Worktree) cmd(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, w.git, args...)
	cmd.Dir = w.dir
	return cmd
}

func (w *Worktree) run(ctx context.Context, args ...string) (string, error) {
	cmd := w.cmd(ctx, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(out.String()), nil
}

// CherryPick implements [worktree.Worktree].
func (w *Worktree) CherryPick(ctx context.Context, id oracle.ID, opts worktree.CherryPickOptions) error {
	if opts.FastForward {
		ff, err := w.canFastForward(ctx, id)
		if err != nil {
			return fmt.Errorf("check fast-forward eligibility of %v: %w", id, err)
		}
		if ff {
			if _, err := w.run(ctx, "read-tree", "-u", "--reset", id.String()); err != nil {
				return fmt.Errorf("fast-forward read-tree %v: %w", id, err)
			}
			return nil
		}
	}

	args := []string{"cherry-pick", "--no-commit"}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty", "--keep-redundant-commits")
	}
	args = append(args, id.String())
	if _, err := w.run(ctx, args...); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %v", worktree.ErrConflict, err)
		}
		return fmt.Errorf("cherry-pick %v: %w", id, err)
	}
	return nil
}

// canFastForward reports whether HEAD already equals id's first parent,
// meaning id's whole tree can be staged directly instead of computing and
// reapplying its diff. A commit with no parent (the root) is never
// fast-forward eligible.
func (w *Worktree) canFastForward(ctx context.Context, id oracle.ID) (bool, error) {
	head, err := w.Head(ctx)
	if err != nil {
		return false, err
	}
	parent, err := w.run(ctx, "rev-parse", "--verify", "-q", id.String()+"^")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, err
	}
	return head == oracle.ID(parent), nil
}

// Commit implements [worktree.Worktree].
func (w *Worktree) Commit(ctx context.Context, opts worktree.CommitOptions) (oracle.ID, error) {
	args := []string{"commit"}
	if opts.Amend {
		args = append(args, "--amend")
	}
	if opts.NoVerify {
		args = append(args, "--no-verify")
	}
	switch {
	case opts.MessageFile != "":
		args = append(args, "-F", opts.MessageFile)
	case opts.Message != "":
		args = append(args, "-m", opts.Message)
	case opts.Amend:
		args = append(args, "--no-edit")
	}
	if opts.Edit {
		args = append(args, "--edit")
	} else {
		args = append(args, "--no-edit")
	}
	if opts.Author != nil {
		args = append(args,
			fmt.Sprintf("--author=%s <%s>", opts.Author.Name, opts.Author.Email))
		if opts.Author.Date != "" {
			args = append(args, "--date="+opts.Author.Date)
		}
	}

	cmd := w.cmd(ctx, args...)
	if opts.Edit {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	} else {
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("commit: %w: %s", err, stderr.String())
		}
	}

	return w.Head(ctx)
}

// Checkout implements [worktree.Worktree].
func (w *Worktree) Checkout(ctx context.Context, id oracle.ID, detach bool) error {
	args := []string{"checkout"}
	if detach {
		args = append(args, "--detach")
	}
	args = append(args, id.String())
	if _, err := w.run(ctx, args...); err != nil {
		return fmt.Errorf("checkout %v: %w", id, err)
	}
	return nil
}

// Merge implements [worktree.Worktree].
func (w *Worktree) Merge(ctx context.Context, opts worktree.MergeOptions) (oracle.ID, error) {
	args := []string{"merge", "--no-ff", "-m", opts.Message}
	for _, p := range opts.Parents {
		args = append(args, p.String())
	}
	if _, err := w.run(ctx, args...); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %v", worktree.ErrConflict, err)
		}
		return "", fmt.Errorf("merge: %w", err)
	}
	return w.Head(ctx)
}

// IsClean implements [worktree.Worktree].
func (w *Worktree) IsClean(ctx context.Context) (bool, error) {
	out, err := w.run(ctx, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}
	return out == "", nil
}

// Diff implements [worktree.Worktree].
func (w *Worktree) Diff(ctx context.Context) (string, error) {
	out, err := w.run(ctx, "diff", "HEAD")
	if err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}
	return out, nil
}

// Rerere implements [worktree.Worktree].
func (w *Worktree) Rerere(ctx context.Context) error {
	if _, err := w.run(ctx, "rerere", "forget", "."); err != nil {
		return fmt.Errorf("rerere forget: %w", err)
	}
	return nil
}

// Head implements [worktree.Worktree].
func (w *Worktree) Head(ctx context.Context) (oracle.ID, error) {
	out, err := w.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	return oracle.ID(out), nil
}

// CurrentBranch reports the branch HEAD is currently on, or ok=false if
// HEAD is detached. Exported beyond [worktree.Worktree] because it is only
// the driving command's concern: the engine itself is told the head name
// to restore to, rather than discovering it.
func (w *Worktree) CurrentBranch(ctx context.Context) (name string, ok bool, err error) {
	out, err := w.run(ctx, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("symbolic-ref: %w", err)
	}
	return out, true, nil
}

// UpdateRef implements [worktree.Worktree].
func (w *Worktree) UpdateRef(ctx context.Context, name string, id oracle.ID) error {
	ref := name
	if !strings.HasPrefix(ref, "refs/") {
		ref = "refs/heads/" + ref
	}
	if _, err := w.run(ctx, "update-ref", ref, id.String()); err != nil {
		return fmt.Errorf("update-ref %s: %w", ref, err)
	}
	return nil
}

// Identity implements [worktree.Worktree]. It defers to `git var
// GIT_COMMITTER_IDENT`, the same resolution git itself performs before
// creating a commit (config, then environment, then a passwd/hostname
// guess), so a run never gets partway through before discovering it has
// no way to attribute the commits it creates.
func (w *Worktree) Identity(ctx context.Context) error {
	if _, err := w.run(ctx, "var", "GIT_COMMITTER_IDENT"); err != nil {
		return fmt.Errorf("committer identity: %w", err)
	}
	return nil
}
