// Package xerrors defines the error taxonomy the sequencer reports to its
// driver: conflicts, deliberate pauses, precondition failures, malformed
// todo files, and unrecoverable state corruption.
package xerrors

import (
	"errors"
	"fmt"

	"github.com/gitseq/sequencer/internal/oracle"
)

// ErrConflict indicates a cherry-pick or merge could not be applied
// cleanly. Recoverable via `continue` (after the user resolves conflicts)
// or `skip`.
var ErrConflict = errors.New("conflict: resolve and run continue, or run skip")

// ErrExpectedPause indicates the current instruction (edit, or exec with a
// dirty worktree) intentionally stopped the run. Recoverable via
// `continue`.
var ErrExpectedPause = errors.New("paused for user action")

// ErrAmendRequired indicates `continue` was invoked with staged changes
// but no recorded AuthorScript, so the engine cannot tell whether to amend
// or create a new commit.
var ErrAmendRequired = errors.New("commit the staged changes, or run continue again once you have")

// MalformedTodoError indicates the todo file contains an instruction the
// parser cannot interpret.
type MalformedTodoError struct {
	Line string
	Err  error
}

func (e *MalformedTodoError) Error() string {
	return fmt.Sprintf("malformed instruction %q: %v (use rebase edit-todo to fix it)", e.Line, e.Err)
}

func (e *MalformedTodoError) Unwrap() error { return e.Err }

// PreconditionError indicates a start/continue/skip/abort precondition was
// not met: missing identity, missing HEAD, or an already-existing state
// directory. The engine aborts without touching working state. A label
// collision is reported as [LabelCollisionError] instead.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// FatalStateError indicates the persisted state could not be read or is
// internally inconsistent. The engine prefers to abort cleanly, but the
// caller may need to inspect the state directory by hand.
type FatalStateError struct {
	Path string
	Err  error
}

func (e *FatalStateError) Error() string {
	return fmt.Sprintf("corrupt state at %s: %v", e.Path, e.Err)
}

func (e *FatalStateError) Unwrap() error { return e.Err }

// UnknownInstructionError indicates an opcode token did not match any
// known instruction, and the token also does not resolve as a commit, so
// there is no fallback conflict-pause behavior available.
type UnknownInstructionError struct {
	Opcode string
}

func (e *UnknownInstructionError) Error() string {
	return fmt.Sprintf("unknown instruction: %q", e.Opcode)
}

// LabelCollisionError indicates a `label` instruction named a label that
// already exists in the LabelMap.
type LabelCollisionError struct {
	Name string
}

func (e *LabelCollisionError) Error() string {
	return fmt.Sprintf("label %q already exists", e.Name)
}

// MissingLabelError indicates a `goto` instruction, or a parent of a
// `merge` instruction, referenced a label that was never defined.
type MissingLabelError struct {
	Name string
}

func (e *MissingLabelError) Error() string {
	return fmt.Sprintf("no such label: %q", e.Name)
}

// ConflictedCommitError decorates ErrConflict with the commit that failed
// to apply, for user-facing messages.
type ConflictedCommitError struct {
	Commit oracle.ID
	Err    error
}

func (e *ConflictedCommitError) Error() string {
	return fmt.Sprintf("could not apply %v: %v", e.Commit.Short(), e.Err)
}

func (e *ConflictedCommitError) Unwrap() error { return errors.Join(ErrConflict, e.Err) }
