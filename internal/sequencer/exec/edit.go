package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitseq/sequencer/internal/author"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/worktree"
)

// runEdit cherry-picks and commits the instruction's commit verbatim, like
// runPick, then deliberately pauses so the user can amend it by hand. The
// commit it just created is recorded as the AmendMarker; ResumeEdit
// finishes the bookkeeping once the user continues.
func (e *Executor) runEdit(ctx context.Context, in *todo.Instruction) (Result, error) {
	if err := e.cherryPick(ctx, in.Commit); err != nil {
		if errors.Is(err, worktree.ErrConflict) {
			return e.pauseConflict(ctx, in.Commit, err)
		}
		return Result{}, fmt.Errorf("cherry-pick %v: %w", in.Commit, err)
	}

	msg, err := e.Oracle.Message(ctx, in.Commit)
	if err != nil {
		return Result{}, fmt.Errorf("message of %v: %w", in.Commit, err)
	}
	commitAuthor, err := e.Oracle.CommitAuthor(ctx, in.Commit)
	if err != nil {
		return Result{}, fmt.Errorf("author of %v: %w", in.Commit, err)
	}

	newID, err := e.Worktree.Commit(ctx, worktree.CommitOptions{
		Message: msg,
		Author:  &commitAuthor,
	})
	if err != nil {
		return e.pauseConflict(ctx, in.Commit, err)
	}

	if err := e.Store.SetAmend(newID); err != nil {
		return Result{}, fmt.Errorf("set amend: %w", err)
	}
	// StoppedSHA records the *original* commit being edited, distinct
	// from the AmendMarker (the interim commit just created above): the
	// rewritten-list mapping ResumeEdit records must be original->final,
	// not interim->final.
	if err := e.Store.SetStoppedSHA(in.Commit); err != nil {
		return Result{}, fmt.Errorf("set stopped-sha: %w", err)
	}
	if err := author.Write(e.Store.AuthorScriptPath(), commitAuthor); err != nil {
		return Result{}, fmt.Errorf("write author script: %w", err)
	}
	return Result{Status: StatusPaused, ExitCode: 0}, nil
}

// ResumeEdit completes the bookkeeping for an edit pause: called once the
// user's amend (or decision not to amend) has left the worktree clean
// again, before the control loop resumes Step. StoppedSHA records the
// original commit being finished; the current HEAD is its final form,
// whether that's the interim commit runEdit created (untouched) or a
// further amend on top of it.
func (e *Executor) ResumeEdit(ctx context.Context) error {
	old, err := e.Store.StoppedSHA()
	if err != nil {
		return fmt.Errorf("read stopped-sha: %w", err)
	}
	newID, err := e.Worktree.Head(ctx)
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}

	prog, err := e.Store.ReadTodo()
	if err != nil {
		return fmt.Errorf("read todo: %w", err)
	}
	peekOp, hasPeek := todo.NewCursor(prog).PeekNextCommand()

	if err := e.RecordRewritten(old, newID, peekOp, hasPeek); err != nil {
		return err
	}
	return e.Store.ClearAmend()
}
