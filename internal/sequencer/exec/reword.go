package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/worktree"
)

// runReword is runPick with the commit message routed through the
// configured editor before committing: the message is seeded into the
// message scratch file, opened for hand-editing, then read back.
func (e *Executor) runReword(ctx context.Context, in *todo.Instruction, peekOp todo.Op, hasPeek bool) (Result, error) {
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
	if err := e.Store.SetMessage(msg); err != nil {
		return Result{}, fmt.Errorf("set message: %w", err)
	}
	if e.Editor != nil {
		if err := e.Editor.Open(ctx, e.Store.MessagePath()); err != nil {
			return Result{}, fmt.Errorf("open editor: %w", err)
		}
	}
	edited, err := e.Store.Message()
	if err != nil {
		return Result{}, fmt.Errorf("read edited message: %w", err)
	}

	author, err := e.Oracle.CommitAuthor(ctx, in.Commit)
	if err != nil {
		return Result{}, fmt.Errorf("author of %v: %w", in.Commit, err)
	}

	newID, err := e.Worktree.Commit(ctx, worktree.CommitOptions{
		Message: edited,
		Author:  &author,
	})
	if err != nil {
		return e.pauseConflict(ctx, in.Commit, err)
	}

	if err := e.Store.ClearMessage(); err != nil {
		return Result{}, fmt.Errorf("clear message: %w", err)
	}
	if err := e.RecordRewritten(in.Commit, newID, peekOp, hasPeek); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusContinue}, nil
}
