package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/worktree"
)

// runPick cherry-picks the instruction's commit and commits it verbatim,
// reusing its original message and author. A conflicting cherry-pick or a
// failing commit (e.g. a rejecting pre-commit hook) both pause the run the
// same way, since either leaves work the user must resolve by hand.
func (e *Executor) runPick(ctx context.Context, in *todo.Instruction, peekOp todo.Op, hasPeek bool) (Result, error) {
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
	author, err := e.Oracle.CommitAuthor(ctx, in.Commit)
	if err != nil {
		return Result{}, fmt.Errorf("author of %v: %w", in.Commit, err)
	}

	newID, err := e.Worktree.Commit(ctx, worktree.CommitOptions{
		Message: msg,
		Author:  &author,
	})
	if err != nil {
		return e.pauseConflict(ctx, in.Commit, err)
	}

	if err := e.RecordRewritten(in.Commit, newID, peekOp, hasPeek); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusContinue}, nil
}
