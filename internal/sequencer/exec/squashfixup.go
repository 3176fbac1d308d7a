package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/worktree"
)

// runSquashFixup cherry-picks the instruction's commit into the index
// without committing, folds its message into the accumulating coalesced
// message via Coalesce, and -- once lookahead shows the run has ended --
// creates the single combined commit.
func (e *Executor) runSquashFixup(ctx context.Context, in *todo.Instruction, peekOp todo.Op, hasPeek bool) (Result, error) {
	if err := e.cherryPick(ctx, in.Commit); err != nil {
		if errors.Is(err, worktree.ErrConflict) {
			if aerr := e.Coalesce.Abort(); aerr != nil {
				return Result{}, fmt.Errorf("abort coalesce: %w", aerr)
			}
			return e.pauseConflict(ctx, in.Commit, err)
		}
		return Result{}, fmt.Errorf("cherry-pick %v: %w", in.Commit, err)
	}

	head, err := e.Worktree.Head(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("head: %w", err)
	}
	headMsg, err := e.Oracle.Message(ctx, head)
	if err != nil {
		return Result{}, fmt.Errorf("message of %v: %w", head, err)
	}
	commitMsg, err := e.Oracle.Message(ctx, in.Commit)
	if err != nil {
		return Result{}, fmt.Errorf("message of %v: %w", in.Commit, err)
	}
	if err := e.Coalesce.Enter(headMsg, commitMsg, in.Op); err != nil {
		return Result{}, fmt.Errorf("coalesce: %w", err)
	}

	continuesRun := hasPeek && (peekOp == todo.OpSquash || peekOp == todo.OpFixup)
	if continuesRun {
		// This commit isn't final yet -- it will be folded into whichever
		// squash/fixup ends the run, so only its pending mapping is
		// recorded; newHead is unused on this path.
		if err := e.RecordRewritten(in.Commit, oracle.ZeroID, peekOp, hasPeek); err != nil {
			return Result{}, err
		}
		return Result{Status: StatusContinue}, nil
	}

	final, err := e.Coalesce.Finalize()
	if err != nil {
		return Result{}, fmt.Errorf("finalize coalesce: %w", err)
	}
	if err := e.Store.SetMessage(final.Message); err != nil {
		return Result{}, fmt.Errorf("set message: %w", err)
	}
	if final.Edit && e.Editor != nil {
		if err := e.Editor.Open(ctx, e.Store.MessagePath()); err != nil {
			return Result{}, fmt.Errorf("open editor: %w", err)
		}
	}
	edited, err := e.Store.Message()
	if err != nil {
		return Result{}, fmt.Errorf("read final message: %w", err)
	}

	commitAuthor, err := e.Oracle.CommitAuthor(ctx, in.Commit)
	if err != nil {
		return Result{}, fmt.Errorf("author of %v: %w", in.Commit, err)
	}

	newID, err := e.Worktree.Commit(ctx, worktree.CommitOptions{
		Amend:    true,
		Message:  edited,
		NoVerify: final.NoVerify,
		Author:   &commitAuthor,
	})
	if err != nil {
		if aerr := e.Coalesce.Abort(); aerr != nil {
			return Result{}, fmt.Errorf("abort coalesce: %w", aerr)
		}
		return e.pauseConflict(ctx, in.Commit, err)
	}

	if err := e.Coalesce.Cleanup(); err != nil {
		return Result{}, fmt.Errorf("cleanup coalesce: %w", err)
	}
	if err := e.Store.ClearMessage(); err != nil {
		return Result{}, fmt.Errorf("clear message: %w", err)
	}
	if err := e.RecordRewritten(in.Commit, newID, peekOp, hasPeek); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusContinue}, nil
}
