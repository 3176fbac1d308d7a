package exec

import (
	"context"
	"fmt"

	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/sequencer/xerrors"
)

// runLabel records the current HEAD under the instruction's name, for a
// later goto, or a merge naming it as a parent, to resolve against.
func (e *Executor) runLabel(ctx context.Context, in *todo.Instruction) (Result, error) {
	head, err := e.Worktree.Head(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("head: %w", err)
	}
	if err := e.Store.SetLabel(in.Name, head); err != nil {
		return Result{}, &xerrors.LabelCollisionError{Name: in.Name}
	}
	return Result{Status: StatusContinue}, nil
}
