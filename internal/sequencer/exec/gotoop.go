package exec

import (
	"context"
	"fmt"

	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/sequencer/xerrors"
)

// runGoto moves HEAD to the commit recorded under the instruction's label,
// resuming the build of whichever line that label marks.
func (e *Executor) runGoto(ctx context.Context, in *todo.Instruction) (Result, error) {
	target, ok, err := e.Store.Label(in.Name)
	if err != nil {
		return Result{}, fmt.Errorf("read label %q: %w", in.Name, err)
	}
	if !ok {
		return Result{}, &xerrors.MissingLabelError{Name: in.Name}
	}
	if err := e.Worktree.Checkout(ctx, target, true); err != nil {
		return Result{}, fmt.Errorf("checkout label %q: %w", in.Name, err)
	}
	return Result{Status: StatusContinue}, nil
}
