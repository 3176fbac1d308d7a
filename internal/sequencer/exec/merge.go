package exec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/sequencer/xerrors"
	"github.com/gitseq/sequencer/internal/worktree"
)

// runMerge replays a merge commit by merging its resolved parents into
// HEAD. Parents that are labels resolve against the run's LabelMap;
// parents outside the rebased set are literal commit ids.
func (e *Executor) runMerge(ctx context.Context, in *todo.Instruction, peekOp todo.Op, hasPeek bool) (Result, error) {
	parents := make([]oracle.ID, len(in.MergeParents))
	for i, ref := range in.MergeParents {
		if !ref.IsLabel() {
			parents[i] = ref.Commit
			continue
		}
		id, ok, err := e.Store.Label(ref.Label)
		if err != nil {
			return Result{}, fmt.Errorf("read label %q: %w", ref.Label, err)
		}
		if !ok {
			return Result{}, &xerrors.MissingLabelError{Name: ref.Label}
		}
		parents[i] = id
	}

	// source is the commit whose identity stands in for this merge in
	// conflict capture and rewritten bookkeeping: the instruction's own
	// commit when -c named one, else the last resolved parent.
	source := in.MergeCommit
	if !in.HasMergeCommit && len(parents) > 0 {
		source = parents[len(parents)-1]
	}

	// The message itself comes from the original merge commit's own body
	// when one was recorded (-c); otherwise there is no single commit to
	// take it from, so a generic "Merge <parents>" message is synthesized
	// instead (see DESIGN.md Open Questions).
	var msg string
	var err error
	switch {
	case in.HasMergeCommit && !in.MergeCommit.IsZero():
		msg, err = e.Oracle.Message(ctx, in.MergeCommit)
		if err != nil {
			return Result{}, fmt.Errorf("merge message of %v: %w", in.MergeCommit, err)
		}
	case len(parents) > 0:
		shortIDs := make([]string, len(parents))
		for i, p := range parents {
			short, serr := e.Oracle.Short(ctx, p)
			if serr != nil {
				return Result{}, fmt.Errorf("short id of %v: %w", p, serr)
			}
			shortIDs[i] = short
		}
		msg = "Merge " + strings.Join(shortIDs, ", ")
	}

	newID, err := e.Worktree.Merge(ctx, worktree.MergeOptions{Parents: parents, Message: msg})
	if err != nil {
		if errors.Is(err, worktree.ErrConflict) {
			return e.pauseConflict(ctx, source, err)
		}
		return Result{}, fmt.Errorf("merge: %w", err)
	}

	if !source.IsZero() {
		if err := e.RecordRewritten(source, newID, peekOp, hasPeek); err != nil {
			return Result{}, err
		}
	}
	return Result{Status: StatusContinue}, nil
}
