package control

import (
	"context"

	"github.com/gitseq/sequencer/internal/sequencer/xerrors"
)

// Abort deletes the run's persisted state. Restoring the worktree to
// orig_head is the driving command's job: WorktreeOps exposes no reset
// primitive, only the cherry-pick/commit/checkout/merge operations the
// executor itself needs.
func (s *Service) Abort(ctx context.Context) error {
	if !s.Store.Exists() {
		return &xerrors.PreconditionError{Reason: "no rebase in progress"}
	}
	return s.Store.Remove()
}
