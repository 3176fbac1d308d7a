package control

import (
	"context"
	"fmt"

	"github.com/gitseq/sequencer/internal/sequencer/exec"
	"github.com/gitseq/sequencer/internal/sequencer/xerrors"
)

// Skip abandons whatever the run is currently paused on and resumes the
// executor loop. Any rerere-cached resolution for the abandoned conflict
// is forgotten, so it cannot leak into a later instruction's cherry-pick.
func (s *Service) Skip(ctx context.Context) (exec.Result, error) {
	if !s.Store.Exists() {
		return exec.Result{}, &xerrors.PreconditionError{Reason: "no rebase in progress"}
	}

	if err := s.Worktree.Rerere(ctx); err != nil {
		return exec.Result{}, fmt.Errorf("forget rerere state: %w", err)
	}
	if err := s.Store.ClearStoppedSHA(); err != nil {
		return exec.Result{}, fmt.Errorf("clear stopped-sha: %w", err)
	}
	if err := s.Store.ClearMessage(); err != nil {
		return exec.Result{}, fmt.Errorf("clear message: %w", err)
	}

	return s.runLoop(ctx)
}
