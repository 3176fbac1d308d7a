package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitseq/sequencer/internal/author"
	"github.com/gitseq/sequencer/internal/sequencer/exec"
	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/sequencer/xerrors"
	"github.com/gitseq/sequencer/internal/worktree"
)

// Continue resumes a paused rebase. If the index holds staged changes, it
// finishes the commit the pause was waiting on -- amending, if the pause
// was an edit whose AmendMarker still equals HEAD, or creating a new
// commit otherwise -- sourcing authorship from the AuthorScript, then
// completes the rewritten bookkeeping for it before resuming the executor
// loop.
func (s *Service) Continue(ctx context.Context) (exec.Result, error) {
	if !s.Store.Exists() {
		return exec.Result{}, &xerrors.PreconditionError{Reason: "no rebase in progress"}
	}

	clean, err := s.Worktree.IsClean(ctx)
	if err != nil {
		return exec.Result{}, fmt.Errorf("check worktree: %w", err)
	}

	if !clean {
		if err := s.finishPausedCommit(ctx); err != nil {
			return exec.Result{}, err
		}

		clean, err = s.Worktree.IsClean(ctx)
		if err != nil {
			return exec.Result{}, fmt.Errorf("check worktree: %w", err)
		}
		if !clean {
			return exec.Result{}, &xerrors.PreconditionError{Reason: "worktree still has unstaged changes"}
		}
	} else if err := s.finishCleanEditPause(ctx); err != nil {
		return exec.Result{}, err
	}

	return s.runLoop(ctx)
}

// finishCleanEditPause finalises an edit pause the user resolved without
// ever dirtying the index: either they left runEdit's commit as-is, or
// they amended it directly with their own `git commit --amend` instead of
// staging changes for finishPausedCommit to fold in. Either way HEAD is
// already the edited commit's final form; only the rewritten-list
// bookkeeping and pause state remain.
func (s *Service) finishCleanEditPause(ctx context.Context) error {
	if _, err := s.Executor.Store.Amend(); err != nil {
		if errors.Is(err, state.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read amend marker: %w", err)
	}

	if err := s.Executor.ResumeEdit(ctx); err != nil {
		return fmt.Errorf("resume edit: %w", err)
	}
	return s.Store.ClearStoppedSHA()
}

// finishPausedCommit commits (or amends) the index a pause left staged,
// then records the result in the rewritten bookkeeping.
func (s *Service) finishPausedCommit(ctx context.Context) error {
	a, err := author.Read(s.Store.AuthorScriptPath())
	if err != nil {
		return xerrors.ErrAmendRequired
	}

	head, err := s.Worktree.Head(ctx)
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}
	amendMarker, amendErr := s.Executor.Store.Amend()
	isAmend := amendErr == nil && amendMarker == head

	msg, err := s.Store.Message()
	if err != nil && !errors.Is(err, state.ErrNotExist) {
		return fmt.Errorf("read message: %w", err)
	}

	if _, err := s.Worktree.Commit(ctx, worktree.CommitOptions{
		Amend:   isAmend,
		Message: msg,
		Author:  &a,
	}); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if isAmend {
		if err := s.Executor.ResumeEdit(ctx); err != nil {
			return fmt.Errorf("resume edit: %w", err)
		}
	} else if stopped, serr := s.Store.StoppedSHA(); serr == nil {
		newHead, err := s.Worktree.Head(ctx)
		if err != nil {
			return fmt.Errorf("head: %w", err)
		}
		prog, err := s.Store.ReadTodo()
		if err != nil {
			return fmt.Errorf("read todo: %w", err)
		}
		peekOp, hasPeek := todo.NewCursor(prog).PeekNextCommand()
		if err := s.Executor.RecordRewritten(stopped, newHead, peekOp, hasPeek); err != nil {
			return err
		}
	}

	if err := s.Store.ClearStoppedSHA(); err != nil {
		return fmt.Errorf("clear stopped-sha: %w", err)
	}
	return s.Store.ClearMessage()
}
