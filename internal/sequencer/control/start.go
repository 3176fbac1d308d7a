package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/exec"
	"github.com/gitseq/sequencer/internal/sequencer/plan"
	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/sequencer/xerrors"
)

// StartRequest configures a new rebase run.
type StartRequest struct {
	// Base and Tip delimit the revision range to replay: every commit
	// reachable from Tip and not from Base.
	Base, Tip oracle.ID

	// Onto is the commit the replayed range is rooted on. Usually equal
	// to Base, but may differ (`rebase --onto`).
	Onto oracle.ID

	// Upstream, if set, is recorded for display purposes only (the
	// ref/revision the user originally asked to rebase onto).
	Upstream string

	// HeadName, if set, is the branch to land the rebased history on at
	// finalisation; empty means the run stays in detached HEAD.
	HeadName string

	// PreserveMerges selects GeneratePreserveMerges instead of the flat
	// linearized Generate.
	PreserveMerges bool

	// EditTodo opens the generated todo in the configured editor before
	// the run begins, letting the user reorder or drop lines.
	EditTodo bool

	Options state.Options
}

// Start begins a new rebase: it generates the initial todo from req,
// persists the run's state, optionally lets the user edit the todo and
// skips picks already on top of Onto, then runs the executor loop until it
// pauses or finishes.
func (s *Service) Start(ctx context.Context, req StartRequest) (exec.Result, error) {
	if s.Store.Exists() {
		return exec.Result{}, &xerrors.PreconditionError{Reason: "a rebase is already in progress"}
	}

	if err := s.Worktree.Identity(ctx); err != nil {
		return exec.Result{}, &xerrors.PreconditionError{Reason: fmt.Sprintf("committer identity not configured: %v", err)}
	}

	head, err := s.Worktree.Head(ctx)
	if err != nil {
		return exec.Result{}, fmt.Errorf("head: %w", err)
	}

	prog, err := s.generate(ctx, req)
	if err != nil {
		return exec.Result{}, err
	}
	if !hasInstruction(prog) {
		return exec.Result{}, &xerrors.PreconditionError{Reason: "nothing to do: empty todo list"}
	}

	if err := s.Store.Create(ctx); err != nil {
		if errors.Is(err, state.ErrAlreadyExists) {
			return exec.Result{}, &xerrors.PreconditionError{Reason: "a rebase is already in progress"}
		}
		return exec.Result{}, fmt.Errorf("create state: %w", err)
	}
	if err := s.Store.SetOrigHead(head); err != nil {
		return exec.Result{}, fmt.Errorf("set orig-head: %w", err)
	}
	if err := s.Store.SetOnto(req.Onto); err != nil {
		return exec.Result{}, fmt.Errorf("set onto: %w", err)
	}
	if req.HeadName != "" {
		if err := s.Store.SetHeadName(req.HeadName); err != nil {
			return exec.Result{}, fmt.Errorf("set head name: %w", err)
		}
	}
	if req.Upstream != "" {
		if err := s.Store.SetUpstream(req.Upstream); err != nil {
			return exec.Result{}, fmt.Errorf("set upstream: %w", err)
		}
	}
	if err := s.Store.WriteOptions(req.Options); err != nil {
		return exec.Result{}, fmt.Errorf("write options: %w", err)
	}
	if err := s.Store.SetInteractive(); err != nil {
		return exec.Result{}, fmt.Errorf("set interactive: %w", err)
	}
	if err := s.Store.Backup(prog); err != nil {
		return exec.Result{}, fmt.Errorf("backup todo: %w", err)
	}

	if req.EditTodo {
		prog, err = s.editTodoOnce(ctx, prog)
		if err != nil {
			return exec.Result{}, err
		}
	}

	onto := req.Onto
	if !req.Options.ForceRebase {
		prog, onto, err = s.skipUnnecessary(ctx, prog, onto)
		if err != nil {
			return exec.Result{}, err
		}
	}

	if err := s.Store.WriteTodo(prog); err != nil {
		return exec.Result{}, fmt.Errorf("write todo: %w", err)
	}
	if err := s.Worktree.Checkout(ctx, onto, true); err != nil {
		return exec.Result{}, fmt.Errorf("checkout onto %v: %w", onto, err)
	}

	return s.runLoop(ctx)
}

func (s *Service) generate(ctx context.Context, req StartRequest) (todo.Program, error) {
	if req.PreserveMerges {
		prog, err := s.Planner.GeneratePreserveMerges(ctx, plan.PreserveMergesOptions{Base: req.Base, Tip: req.Tip})
		if err != nil {
			return nil, fmt.Errorf("generate preserve-merges todo: %w", err)
		}
		return prog, nil
	}

	prog, err := s.Planner.Generate(ctx, plan.GenerateOptions{
		Base:       req.Base,
		Tip:        req.Tip,
		KeepEmpty:  req.Options.KeepEmpty,
		Autosquash: req.Options.Autosquash,
		Exec:       req.Options.Exec,
	})
	if err != nil {
		return nil, fmt.Errorf("generate todo: %w", err)
	}
	return prog, nil
}

// editTodoOnce lets the user hand-edit the freshly generated todo before
// the run's state is otherwise committed to it.
func (s *Service) editTodoOnce(ctx context.Context, prog todo.Program) (todo.Program, error) {
	if err := s.Store.WriteTodo(prog); err != nil {
		return nil, fmt.Errorf("write todo: %w", err)
	}
	if s.Editor != nil {
		if err := s.Editor.Open(ctx, s.Store.TodoPath()); err != nil {
			return nil, fmt.Errorf("open editor on todo: %w", err)
		}
	}
	edited, err := s.Store.ReadTodo()
	if err != nil {
		return nil, fmt.Errorf("read edited todo: %w", err)
	}
	if !hasInstruction(edited) {
		return nil, &xerrors.PreconditionError{Reason: "nothing to do: empty todo list"}
	}
	return edited, nil
}

// skipUnnecessary runs the planner's skip-walk and records its effect on
// the rewritten bookkeeping, moving past picks already on top of onto
// before the executor ever runs.
func (s *Service) skipUnnecessary(ctx context.Context, prog todo.Program, onto oracle.ID) (todo.Program, oracle.ID, error) {
	skip, err := s.Planner.SkipUnnecessaryPicks(ctx, prog, onto)
	if err != nil {
		return nil, onto, fmt.Errorf("skip unnecessary picks: %w", err)
	}
	for _, line := range skip.Skipped {
		if err := s.Store.AppendDone(line); err != nil {
			return nil, onto, fmt.Errorf("append done: %w", err)
		}
	}
	if skip.AttachPending {
		if err := s.Store.AppendRewrittenPending(skip.Onto); err != nil {
			return nil, onto, fmt.Errorf("record skip attach point: %w", err)
		}
	}
	return skip.Remaining, skip.Onto, nil
}
