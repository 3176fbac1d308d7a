// Package control is the ResumeController: it owns the five entry points a
// driving command invokes -- start, continue, skip, abort, and edit-todo --
// each one a single-shot call that either runs the executor loop to a pause
// or completion, or mutates state directly and returns.
//
// Where [exec.Executor] interprets one instruction at a time, Service is
// what a CLI command calls once per invocation: it bridges the process
// boundary, since the executor loop itself does not span process restarts.
package control

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/gitseq/sequencer/internal/editor"
	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/exec"
	"github.com/gitseq/sequencer/internal/sequencer/plan"
	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/worktree"
)

// Store is the subset of [state.Store] the control entry points need
// beyond what they reach through [exec.Executor].
type Store interface {
	Exists() bool
	Create(ctx context.Context) error
	Remove() error

	SetOrigHead(oracle.ID) error
	SetOnto(oracle.ID) error
	SetHeadName(name string) error
	SetUpstream(ref string) error
	WriteOptions(state.Options) error
	SetInteractive() error

	Backup(todo.Program) error
	ReadTodo() (todo.Program, error)
	WriteTodo(todo.Program) error
	AppendDone(todo.Line) error
	AppendRewrittenPending(oracle.ID) error

	Amend() (oracle.ID, error)
	StoppedSHA() (oracle.ID, error)
	ClearStoppedSHA() error
	AuthorScriptPath() string
	TodoPath() string

	Message() (string, error)
	SetMessage(string) error
	ClearMessage() error
}

var _ Store = (*state.Store)(nil)

// Service wires together the components a driving command needs to run
// any of the five entry points.
type Service struct {
	Log      *log.Logger
	Oracle   oracle.Oracle
	Worktree worktree.Worktree
	Store    Store
	Planner  *plan.Planner
	Executor *exec.Executor
	Editor   editor.Editor
}

// runLoop calls Step until the run pauses, finishes, or errors. A
// finished run's state directory is removed -- its job is done, the same
// way Abort removes it when the user gives up instead.
func (s *Service) runLoop(ctx context.Context) (exec.Result, error) {
	opts, err := s.Executor.Store.ReadOptions()
	if err != nil {
		return exec.Result{}, fmt.Errorf("read options: %w", err)
	}
	s.Executor.Options = exec.Options{
		KeepEmpty:         opts.KeepEmpty,
		AllowEmptyMessage: opts.AllowEmptyMessage,
		ForceRebase:       opts.ForceRebase,
	}

	for {
		res, err := s.Executor.Step(ctx)
		if err != nil {
			return exec.Result{}, fmt.Errorf("step: %w", err)
		}
		if res.Status == exec.StatusContinue {
			continue
		}
		if res.Status == exec.StatusDone {
			if err := s.Store.Remove(); err != nil {
				return exec.Result{}, fmt.Errorf("remove state: %w", err)
			}
		}
		return res, nil
	}
}

// hasInstruction reports whether prog contains any non-comment line.
func hasInstruction(prog todo.Program) bool {
	for _, line := range prog {
		if !line.IsText {
			return true
		}
	}
	return false
}
