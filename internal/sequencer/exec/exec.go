// Package exec is the instruction interpreter: it dispatches each todo
// line to the behavior in spec §4.3, mutating the worktree through
// [worktree.Worktree], persisting progress through [state.Store], and
// reporting a pause whenever the spec says the run should stop for user
// action.
//
// One [Executor] method, Step, runs exactly one instruction per call,
// mirroring git's own sequencer: the caller (the control package) loops
// Step until it returns a non-continuing [Result] or the todo is empty.
package exec

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/gitseq/sequencer/internal/author"
	"github.com/gitseq/sequencer/internal/editor"
	"github.com/gitseq/sequencer/internal/hook"
	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/coalesce"
	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/sequencer/xerrors"
	"github.com/gitseq/sequencer/internal/worktree"
)

// Store is the subset of [state.Store] the executor needs.
type Store interface {
	ReadTodo() (todo.Program, error)
	WriteTodo(todo.Program) error
	AppendDone(todo.Line) error

	ClearMessage() error
	Message() (string, error)
	SetMessage(string) error

	Amend() (oracle.ID, error)
	ClearAmend() error
	SetAmend(oracle.ID) error

	SetStoppedSHA(oracle.ID) error
	ClearStoppedSHA() error

	WritePatch(string) error

	AppendRewrittenPending(oracle.ID) error
	ClearRewrittenPending() error
	RewrittenPending() ([]oracle.ID, error)
	AppendRewrittenList(old, newID oracle.ID) error
	RewrittenList() ([]state.RewrittenPair, error)

	Label(name string) (oracle.ID, bool, error)
	SetLabel(name string, id oracle.ID) error

	Onto() (oracle.ID, error)
	HeadName() (string, error)
	ReadOptions() (state.Options, error)

	Dropped() ([]string, error)

	AuthorScriptPath() string
	MessagePath() string
}

var _ Store = (*state.Store)(nil)

// Options configures the executor's behavior, sourced from the options a
// `start` invocation recorded.
type Options struct {
	// KeepEmpty permits committing a pick whose diff is empty.
	KeepEmpty bool
	// AllowEmptyMessage is carried over from the start options. No commit
	// path reads it, so a commit with no message is not specially permitted.
	AllowEmptyMessage bool
	// ForceRebase disables the fast-forward shortcut on Pick.
	ForceRebase bool
}

// Executor runs one todo instruction at a time against a worktree.
type Executor struct {
	Log      *log.Logger
	Oracle   oracle.Oracle
	Worktree worktree.Worktree
	Store    Store
	Coalesce *coalesce.Coalescer
	Editor   editor.Editor
	Hook     *hook.Runner
	Options  Options
}

// Status reports how a Step, or the run as a whole, concluded.
type Status int

const (
	// StatusContinue means the instruction completed; the caller should
	// call Step again if the todo is non-empty.
	StatusContinue Status = iota
	// StatusPaused means the run stopped for user action; the caller
	// should surface ExitCode and exit the process.
	StatusPaused
	// StatusDone means the todo was empty and finalisation completed
	// successfully.
	StatusDone
)

// Result is the outcome of one Step call.
type Result struct {
	Status   Status
	ExitCode int
}

// Step executes exactly one todo instruction, or runs finalisation if the
// todo is already empty.
func (e *Executor) Step(ctx context.Context) (Result, error) {
	prog, err := e.Store.ReadTodo()
	if err != nil {
		return Result{}, fmt.Errorf("read todo: %w", err)
	}
	if len(prog) == 0 {
		if err := e.finalize(ctx); err != nil {
			return Result{}, fmt.Errorf("finalize: %w", err)
		}
		return Result{Status: StatusDone}, nil
	}

	if err := e.Store.ClearMessage(); err != nil {
		return Result{}, fmt.Errorf("clear message: %w", err)
	}
	if err := e.Store.ClearAmend(); err != nil {
		return Result{}, fmt.Errorf("clear amend: %w", err)
	}

	cur := todo.NewCursor(prog)
	line, ok := cur.Next()
	if !ok {
		return Result{}, fmt.Errorf("expected a line but found none")
	}
	peekOp, hasPeek := cur.PeekNextCommand()

	result, err := e.dispatch(ctx, line, peekOp, hasPeek)

	// Persist progress regardless of outcome, so a process kill between
	// instructions leaves a resumable state (§5 Durability).
	if werr := e.Store.WriteTodo(cur.Remainder()); werr != nil {
		return Result{}, fmt.Errorf("write todo: %w", werr)
	}
	if derr := e.Store.AppendDone(line); derr != nil {
		return Result{}, fmt.Errorf("append done: %w", derr)
	}

	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (e *Executor) dispatch(ctx context.Context, line todo.Line, peekOp todo.Op, hasPeek bool) (Result, error) {
	if line.IsText {
		return Result{Status: StatusContinue}, nil
	}

	in := line.Instr
	switch in.Op {
	case todo.OpNoop:
		return Result{Status: StatusContinue}, nil
	case todo.OpPick:
		return e.runPick(ctx, in, peekOp, hasPeek)
	case todo.OpReword:
		return e.runReword(ctx, in, peekOp, hasPeek)
	case todo.OpEdit:
		return e.runEdit(ctx, in)
	case todo.OpSquash, todo.OpFixup:
		return e.runSquashFixup(ctx, in, peekOp, hasPeek)
	case todo.OpExec:
		return e.runExec(ctx, in)
	case todo.OpLabel:
		return e.runLabel(ctx, in)
	case todo.OpGoto:
		return e.runGoto(ctx, in)
	case todo.OpMerge:
		return e.runMerge(ctx, in, peekOp, hasPeek)
	default:
		return Result{}, &xerrors.UnknownInstructionError{Opcode: in.Op.String()}
	}
}

// RecordRewritten implements §4.3's rewritten bookkeeping: old is always
// appended to the pending list; if the lookahead shows the run has ended
// (the next instruction is not a squash/fixup continuation), every
// pending entry is paired with newHead and flushed to the finalised list.
//
// Exported because the control package also needs it: a `continue` that
// resumes from an ordinary conflict pause (not an edit pause, which
// ResumeEdit handles) finishes the same bookkeeping that a non-pausing
// Step would have done inline.
func (e *Executor) RecordRewritten(old, newHead oracle.ID, peekOp todo.Op, hasPeek bool) error {
	if err := e.Store.AppendRewrittenPending(old); err != nil {
		return fmt.Errorf("append rewritten pending: %w", err)
	}

	continuesRun := hasPeek && (peekOp == todo.OpSquash || peekOp == todo.OpFixup)
	if continuesRun {
		return nil
	}

	pending, err := e.Store.RewrittenPending()
	if err != nil {
		return fmt.Errorf("read rewritten pending: %w", err)
	}
	for _, p := range pending {
		if err := e.Store.AppendRewrittenList(p, newHead); err != nil {
			return fmt.Errorf("append rewritten list: %w", err)
		}
	}
	return e.Store.ClearRewrittenPending()
}

// cherryPick applies id's diff to the index without committing, honoring
// the executor's empty-commit and fast-forward options.
func (e *Executor) cherryPick(ctx context.Context, id oracle.ID) error {
	return e.Worktree.CherryPick(ctx, id, worktree.CherryPickOptions{
		AllowEmpty:  e.Options.KeepEmpty,
		FastForward: !e.Options.ForceRebase,
	})
}

// pauseConflict captures commit's author identity to the author-script
// (so a later continue restores it instead of attributing the eventual
// commit to whoever resolved the conflict) and reports a paused Result.
func (e *Executor) pauseConflict(ctx context.Context, commit oracle.ID, cause error) (Result, error) {
	if a, aerr := e.Oracle.CommitAuthor(ctx, commit); aerr == nil {
		if werr := author.Write(e.Store.AuthorScriptPath(), a); werr != nil {
			return Result{}, fmt.Errorf("write author script: %w", werr)
		}
	}
	msg, _ := e.Oracle.Message(ctx, commit)
	return e.pause(ctx, commit, msg, 1)
}

// pause persists the standard conflict-pause artifacts (stopped-sha,
// patch, message) and reports a paused Result with the appropriate exit
// code.
func (e *Executor) pause(ctx context.Context, id oracle.ID, msg string, exitCode int) (Result, error) {
	if err := e.Store.SetStoppedSHA(id); err != nil {
		return Result{}, fmt.Errorf("set stopped-sha: %w", err)
	}
	diff, derr := e.Worktree.Diff(ctx)
	if derr == nil {
		if err := e.Store.WritePatch(diff); err != nil {
			return Result{}, fmt.Errorf("write patch: %w", err)
		}
	}
	if msg != "" {
		if err := e.Store.SetMessage(msg); err != nil {
			return Result{}, fmt.Errorf("set message: %w", err)
		}
	}
	return Result{Status: StatusPaused, ExitCode: exitCode}, nil
}

func (e *Executor) finalize(ctx context.Context) error {
	headName, err := e.Store.HeadName()
	if err == nil && headName != "" {
		head, err := e.Worktree.Head(ctx)
		if err != nil {
			return fmt.Errorf("head: %w", err)
		}
		if err := e.Worktree.UpdateRef(ctx, headName, head); err != nil {
			return fmt.Errorf("update ref %s: %w", headName, err)
		}
		if err := e.Worktree.Checkout(ctx, oracle.ID(headName), false); err != nil {
			return fmt.Errorf("checkout %s: %w", headName, err)
		}
	}

	if e.Hook != nil {
		pairs, err := e.Store.RewrittenList()
		if err != nil {
			return fmt.Errorf("read rewritten list: %w", err)
		}
		if len(pairs) > 0 {
			e.Hook.RunPostRewrite(ctx, pairs)
		}
	}

	return nil
}
