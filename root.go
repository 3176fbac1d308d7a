// Command git-seq is the driving CLI around the sequencer engine: it
// resolves commit-ish arguments against a real Git checkout, wires the
// engine's read/write collaborators to that checkout, and exposes the five
// resume-controller entry points (start, continue, skip, abort, edit-todo)
// plus a status report as subcommands.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/gitseq/sequencer/internal/editor"
	"github.com/gitseq/sequencer/internal/hook"
	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/oracle/gitoracle"
	"github.com/gitseq/sequencer/internal/sequencer/coalesce"
	"github.com/gitseq/sequencer/internal/sequencer/control"
	"github.com/gitseq/sequencer/internal/sequencer/exec"
	"github.com/gitseq/sequencer/internal/sequencer/plan"
	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/ui"
	"github.com/gitseq/sequencer/internal/worktree"
	"github.com/gitseq/sequencer/internal/worktree/gitwt"
)

// globalOptions are flags every subcommand inherits, governing which
// checkout and state directory the engine operates against.
type globalOptions struct {
	Dir      string `name:"dir" default:"." help:"Path to the git worktree to operate on."`
	StateDir string `name:"state-dir" help:"Directory the sequencer's state lives in (default: <dir>/.git/sequencer)."`
	Editor   string `name:"editor" env:"GIT_SEQ_EDITOR" help:"Command used to open the todo list and commit messages for interactive editing. Defaults to $EDITOR, then vi."`
	Verbose  bool   `name:"verbose" short:"v" help:"Enable debug logging."`
}

// rootCmd is git-seq's command tree.
type rootCmd struct {
	globalOptions

	VersionFlag versionFlag `name:"version" help:"Print version information and exit."`

	Start    rebaseStartCmd    `cmd:"" help:"Begin a new interactive rebase."`
	Continue rebaseContinueCmd `cmd:"" help:"Resume a paused rebase."`
	Skip     rebaseSkipCmd     `cmd:"" help:"Abandon the paused instruction and resume."`
	Abort    rebaseAbortCmd    `cmd:"" help:"Cancel the rebase and discard its state."`
	EditTodo rebaseEditTodoCmd `cmd:"edit-todo" help:"Open the remaining instructions in an editor."`
	Status   rebaseStatusCmd   `cmd:"" help:"Report whether a rebase is in progress, and why it is paused."`
	Version  versionCmd        `cmd:"" help:"Print version information."`
}

// AfterApply wires the engine's collaborators to the checkout named by the
// global flags, then binds them so every subcommand's Run method can ask
// for exactly the pieces it needs.
func (cmd *rootCmd) AfterApply(kctx *kong.Context) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if cmd.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	dir, err := filepath.Abs(cmd.Dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", cmd.Dir, err)
	}

	oc, err := gitoracle.New(dir)
	if err != nil {
		return fmt.Errorf("open oracle: %w", err)
	}
	wt, err := gitwt.New(dir)
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	stateDir := cmd.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(dir, ".git", "sequencer")
	}
	store := state.New(stateDir, logger)

	ed := editor.Command{Edit: resolveEditor(cmd.Editor)}
	hookRunner := hook.NewRunner(filepath.Join(dir, ".git", "hooks"), logger)

	executor := &exec.Executor{
		Log:      logger,
		Oracle:   oc,
		Worktree: wt,
		Store:    store,
		Coalesce: coalesce.New(store),
		Editor:   ed,
		Hook:     hookRunner,
	}

	svc := &control.Service{
		Log:      logger,
		Oracle:   oc,
		Worktree: wt,
		Store:    store,
		Planner:  plan.New(oc),
		Executor: executor,
		Editor:   ed,
	}

	var view ui.View
	if isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd()) {
		view = &ui.TerminalView{R: os.Stdin, W: os.Stderr}
	} else {
		view = &ui.FileView{W: os.Stderr}
	}

	kctx.Bind(logger)
	kctx.Bind(svc)
	kctx.Bind(store)
	kctx.BindTo(oc, (*oracle.Oracle)(nil))
	kctx.BindTo(wt, (*worktree.Worktree)(nil))
	kctx.BindTo(view, (*ui.View)(nil))
	return nil
}

// resolveEditor picks the editor command a driving session should use: the
// explicit flag/env value first, then $EDITOR, then vi, mirroring the
// fallback git itself applies for core.editor.
func resolveEditor(configured string) string {
	if configured != "" {
		return configured
	}
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return "vi"
}
