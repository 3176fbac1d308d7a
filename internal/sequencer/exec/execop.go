package exec

import (
	"context"
	"errors"
	"fmt"
	osexec "os/exec"

	"go.abhg.dev/io/ioutil"

	"github.com/gitseq/sequencer/internal/sequencer/todo"
)

// runExec runs the instruction's shell command in the worktree. A failing
// command, or one that leaves the worktree dirty, pauses the run rather
// than discarding anything -- the user inspects and fixes up by hand, then
// continues, exactly as a conflicting pick would.
func (e *Executor) runExec(ctx context.Context, in *todo.Instruction) (Result, error) {
	head, err := e.Worktree.Head(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("head: %w", err)
	}

	cmd := osexec.CommandContext(ctx, "sh", "-c", in.Command)
	out, done := ioutil.LogWriter(e.Log, "[exec] ")
	defer done()
	cmd.Stdout = out
	cmd.Stderr = out
	runErr := cmd.Run()

	clean, err := e.Worktree.IsClean(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("check worktree: %w", err)
	}

	if runErr != nil || !clean {
		msg := fmt.Sprintf("exec failed: %s", in.Command)
		if runErr == nil {
			msg = fmt.Sprintf("exec left changes behind: %s", in.Command)
		}
		return e.pause(ctx, head, msg, execExitCode(runErr))
	}
	return Result{Status: StatusContinue}, nil
}

// execExitCode reports the exit code a paused exec instruction should
// surface to the user: the command's own status, except 127 (command not
// found) collapses to 1, and a clean-but-dirty worktree (runErr == nil)
// also reports 1.
func execExitCode(runErr error) int {
	var exitErr *osexec.ExitError
	if errors.As(runErr, &exitErr) {
		if code := exitErr.ExitCode(); code != 127 {
			return code
		}
	}
	return 1
}
