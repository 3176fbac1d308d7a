package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/gitseq/sequencer/internal/sequencer/exec"
)

// reportResult renders a Step loop's outcome the way the teacher's own
// commands report a terminal action: a one-line success message, or -- for
// a pause -- a pointer at the next command and the pause's exit code
// (non-zero for a conflict or a failed exec, zero for an edit stop),
// mirroring git rebase's own convention that a conflict pause is not a crash.
func reportResult(app *kong.Kong, res exec.Result) error {
	switch res.Status {
	case exec.StatusDone:
		fmt.Fprintln(app.Stdout, "Successfully rebased.")
	case exec.StatusPaused:
		fmt.Fprintln(app.Stdout, "Stopped for you to resolve. Run `git-seq status` to see why, then `git-seq continue` or `git-seq skip`.")
		app.Exit(res.ExitCode)
	}
	return nil
}
