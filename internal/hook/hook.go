// Package hook runs the post-rewrite hook at the end of a successful
// rebase, feeding it the finalised old-to-new commit mapping on stdin the
// way git itself invokes post-rewrite after `rebase` and `commit --amend`.
package hook

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/gitseq/sequencer/internal/sequencer/state"
)

// Runner invokes the post-rewrite hook if one is installed.
type Runner struct {
	// HooksDir is the directory hooks live in, normally ".git/hooks".
	HooksDir string
	Log      *log.Logger
}

// NewRunner returns a Runner that looks for hooks under hooksDir.
func NewRunner(hooksDir string, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{HooksDir: hooksDir, Log: logger}
}

// RunPostRewrite invokes the post-rewrite hook with argument "rebase",
// feeding it one "old new" pair per line on stdin. If no hook is
// installed, this is a no-op. A failing hook is logged and swallowed: per
// git's own semantics, a post-rewrite hook cannot block the rewrite it is
// reporting on.
func (r *Runner) RunPostRewrite(ctx context.Context, pairs []state.RewrittenPair) {
	path := filepath.Join(r.HooksDir, "post-rewrite")
	info, err := os.Stat(path)
	if err != nil || info.Mode()&0o111 == 0 {
		return
	}

	var stdin bytes.Buffer
	for _, p := range pairs {
		fmt.Fprintf(&stdin, "%s %s\n", p.Old, p.New)
	}

	cmd := exec.CommandContext(ctx, path, "rebase")
	cmd.Stdin = &stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		r.Log.Warn("post-rewrite hook failed", "error", err, "stderr", stderr.String())
	}
}
