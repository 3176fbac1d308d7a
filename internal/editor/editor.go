// Package editor invokes the user's configured editor on a file, the way
// `rebase edit-todo` and a paused `reword`/`squash` open the todo or
// message scratch file for hand-editing.
package editor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Editor opens a file for interactive editing.
type Editor interface {
	// Open opens path in the editor and blocks until the user closes it.
	// Returns an error if the editor exits non-zero.
	Open(ctx context.Context, path string) error
}

var _ Editor = (*Command)(nil)

// Command opens files by running an external editor command, resolved
// the way a shell would: first as a binary on PATH, falling back to
// `sh -c` so that a command with arguments (e.g. "code --wait") works too.
type Command struct {
	// Edit is the configured editor command, e.g. from $EDITOR or
	// git's core.editor.
	Edit string
}

// Open implements [Editor].
func (c Command) Open(ctx context.Context, path string) error {
	if c.Edit == "" {
		return fmt.Errorf("no editor configured")
	}

	cmd := command(ctx, c.Edit, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run editor %q: %w", c.Edit, err)
	}
	return nil
}

func command(ctx context.Context, edit string, args ...string) *exec.Cmd {
	if exe, err := exec.LookPath(edit); err == nil {
		return exec.CommandContext(ctx, exe, args...)
	}
	// Run: sh -c 'EDITOR "$@"' -- "$1" "$2" ...
	// The shell handles any quoting in a multi-word editor command.
	shellArgs := append([]string{"-c", edit + ` "$@"`, "--"}, args...)
	return exec.CommandContext(ctx, "sh", shellArgs...)
}
