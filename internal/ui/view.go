package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrPrompt indicates that we're not running in interactive mode.
var ErrPrompt = errors.New("not allowed to prompt for input")

// View provides access to the UI,
// allowing the application to send messages to the user,
// and in interactive mode, prompt for confirmation.
type View interface {
	// Write posts messages to the user.
	//
	// These are typically rendered to Stderr
	// to allow piping Stdout to other processes.
	io.Writer
}

// InteractiveView is a view that allows prompting the user for input.
//
// Views don't have to implement this interface, but if they do,
// they can prompt the user for confirmation.
type InteractiveView interface {
	View

	// Confirm asks the user a yes/no question and reports their answer.
	Confirm(title string) (bool, error)
}

// Interactive reports whether the given view is interactive.
func Interactive(v View) bool {
	_, ok := v.(InteractiveView)
	return ok
}

// FileView is a non-interactive view that posts messages
// to the given file.
type FileView struct {
	W io.Writer // required
}

var _ View = (*FileView)(nil)

func (fv *FileView) Write(p []byte) (int, error) {
	return fv.W.Write(p)
}

// TerminalView is a view that posts messages to the user's terminal
// and allows prompting for confirmation.
type TerminalView struct {
	// R is the input stream to read from.
	R io.Reader // required

	// W is the output stream to write to.
	W io.Writer // required

	// Style controls how the [Confirm] prompt is rendered.
	// A zero value falls back to [DefaultConfirmStyle].
	Style *ConfirmStyle
}

var _ InteractiveView = (*TerminalView)(nil)

func (tv *TerminalView) Write(p []byte) (int, error) {
	return tv.W.Write(p)
}

// Confirm asks title as a yes/no question on the terminal, defaulting to
// no on a bare Enter or EOF.
func (tv *TerminalView) Confirm(title string) (bool, error) {
	style := tv.Style
	if style == nil {
		style = &DefaultConfirmStyle
	}

	fmt.Fprintf(tv.W, "%s [%s/%s]: ", title, style.Key.Render("y"), style.Key.Render("N"))

	scan := bufio.NewScanner(tv.R)
	if !scan.Scan() {
		return false, scan.Err()
	}

	switch strings.ToLower(strings.TrimSpace(scan.Text())) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
