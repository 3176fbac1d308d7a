// Package coalesce accumulates and formats the combined commit message
// across a run of squash/fixup instructions, mirroring the message
// template git-spice's squash handler builds from a branch's commit
// range, but maintained incrementally one instruction at a time instead
// of from a single upfront commit list.
package coalesce

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
)

const (
	headerPrefix = "# This is a combination of "
	headerSuffix = " commits."
	firstHeader  = "# The first commit's message is:"
)

// Store is the subset of the persistent state Coalescer needs.
type Store interface {
	SquashMessage() (string, error)
	SetSquashMessage(string) error
	ClearSquashMessage() error
	FixupMessage() (string, error)
	SetFixupMessage(string) error
	ClearFixupMessage() error
	SetMessage(string) error
}

var _ Store = (*state.Store)(nil)

// Coalescer accumulates the combined message for a squash/fixup run.
type Coalescer struct {
	Store Store
}

// New returns a Coalescer persisting through store.
func New(store Store) *Coalescer {
	return &Coalescer{Store: store}
}

// Enter folds commitMsg (the commit currently being processed) into the
// accumulating message, starting a new run (seeded with headMsg, the
// message of the commit the run began on top of) if none is in progress.
// style must be todo.OpSquash or todo.OpFixup.
func (c *Coalescer) Enter(headMsg, commitMsg string, style todo.Op) error {
	squashMsg, err := c.Store.SquashMessage()
	var n int
	switch {
	case errors.Is(err, state.ErrNotExist):
		if err := c.Store.SetFixupMessage(headMsg); err != nil {
			return fmt.Errorf("seed fixup message: %w", err)
		}
		n = 2
		squashMsg = fmt.Sprintf("%s\n%s\n\n%s", combinationHeader(n), firstHeader, headMsg)
	case err != nil:
		return fmt.Errorf("read squash message: %w", err)
	default:
		n, squashMsg, err = incrementHeader(squashMsg)
		if err != nil {
			return fmt.Errorf("increment squash header: %w", err)
		}
	}

	switch style {
	case todo.OpSquash:
		if err := c.Store.ClearFixupMessage(); err != nil {
			return fmt.Errorf("clear fixup message: %w", err)
		}
		squashMsg += fmt.Sprintf("\n%s\n\n%s", nthHeader(n), commitMsg)
	case todo.OpFixup:
		squashMsg += fmt.Sprintf("\n%s\n\n%s", nthSkippedHeader(n), commentOut(commitMsg))
	default:
		return fmt.Errorf("coalesce: unsupported style %v", style)
	}

	if err := c.Store.SetSquashMessage(squashMsg); err != nil {
		return fmt.Errorf("write squash message: %w", err)
	}
	return nil
}

// FinalizeResult describes how the executor should create the coalesced
// commit once a squash/fixup run ends.
type FinalizeResult struct {
	// Message is the commit message content to write to a scratch file
	// and pass as -F to the commit.
	Message string
	// NoVerify is true for a pure-fixup run (no editor, hooks skipped).
	NoVerify bool
	// Edit is true when the accumulated message should be opened in the
	// editor before committing (any run containing a squash).
	Edit bool
}

// Finalize reports how to commit the accumulated run and does not itself
// mutate persisted state; call Cleanup after the commit succeeds.
func (c *Coalescer) Finalize() (FinalizeResult, error) {
	fixupMsg, err := c.Store.FixupMessage()
	switch {
	case err == nil:
		return FinalizeResult{Message: fixupMsg, NoVerify: true}, nil
	case errors.Is(err, state.ErrNotExist):
		squashMsg, err := c.Store.SquashMessage()
		if err != nil {
			return FinalizeResult{}, fmt.Errorf("read squash message: %w", err)
		}
		return FinalizeResult{Message: squashMsg, Edit: true}, nil
	default:
		return FinalizeResult{}, fmt.Errorf("read fixup message: %w", err)
	}
}

// Cleanup removes the scratch messages once the coalesced commit has been
// created successfully.
func (c *Coalescer) Cleanup() error {
	if err := c.Store.ClearSquashMessage(); err != nil {
		return err
	}
	return c.Store.ClearFixupMessage()
}

// Abort moves the accumulated squash message into the standard message
// slot so it can be offered back to the user on the next pause, per the
// failure path: a cherry-pick or commit failure during a squash/fixup run
// surfaces the run's message as if it were a plain pending commit message.
func (c *Coalescer) Abort() error {
	squashMsg, err := c.Store.SquashMessage()
	if err != nil {
		return fmt.Errorf("read squash message: %w", err)
	}
	if err := c.Store.SetMessage(squashMsg); err != nil {
		return fmt.Errorf("set message: %w", err)
	}
	if err := c.Store.ClearSquashMessage(); err != nil {
		return fmt.Errorf("clear squash message: %w", err)
	}
	if err := c.Store.ClearFixupMessage(); err != nil {
		return fmt.Errorf("clear fixup message: %w", err)
	}
	return nil
}

func combinationHeader(n int) string {
	return fmt.Sprintf("%s%d%s", headerPrefix, n, headerSuffix)
}

func nthHeader(n int) string {
	return fmt.Sprintf("# This is the %s commit message:", ordinal(n))
}

func nthSkippedHeader(n int) string {
	return fmt.Sprintf("# The %s commit message will be skipped:", ordinal(n))
}

func parseHeaderCount(msg string) (int, error) {
	first, _, _ := strings.Cut(msg, "\n")
	if !strings.HasPrefix(first, headerPrefix) || !strings.HasSuffix(first, headerSuffix) {
		return 0, fmt.Errorf("malformed squash message header %q", first)
	}
	numStr := strings.TrimSuffix(strings.TrimPrefix(first, headerPrefix), headerSuffix)
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("parse commit count: %w", err)
	}
	return n, nil
}

func incrementHeader(msg string) (newCount int, rewritten string, err error) {
	n, err := parseHeaderCount(msg)
	if err != nil {
		return 0, "", err
	}
	newCount = n + 1

	_, rest, found := strings.Cut(msg, "\n")
	if !found {
		rest = ""
	} else {
		rest = "\n" + rest
	}
	return newCount, combinationHeader(newCount) + rest, nil
}

func commentOut(msg string) string {
	lines := strings.Split(msg, "\n")
	for i, l := range lines {
		lines[i] = "# " + l
	}
	return strings.Join(lines, "\n")
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
