package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/text"
	"github.com/gitseq/sequencer/internal/worktree"
)

var _timeNow = time.Now

// rebaseStatusCmd is `git-seq status`: a read-only report of whether a
// rebase is in progress, what it is paused on, and how long ago the
// stopped commit was authored, for a user who has stepped away mid-conflict.
type rebaseStatusCmd struct{}

func (*rebaseStatusCmd) Help() string {
	return text.Dedent(`
		Reports whether a rebase is in progress: the onto commit, how many
		instructions remain, and -- if paused -- which commit it stopped
		on, how long ago that commit was authored, and a summary of the
		conflicted diff.
	`)
}

func (cmd *rebaseStatusCmd) Run(ctx context.Context, app *kong.Kong, oc oracle.Oracle, wt worktree.Worktree, store *state.Store) error {
	out := app.Stdout
	if !store.Exists() {
		fmt.Fprintln(out, "No rebase in progress.")
		return nil
	}

	onto, err := store.Onto()
	if err != nil && !errors.Is(err, state.ErrNotExist) {
		return fmt.Errorf("read onto: %w", err)
	}
	ontoShort, _ := oc.Short(ctx, onto)
	fmt.Fprintf(out, "Rebasing onto %s.\n", ontoShort)

	if upstream, err := store.Upstream(); err == nil && upstream != "" {
		fmt.Fprintf(out, "Upstream: %s\n", upstream)
	}

	prog, err := store.ReadTodo()
	if err != nil {
		return fmt.Errorf("read todo: %w", err)
	}
	remaining := countInstructions(prog)
	fmt.Fprintf(out, "%d instruction(s) remaining.\n", remaining)

	if dropped, err := store.Dropped(); err == nil && len(dropped) > 0 {
		fmt.Fprintf(out, "%d commit(s) dropped via skip.\n", len(dropped))
	}

	stopped, err := store.StoppedSHA()
	if errors.Is(err, state.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read stopped-sha: %w", err)
	}

	subject, _ := oc.Subject(ctx, stopped)
	short, _ := oc.Short(ctx, stopped)
	fmt.Fprintf(out, "\nStopped at %s: %s\n", short, subject)

	if author, aerr := oc.CommitAuthor(ctx, stopped); aerr == nil {
		if when, perr := parseRawDate(author.Date); perr == nil {
			fmt.Fprintf(out, "Authored %s by %s <%s>\n", humanize.RelTime(when, _timeNow(), "ago", "from now"), author.Name, author.Email)
		}
	}

	diff, derr := wt.Diff(ctx)
	if derr == nil && strings.TrimSpace(diff) != "" {
		files, added, deleted, serr := diffStat(diff)
		if serr == nil {
			fmt.Fprintf(out, "%d file(s) changed, %d insertion(s)(+), %d deletion(s)(-)\n", files, added, deleted)
		}
	}

	return nil
}

func countInstructions(prog todo.Program) int {
	var n int
	for _, line := range prog {
		if !line.IsText {
			n++
		}
	}
	return n
}

// parseRawDate parses an author date in git's `--date=raw` format, "<unix
// seconds> <tz offset>", as gitoracle.Oracle.CommitAuthor queries it.
func parseRawDate(raw string) (time.Time, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("empty date")
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse seconds: %w", err)
	}
	return time.Unix(secs, 0), nil
}

// diffStat summarizes a unified diff the way `git diff --stat`'s final
// line does: files touched, lines added, lines removed.
func diffStat(unified string) (files, added, deleted int, err error) {
	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(unified))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse diff: %w", err)
	}
	files = len(fileDiffs)
	for _, fd := range fileDiffs {
		for _, hunk := range fd.Hunks {
			sc := bufio.NewScanner(bytes.NewReader(hunk.Body))
			for sc.Scan() {
				line := sc.Text()
				switch {
				case strings.HasPrefix(line, "+"):
					added++
				case strings.HasPrefix(line, "-"):
					deleted++
				}
			}
		}
	}
	return files, added, deleted, nil
}
