// Command git-seq is an interactive rebase sequencer: a todo planner,
// instruction executor, and resume controller for history-rewriting
// workflows, driven the way git's own `rebase -i` drives its sequencer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		fmt.Fprintln(os.Stderr, "Interrupted. Run git-seq continue once the worktree is clean, or git-seq abort to give up.")
		cancel()
	}()

	var cli rootCmd
	kctx := kong.Parse(
		&cli,
		kong.Name("git-seq"),
		kong.Description("An interactive rebase sequencer: plan, replay, and resume a rewrite of commit history."),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.UsageOnError(),
	)

	kctx.FatalIfErrorf(kctx.Run())
}
