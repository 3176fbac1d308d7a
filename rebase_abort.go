package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/control"
	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/text"
	"github.com/gitseq/sequencer/internal/ui"
)

type rebaseAbortCmd struct {
	Force bool `name:"force" short:"f" help:"Skip the confirmation prompt."`
}

func (*rebaseAbortCmd) Help() string {
	return text.Dedent(`
		Cancels the in-progress rebase: its persisted state is deleted and
		the worktree is restored to the branch (or commit) HEAD pointed to
		before the rebase began.
	`)
}

func (cmd *rebaseAbortCmd) Run(ctx context.Context, app *kong.Kong, view ui.View, svc *control.Service, store *state.Store) error {
	origHead, err := store.OrigHead()
	if err != nil {
		return fmt.Errorf("read orig-head: %w", err)
	}
	headName, _ := store.HeadName()

	if !cmd.Force {
		if iv, ok := view.(ui.InteractiveView); ok {
			ok, err := iv.Confirm("Abort the rebase in progress?")
			if err != nil {
				return fmt.Errorf("confirm: %w", err)
			}
			if !ok {
				fmt.Fprintln(app.Stdout, "Aborted nothing; rebase is still in progress.")
				return nil
			}
		}
	}

	if err := svc.Abort(ctx); err != nil {
		return err
	}

	if headName != "" {
		if err := svc.Worktree.UpdateRef(ctx, headName, origHead); err != nil {
			return fmt.Errorf("restore %s: %w", headName, err)
		}
		if err := svc.Worktree.Checkout(ctx, oracle.ID(headName), false); err != nil {
			return fmt.Errorf("checkout %s: %w", headName, err)
		}
	} else if err := svc.Worktree.Checkout(ctx, origHead, true); err != nil {
		return fmt.Errorf("checkout %s: %w", origHead, err)
	}

	fmt.Fprintln(app.Stdout, "Rebase aborted.")
	return nil
}
