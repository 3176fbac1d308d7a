package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/control"
	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/worktree"
)

// rebaseStartCmd is `git-seq start`: it generates the initial todo for
// upstream..branch, persists the run's state, and replays it until the
// first pause or completion.
type rebaseStartCmd struct {
	Upstream string `arg:"" help:"Commit-ish to rebase onto and exclude from the replayed range."`
	Branch   string `arg:"" optional:"" help:"Commit-ish to rebase. Defaults to HEAD."`

	Onto              string `help:"Replay the range onto this commit-ish instead of Upstream."`
	KeepEmpty         bool   `help:"Keep commits that are empty (same tree as their parent) instead of commenting them out of the todo."`
	AllowEmptyMessage bool   `help:"Record the allow-empty-message option for the run. No commit step reads it: empty messages are handled as without it."`
	Autosquash        bool   `help:"Move squash!/fixup! commits next to their targets and convert their opcode."`
	ForceRebase       bool   `name:"force-rebase" short:"f" help:"Cherry-pick every commit, even one that already sits on onto, instead of skipping or fast-forwarding it."`
	RebaseMerges      bool   `name:"rebase-merges" help:"Preserve the original branch topology with label/goto/merge instead of linearizing it."`
	EditTodo          bool   `help:"Open the generated todo in an editor before the rebase begins."`
	Exec              string `help:"Append an exec instruction running this command after every pick."`
}

func (cmd *rebaseStartCmd) Help() string {
	return "Plan and begin replaying upstream..branch as an interactive rebase."
}

func (cmd *rebaseStartCmd) Run(ctx context.Context, app *kong.Kong, oc oracle.Oracle, wt worktree.Worktree, svc *control.Service) error {
	// Mirroring `git rebase <upstream> <branch>`: checking out branch
	// first means everything below operates on HEAD, and head-name
	// detection below naturally picks branch back up.
	if cmd.Branch != "" {
		if err := wt.Checkout(ctx, oracle.ID(cmd.Branch), false); err != nil {
			return fmt.Errorf("checkout %s: %w", cmd.Branch, err)
		}
	}

	tip, err := oc.Resolve(ctx, "HEAD")
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}

	base, err := oc.Resolve(ctx, cmd.Upstream)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", cmd.Upstream, err)
	}

	onto := base
	if cmd.Onto != "" {
		onto, err = oc.Resolve(ctx, cmd.Onto)
		if err != nil {
			return fmt.Errorf("resolve --onto %s: %w", cmd.Onto, err)
		}
	}

	var headName string
	type branchNamer interface {
		CurrentBranch(context.Context) (string, bool, error)
	}
	if bn, ok := wt.(branchNamer); ok {
		if name, onBranch, berr := bn.CurrentBranch(ctx); berr == nil && onBranch {
			headName = name
		}
	}

	res, err := svc.Start(ctx, control.StartRequest{
		Base:           base,
		Tip:            tip,
		Onto:           onto,
		Upstream:       cmd.Upstream,
		HeadName:       headName,
		PreserveMerges: cmd.RebaseMerges,
		EditTodo:       cmd.EditTodo,
		Options: state.Options{
			KeepEmpty:         cmd.KeepEmpty,
			AllowEmptyMessage: cmd.AllowEmptyMessage,
			Autosquash:        cmd.Autosquash,
			ForceRebase:       cmd.ForceRebase,
			Exec:              cmd.Exec,
		},
	})
	if err != nil {
		return err
	}
	return reportResult(app, res)
}
