package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/gitseq/sequencer/internal/sequencer/control"
	"github.com/gitseq/sequencer/internal/text"
)

type rebaseSkipCmd struct{}

func (*rebaseSkipCmd) Help() string {
	return text.Dedent(`
		Abandons whatever the rebase is currently paused on -- a conflicted
		pick, an edit, or a failed exec -- and resumes with the next
		instruction.

		Any cached conflict resolution for the abandoned commit is
		forgotten, so it cannot leak into a later pick.
	`)
}

func (cmd *rebaseSkipCmd) Run(ctx context.Context, app *kong.Kong, svc *control.Service) error {
	res, err := svc.Skip(ctx)
	if err != nil {
		return err
	}
	return reportResult(app, res)
}
