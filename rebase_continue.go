package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/gitseq/sequencer/internal/sequencer/control"
	"github.com/gitseq/sequencer/internal/text"
)

type rebaseContinueCmd struct{}

func (*rebaseContinueCmd) Help() string {
	return text.Dedent(`
		Resumes a rebase paused by a conflict, an edit instruction, or an
		exec instruction's non-zero exit.

		If the index has staged changes, they are committed (or, for an
		edit pause, amended onto the paused commit) before the remaining
		todo is replayed.
	`)
}

func (cmd *rebaseContinueCmd) Run(ctx context.Context, app *kong.Kong, svc *control.Service) error {
	res, err := svc.Continue(ctx)
	if err != nil {
		return err
	}
	return reportResult(app, res)
}
