package main

import (
	"context"

	"github.com/gitseq/sequencer/internal/sequencer/control"
	"github.com/gitseq/sequencer/internal/text"
)

type rebaseEditTodoCmd struct{}

func (*rebaseEditTodoCmd) Help() string {
	return text.Dedent(`
		Opens the remaining todo instructions in the configured editor.
		The edited list takes effect the next time continue runs; it is
		not replayed immediately.
	`)
}

func (cmd *rebaseEditTodoCmd) Run(ctx context.Context, svc *control.Service) error {
	return svc.EditTodo(ctx)
}
