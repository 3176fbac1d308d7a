package control

import (
	"context"
	"fmt"

	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/sequencer/xerrors"
)

// editTodoHelp is prefixed as comment lines onto the todo before handing it
// to the editor.
var editTodoHelp = []string{
	"# Rebase in progress.",
	"#",
	"# Edit the remaining instructions below, then save and close this",
	"# file to continue. Lines starting with \"#\" are ignored; so are",
	"# blank lines. Removing every instruction line does not abort the",
	"# rebase: continue then finishes it with what was already replayed.",
	"#",
	"# Run the continue command once you are done editing.",
}

// EditTodo opens the current todo, with its help header prefixed, in the
// configured editor. The rewritten todo takes effect on the next Continue.
func (s *Service) EditTodo(ctx context.Context) error {
	if !s.Store.Exists() {
		return &xerrors.PreconditionError{Reason: "no rebase in progress"}
	}

	prog, err := s.Store.ReadTodo()
	if err != nil {
		return fmt.Errorf("read todo: %w", err)
	}
	if err := s.Store.WriteTodo(withEditTodoHelp(prog)); err != nil {
		return fmt.Errorf("write todo: %w", err)
	}
	if s.Editor != nil {
		if err := s.Editor.Open(ctx, s.Store.TodoPath()); err != nil {
			return fmt.Errorf("open editor: %w", err)
		}
	}
	return nil
}

func withEditTodoHelp(prog todo.Program) todo.Program {
	out := make(todo.Program, 0, len(prog)+len(editTodoHelp))
	for _, line := range editTodoHelp {
		out = append(out, todo.Line{IsText: true, Text: line})
	}
	out = append(out, prog...)
	return out
}
