package exec

import (
	"context"
	"fmt"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/coalesce"
	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
	"github.com/gitseq/sequencer/internal/worktree"
)

// fakeOracle is a minimal in-memory commit graph, same shape as the
// planner's test fixture.
type fakeOracle struct {
	subject map[oracle.ID]string
	message map[oracle.ID]string
	author  map[oracle.ID]oracle.Author
	parents map[oracle.ID][]oracle.ID
}

var _ oracle.Oracle = (*fakeOracle)(nil)

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		subject: make(map[oracle.ID]string),
		message: make(map[oracle.ID]string),
		author:  make(map[oracle.ID]oracle.Author),
		parents: make(map[oracle.ID][]oracle.ID),
	}
}

func (f *fakeOracle) add(id oracle.ID, msg string, a oracle.Author, parents ...oracle.ID) {
	f.subject[id] = msg
	f.message[id] = msg
	f.author[id] = a
	f.parents[id] = parents
}

func (f *fakeOracle) Resolve(_ context.Context, ref string) (oracle.ID, error) { return oracle.ID(ref), nil }
func (f *fakeOracle) Parents(_ context.Context, id oracle.ID) ([]oracle.ID, error) {
	return f.parents[id], nil
}
func (f *fakeOracle) FirstParent(ctx context.Context, id oracle.ID) (oracle.ID, bool, error) {
	ps, err := f.Parents(ctx, id)
	if err != nil || len(ps) == 0 {
		return "", false, err
	}
	return ps[0], true, nil
}
func (f *fakeOracle) Tree(_ context.Context, id oracle.ID) (oracle.ID, error) { return id, nil }
func (f *fakeOracle) Message(_ context.Context, id oracle.ID) (string, error) {
	return f.message[id], nil
}
func (f *fakeOracle) Subject(_ context.Context, id oracle.ID) (string, error) {
	return f.subject[id], nil
}
func (f *fakeOracle) CommitAuthor(_ context.Context, id oracle.ID) (oracle.Author, error) {
	return f.author[id], nil
}
func (f *fakeOracle) Short(_ context.Context, id oracle.ID) (string, error) { return id.Short(), nil }
func (f *fakeOracle) Exists(_ context.Context, id oracle.ID) bool           { _, ok := f.subject[id]; return ok }
func (f *fakeOracle) IsAncestor(context.Context, oracle.ID, oracle.ID) bool { return false }
func (f *fakeOracle) PatchID(_ context.Context, id oracle.ID) (string, error) {
	return "patch-" + string(id), nil
}
func (f *fakeOracle) MergeBase(context.Context, oracle.ID, oracle.ID) (oracle.ID, error) {
	return "", fmt.Errorf("not implemented")
}

// fakeWorktree is an in-memory HEAD and commit graph the executor mutates.
type fakeWorktree struct {
	head      oracle.ID
	committed []worktree.CommitOptions
	nextID    int
	refs      map[string]oracle.ID
	clean     bool
	conflictOnPick map[oracle.ID]bool
}

var _ worktree.Worktree = (*fakeWorktree)(nil)

func newFakeWorktree(head oracle.ID) *fakeWorktree {
	return &fakeWorktree{head: head, refs: make(map[string]oracle.ID), clean: true, conflictOnPick: make(map[oracle.ID]bool)}
}

func (w *fakeWorktree) CherryPick(_ context.Context, id oracle.ID, _ worktree.CherryPickOptions) error {
	if w.conflictOnPick[id] {
		w.clean = false
		return worktree.ErrConflict
	}
	return nil
}

func (w *fakeWorktree) Commit(_ context.Context, opts worktree.CommitOptions) (oracle.ID, error) {
	w.committed = append(w.committed, opts)
	w.nextID++
	id := oracle.ID(fmt.Sprintf("new%d", w.nextID))
	w.head = id
	w.clean = true
	return id, nil
}

func (w *fakeWorktree) Checkout(_ context.Context, id oracle.ID, _ bool) error {
	w.head = id
	return nil
}

func (w *fakeWorktree) Merge(_ context.Context, opts worktree.MergeOptions) (oracle.ID, error) {
	w.nextID++
	id := oracle.ID(fmt.Sprintf("merge%d", w.nextID))
	w.head = id
	return id, nil
}

func (w *fakeWorktree) IsClean(context.Context) (bool, error) { return w.clean, nil }
func (w *fakeWorktree) Diff(context.Context) (string, error)  { return "diff", nil }
func (w *fakeWorktree) Rerere(context.Context) error           { return nil }
func (w *fakeWorktree) Head(context.Context) (oracle.ID, error) { return w.head, nil }
func (w *fakeWorktree) UpdateRef(_ context.Context, name string, id oracle.ID) error {
	w.refs[name] = id
	return nil
}
func (w *fakeWorktree) Identity(context.Context) error { return nil }

func newTestExecutor(t *testing.T, o *fakeOracle, w *fakeWorktree) (*Executor, *state.Store) {
	t.Helper()
	store := state.New(t.TempDir(), nil)
	require.NoError(t, store.Create(context.Background()))
	return &Executor{
		Log:      log.Default(),
		Oracle:   o,
		Worktree: w,
		Store:    store,
		Coalesce: coalesce.New(store),
		Options:  Options{},
	}, store
}

func writeTodo(t *testing.T, store *state.Store, lines ...todo.Line) {
	t.Helper()
	require.NoError(t, store.WriteTodo(todo.Program(lines)))
}

func pickLine(id oracle.ID, subject string) todo.Line {
	return todo.Line{Instr: &todo.Instruction{Op: todo.OpPick, Commit: id, Subject: subject}}
}

func TestStep_Pick(t *testing.T) {
	ctx := context.Background()
	o := newFakeOracle()
	o.add("A", "first", oracle.Author{Name: "A", Email: "a@example.com"})
	w := newFakeWorktree("base")
	e, store := newTestExecutor(t, o, w)
	writeTodo(t, store, pickLine("A", "first"))

	res, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusContinue, res.Status)
	require.Len(t, w.committed, 1)
	assert.Equal(t, "first", w.committed[0].Message)

	prog, err := store.ReadTodo()
	require.NoError(t, err)
	assert.Empty(t, prog)
}

func TestStep_PickConflictPauses(t *testing.T) {
	ctx := context.Background()
	o := newFakeOracle()
	o.add("A", "first", oracle.Author{Name: "A", Email: "a@example.com"})
	w := newFakeWorktree("base")
	w.conflictOnPick["A"] = true
	e, store := newTestExecutor(t, o, w)
	writeTodo(t, store, pickLine("A", "first"))

	res, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, res.Status)
	assert.Equal(t, 1, res.ExitCode)

	stopped, err := store.StoppedSHA()
	require.NoError(t, err)
	assert.Equal(t, oracle.ID("A"), stopped)
}

func TestStep_Done(t *testing.T) {
	ctx := context.Background()
	o := newFakeOracle()
	w := newFakeWorktree("base")
	e, store := newTestExecutor(t, o, w)
	writeTodo(t, store)

	res, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
}

func TestStep_SquashFixupRun(t *testing.T) {
	ctx := context.Background()
	o := newFakeOracle()
	o.add("A", "first", oracle.Author{Name: "A", Email: "a@example.com"})
	o.add("B", "squash! first", oracle.Author{Name: "A", Email: "a@example.com"})
	w := newFakeWorktree("base")
	e, store := newTestExecutor(t, o, w)
	writeTodo(t, store,
		pickLine("A", "first"),
		todo.Line{Instr: &todo.Instruction{Op: todo.OpSquash, Commit: "B", Subject: "squash! first"}},
	)

	res, err := e.Step(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusContinue, res.Status)

	res, err = e.Step(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusContinue, res.Status)

	require.Len(t, w.committed, 2)
	pairs, err := store.RewrittenList()
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.Equal(t, w.head, p.New)
	}
}

func TestStep_ExecFailurePauses(t *testing.T) {
	ctx := context.Background()
	o := newFakeOracle()
	w := newFakeWorktree("base")
	e, store := newTestExecutor(t, o, w)
	writeTodo(t, store, todo.Line{Instr: &todo.Instruction{Op: todo.OpExec, Command: "exit 1"}})

	res, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, res.Status)
	assert.Equal(t, 1, res.ExitCode)
}

func TestStep_LabelAndGoto(t *testing.T) {
	ctx := context.Background()
	o := newFakeOracle()
	w := newFakeWorktree("base")
	e, store := newTestExecutor(t, o, w)
	writeTodo(t, store,
		todo.Line{Instr: &todo.Instruction{Op: todo.OpLabel, Name: "mark"}},
		todo.Line{Instr: &todo.Instruction{Op: todo.OpGoto, Name: "mark"}},
	)

	_, err := e.Step(ctx)
	require.NoError(t, err)
	res, err := e.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusContinue, res.Status)
	assert.Equal(t, oracle.ID("base"), w.head)
}

func TestStep_GotoMissingLabelErrors(t *testing.T) {
	ctx := context.Background()
	o := newFakeOracle()
	w := newFakeWorktree("base")
	e, store := newTestExecutor(t, o, w)
	writeTodo(t, store, todo.Line{Instr: &todo.Instruction{Op: todo.OpGoto, Name: "nope"}})

	_, err := e.Step(ctx)
	assert.Error(t, err)
}

func TestResumeEdit(t *testing.T) {
	ctx := context.Background()
	o := newFakeOracle()
	o.add("A", "first", oracle.Author{Name: "A", Email: "a@example.com"})
	w := newFakeWorktree("base")
	e, store := newTestExecutor(t, o, w)
	writeTodo(t, store, todo.Line{Instr: &todo.Instruction{Op: todo.OpEdit, Commit: "A", Subject: "first"}})

	res, err := e.Step(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusPaused, res.Status)

	amended, err := store.Amend()
	require.NoError(t, err)
	assert.Equal(t, w.head, amended)

	require.NoError(t, e.ResumeEdit(ctx))
	pairs, err := store.RewrittenList()
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, oracle.ID("A"), pairs[0].Old)
}
