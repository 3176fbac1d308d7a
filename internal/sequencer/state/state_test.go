package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitseq/sequencer/internal/sequencer/todo"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "sequencer"), nil)
	require.NoError(t, s.Create(context.Background()))
	return s
}

func TestCreate_alreadyExists(t *testing.T) {
	s := newStore(t)
	err := s.Create(context.Background())
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestTodo_roundTrip(t *testing.T) {
	s := newStore(t)
	prog, err := todo.Parse("pick abc1234 subject\nfixup def5678 subject2\n")
	require.NoError(t, err)

	require.NoError(t, s.WriteTodo(prog))
	got, err := s.ReadTodo()
	require.NoError(t, err)
	assert.Equal(t, prog, got)
}

func TestDone_appendsVerbatim(t *testing.T) {
	s := newStore(t)
	prog, err := todo.Parse("pick abc1234 subject\n# a note\n")
	require.NoError(t, err)

	for _, l := range prog {
		require.NoError(t, s.AppendDone(l))
	}
	done, err := s.ReadDone()
	require.NoError(t, err)
	assert.Equal(t, prog, done)
}

func TestMessages(t *testing.T) {
	s := newStore(t)

	_, err := s.Message()
	require.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, s.SetMessage("hello"))
	got, err := s.Message()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.NoError(t, s.ClearMessage())
	_, err = s.Message()
	require.ErrorIs(t, err, ErrNotExist)
}

func TestRewrittenBookkeeping(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.AppendRewrittenPending("aaa"))
	require.NoError(t, s.AppendRewrittenPending("bbb"))
	pending, err := s.RewrittenPending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "aaa", pending[0].String())
	assert.Equal(t, "bbb", pending[1].String())

	require.NoError(t, s.AppendRewrittenList("aaa", "zzz"))
	require.NoError(t, s.AppendRewrittenList("bbb", "zzz"))
	require.NoError(t, s.ClearRewrittenPending())

	pending, err = s.RewrittenPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	list, err := s.RewrittenList()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "aaa", list[0].Old.String())
	assert.Equal(t, "zzz", list[0].New.String())
}

func TestLabels_noDuplicate(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.SetLabel("onto", "aaa"))
	id, ok, err := s.Label("onto")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "aaa", id.String())

	err = s.SetLabel("onto", "bbb")
	require.Error(t, err)
}

func TestOptions_roundTrip(t *testing.T) {
	s := newStore(t)
	want := Options{KeepEmpty: true, Autosquash: true, Exec: "make test"}

	require.NoError(t, s.WriteOptions(want))
	got, err := s.ReadOptions()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
