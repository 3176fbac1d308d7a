package coalesce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitseq/sequencer/internal/sequencer/state"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
)

// fakeStore is a minimal in-memory Store, mirroring the scratch files a
// real state.Store keeps on disk.
type fakeStore struct {
	squash, fixup, message string
	haveSquash, haveFixup  bool
}

var _ Store = (*fakeStore)(nil)

func (f *fakeStore) SquashMessage() (string, error) {
	if !f.haveSquash {
		return "", state.ErrNotExist
	}
	return f.squash, nil
}

func (f *fakeStore) SetSquashMessage(s string) error {
	f.squash, f.haveSquash = s, true
	return nil
}

func (f *fakeStore) ClearSquashMessage() error {
	f.squash, f.haveSquash = "", false
	return nil
}

func (f *fakeStore) FixupMessage() (string, error) {
	if !f.haveFixup {
		return "", state.ErrNotExist
	}
	return f.fixup, nil
}

func (f *fakeStore) SetFixupMessage(s string) error {
	f.fixup, f.haveFixup = s, true
	return nil
}

func (f *fakeStore) ClearFixupMessage() error {
	f.fixup, f.haveFixup = "", false
	return nil
}

func (f *fakeStore) SetMessage(s string) error {
	f.message = s
	return nil
}

func TestEnter_squashRun(t *testing.T) {
	store := &fakeStore{}
	c := New(store)

	require.NoError(t, c.Enter("first", "second", todo.OpSquash))
	assert.Equal(t, "# This is a combination of 2 commits.\n"+
		"# The first commit's message is:\n\nfirst\n"+
		"# This is the 2nd commit message:\n\nsecond", store.squash)
	assert.False(t, store.haveFixup, "a squash entry must not seed a fixup message")

	require.NoError(t, c.Enter("first", "third", todo.OpSquash))
	assert.Equal(t, "# This is a combination of 3 commits.\n"+
		"# The first commit's message is:\n\nfirst\n"+
		"# This is the 2nd commit message:\n\nsecond\n"+
		"# This is the 3rd commit message:\n\nthird", store.squash)
}

func TestEnter_fixupRun(t *testing.T) {
	store := &fakeStore{}
	c := New(store)

	require.NoError(t, c.Enter("first", "second", todo.OpFixup))
	assert.True(t, store.haveFixup)
	assert.Equal(t, "first", store.fixup)
	assert.Equal(t, "# This is a combination of 2 commits.\n"+
		"# The first commit's message is:\n\nfirst\n"+
		"# The 2nd commit message will be skipped:\n\n# second", store.squash)
}

func TestEnter_squashAfterFixupClearsFixupMessage(t *testing.T) {
	store := &fakeStore{}
	c := New(store)

	require.NoError(t, c.Enter("first", "second", todo.OpFixup))
	require.True(t, store.haveFixup)

	require.NoError(t, c.Enter("first", "third", todo.OpSquash))
	assert.False(t, store.haveFixup, "a squash later in the run must clear a pending fixup message")
}

func TestEnter_unsupportedStyle(t *testing.T) {
	store := &fakeStore{}
	c := New(store)
	err := c.Enter("first", "second", todo.OpPick)
	assert.Error(t, err)
}

func TestFinalize_pureFixupRunSkipsEditor(t *testing.T) {
	store := &fakeStore{haveFixup: true, fixup: "first"}
	c := New(store)

	res, err := c.Finalize()
	require.NoError(t, err)
	assert.Equal(t, FinalizeResult{Message: "first", NoVerify: true}, res)
}

func TestFinalize_squashRunOpensEditor(t *testing.T) {
	store := &fakeStore{haveSquash: true, squash: "combined"}
	c := New(store)

	res, err := c.Finalize()
	require.NoError(t, err)
	assert.Equal(t, FinalizeResult{Message: "combined", Edit: true}, res)
}

func TestCleanup_clearsBothScratchMessages(t *testing.T) {
	store := &fakeStore{haveSquash: true, squash: "x", haveFixup: true, fixup: "y"}
	c := New(store)

	require.NoError(t, c.Cleanup())
	assert.False(t, store.haveSquash)
	assert.False(t, store.haveFixup)
}

func TestAbort_movesSquashMessageToPendingMessage(t *testing.T) {
	store := &fakeStore{haveSquash: true, squash: "combined", haveFixup: true, fixup: "first"}
	c := New(store)

	require.NoError(t, c.Abort())
	assert.Equal(t, "combined", store.message)
	assert.False(t, store.haveFixup)
}

func TestOrdinal(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "1st"},
		{2, "2nd"},
		{3, "3rd"},
		{4, "4th"},
		{11, "11th"},
		{12, "12th"},
		{13, "13th"},
		{21, "21st"},
		{22, "22nd"},
		{23, "23rd"},
		{101, "101st"},
		{111, "111th"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ordinal(tt.n), "ordinal(%d)", tt.n)
	}
}
