package todo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Program
	}{
		{
			name: "pick",
			in:   "pick abc1234 do a thing\n",
			want: Program{{Instr: &Instruction{Op: OpPick, Commit: "abc1234", Subject: "do a thing"}}},
		},
		{
			name: "short forms",
			in:   "p abc1234 subj\nf def5678 subj2\n",
			want: Program{
				{Instr: &Instruction{Op: OpPick, Commit: "abc1234", Subject: "subj"}},
				{Instr: &Instruction{Op: OpFixup, Commit: "def5678", Subject: "subj2"}},
			},
		},
		{
			name: "comments and blanks preserved",
			in:   "# a comment\n\npick abc1234 x\n",
			want: Program{
				{Text: "# a comment", IsText: true},
				{Text: "", IsText: true},
				{Instr: &Instruction{Op: OpPick, Commit: "abc1234", Subject: "x"}},
			},
		},
		{
			name: "exec takes the whole remainder",
			in:   "exec make test -run Foo\n",
			want: Program{{Instr: &Instruction{Op: OpExec, Command: "make test -run Foo"}}},
		},
		{
			name: "label and goto",
			in:   "label onto\ngoto onto\n",
			want: Program{
				{Instr: &Instruction{Op: OpLabel, Name: "onto"}},
				{Instr: &Instruction{Op: OpGoto, Name: "onto"}},
			},
		},
		{
			name: "merge without message source",
			in:   "merge onto feature\n",
			want: Program{{Instr: &Instruction{
				Op:           OpMerge,
				MergeParents: []Ref{{Label: "onto"}, {Label: "feature"}},
			}}},
		},
		{
			name: "merge with -c",
			in:   "merge -c abc1234 onto\n",
			want: Program{{Instr: &Instruction{
				Op:             OpMerge,
				HasMergeCommit: true,
				MergeCommit:    "abc1234",
				MergeParents:   []Ref{{Label: "onto"}},
			}}},
		},
		{
			name: "noop",
			in:   "noop\n",
			want: Program{{Instr: &Instruction{Op: OpNoop}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_unknownOpcode(t *testing.T) {
	_, err := Parse("frobnicate abc1234 x\n")
	require.Error(t, err)
	var unknown *UnknownOpError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "frobnicate", unknown.Opcode)
}

func TestProgram_roundTrip(t *testing.T) {
	in := "pick abc1234 subject one\n# a note\nfixup def5678 subject two\n\nexec make test\n"
	prog, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, in, prog.String())
}

func TestCursor_peekDoesNotConsume(t *testing.T) {
	prog, err := Parse("pick abc1234 x\n# note\nfixup def5678 y\n")
	require.NoError(t, err)

	c := NewCursor(prog)
	op, ok := c.PeekNextCommand()
	require.True(t, ok)
	assert.Equal(t, OpPick, op)

	l, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, OpPick, l.Instr.Op)

	op, ok = c.PeekNextCommand()
	require.True(t, ok)
	assert.Equal(t, OpFixup, op)

	l, ok = c.Next()
	require.True(t, ok)
	assert.True(t, l.IsText)

	l, ok = c.Next()
	require.True(t, ok)
	assert.Equal(t, OpFixup, l.Instr.Op)

	_, ok = c.Next()
	assert.False(t, ok)
}

func TestCursor_peekAtEnd(t *testing.T) {
	prog, err := Parse("pick abc1234 x\n")
	require.NoError(t, err)

	c := NewCursor(prog)
	_, _ = c.Next()

	_, ok := c.PeekNextCommand()
	assert.False(t, ok)
	assert.False(t, c.Remaining())
}
