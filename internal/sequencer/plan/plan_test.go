package plan

import (
	"context"
	"fmt"
	"testing"

	"github.com/hexops/autogold/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
)

// fakeOracle is a minimal in-memory commit graph for exercising the
// planner without a real repository.
type fakeOracle struct {
	parents map[oracle.ID][]oracle.ID
	subject map[oracle.ID]string
	tree    map[oracle.ID]oracle.ID
	patchID map[oracle.ID]string
}

var _ oracle.Oracle = (*fakeOracle)(nil)

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		parents: make(map[oracle.ID][]oracle.ID),
		subject: make(map[oracle.ID]string),
		tree:    make(map[oracle.ID]oracle.ID),
		patchID: make(map[oracle.ID]string),
	}
}

func (f *fakeOracle) add(id oracle.ID, subject string, tree oracle.ID, parents ...oracle.ID) {
	f.parents[id] = parents
	f.subject[id] = subject
	f.tree[id] = tree
	f.patchID[id] = "patch-" + string(id)
}

func (f *fakeOracle) Resolve(_ context.Context, ref string) (oracle.ID, error) {
	return oracle.ID(ref), nil
}

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

func (f *fakeOracle) Tree(_ context.Context, id oracle.ID) (oracle.ID, error) {
	return f.tree[id], nil
}

func (f *fakeOracle) Message(_ context.Context, id oracle.ID) (string, error) {
	return f.subject[id], nil
}

func (f *fakeOracle) Subject(_ context.Context, id oracle.ID) (string, error) {
	return f.subject[id], nil
}

func (f *fakeOracle) CommitAuthor(context.Context, oracle.ID) (oracle.Author, error) {
	return oracle.Author{}, nil
}

func (f *fakeOracle) Short(_ context.Context, id oracle.ID) (string, error) {
	return id.Short(), nil
}

func (f *fakeOracle) Exists(_ context.Context, id oracle.ID) bool {
	_, ok := f.subject[id]
	return ok
}

func (f *fakeOracle) IsAncestor(ctx context.Context, a, b oracle.ID) bool {
	if a == b {
		return true
	}
	parent, ok, _ := f.FirstParent(ctx, b)
	for ok {
		if parent == a {
			return true
		}
		parent, ok, _ = f.FirstParent(ctx, parent)
	}
	return false
}

func (f *fakeOracle) PatchID(_ context.Context, id oracle.ID) (string, error) {
	return f.patchID[id], nil
}

func (f *fakeOracle) MergeBase(ctx context.Context, a, b oracle.ID) (oracle.ID, error) {
	if f.IsAncestor(ctx, a, b) {
		return a, nil
	}
	if f.IsAncestor(ctx, b, a) {
		return b, nil
	}
	return "", fmt.Errorf("no common ancestor")
}

// linear history: A -> B -> C -> D, tree ids distinct so nothing is empty.
func linearFixture() *fakeOracle {
	f := newFakeOracle()
	f.add("A", "init", "tA")
	f.add("B", "add feature", "tB", "A")
	f.add("C", "fix bug", "tC", "B")
	f.add("D", "more work", "tD", "C")
	return f
}

func TestGenerate_linear(t *testing.T) {
	f := linearFixture()
	p := New(f)

	prog, err := p.Generate(context.Background(), GenerateOptions{Base: "A", Tip: "D"})
	require.NoError(t, err)
	require.Len(t, prog, 3)
	assert.Equal(t, todo.OpPick, prog[0].Instr.Op)
	assert.Equal(t, oracle.ID("B"), prog[0].Instr.Commit)
	assert.Equal(t, oracle.ID("C"), prog[1].Instr.Commit)
	assert.Equal(t, oracle.ID("D"), prog[2].Instr.Commit)
}

func TestGenerate_emptyCommitCommentedOut(t *testing.T) {
	f := linearFixture()
	f.add("E", "empty change", "tC", "C") // same tree as its parent C: empty

	p := New(f)
	prog, err := p.Generate(context.Background(), GenerateOptions{Base: "C", Tip: "E"})
	require.NoError(t, err)
	require.Len(t, prog, 1)
	assert.True(t, prog[0].IsText)
	assert.Contains(t, prog[0].Text, "# pick")
}

func TestGenerate_golden(t *testing.T) {
	f := linearFixture()
	p := New(f)

	prog, err := p.Generate(context.Background(), GenerateOptions{Base: "A", Tip: "D"})
	require.NoError(t, err)

	autogold.Expect("pick B add feature\npick C fix bug\npick D more work\n").Equal(t, prog.String())
}

func TestGenerate_keepEmpty(t *testing.T) {
	f := linearFixture()
	f.add("E", "empty change", "tC", "C")

	p := New(f)
	prog, err := p.Generate(context.Background(), GenerateOptions{Base: "C", Tip: "E", KeepEmpty: true})
	require.NoError(t, err)
	require.Len(t, prog, 1)
	require.False(t, prog[0].IsText)
	assert.Equal(t, todo.OpPick, prog[0].Instr.Op)
}

func mustParse(t *testing.T, text string) todo.Program {
	t.Helper()
	prog, err := todo.Parse(text)
	require.NoError(t, err)
	return prog
}

func TestAutosquash(t *testing.T) {
	prog := mustParse(t, "pick aaa1111 fix foo\npick bbb2222 fixup! fix foo\npick ccc3333 unrelated\n")
	got := Autosquash(prog)

	require.Len(t, got, 3)
	assert.Equal(t, todo.OpPick, got[0].Instr.Op)
	assert.Equal(t, oracle.ID("aaa1111"), got[0].Instr.Commit)
	assert.Equal(t, todo.OpFixup, got[1].Instr.Op)
	assert.Equal(t, oracle.ID("bbb2222"), got[1].Instr.Commit)
	assert.Equal(t, oracle.ID("ccc3333"), got[2].Instr.Commit)
}

func TestAutosquash_multipleFixupsStayContiguous(t *testing.T) {
	prog := mustParse(t, "pick aaa1111 fix foo\npick ddd4444 unrelated\npick bbb2222 fixup! fix foo\npick ccc3333 squash! fix foo\n")
	got := Autosquash(prog)

	require.Len(t, got, 4)
	assert.Equal(t, oracle.ID("aaa1111"), got[0].Instr.Commit)
	assert.Equal(t, todo.OpFixup, got[1].Instr.Op)
	assert.Equal(t, oracle.ID("bbb2222"), got[1].Instr.Commit)
	assert.Equal(t, todo.OpSquash, got[2].Instr.Op)
	assert.Equal(t, oracle.ID("ccc3333"), got[2].Instr.Commit)
	assert.Equal(t, oracle.ID("ddd4444"), got[3].Instr.Commit)
}

func TestInsertExec(t *testing.T) {
	prog := mustParse(t, "pick aaa1111 x\nfixup bbb2222 y\nsquash ccc3333 z\npick ddd4444 w\n")
	got := InsertExec(prog, "make test")

	require.Len(t, got, 7)
	assert.Equal(t, todo.OpExec, got[1].Instr.Op)
	assert.Equal(t, "make test", got[1].Instr.Command)
	assert.Equal(t, todo.OpExec, got[4].Instr.Op, "exec after end of squash/fixup run")
	assert.Equal(t, todo.OpExec, got[6].Instr.Op, "exec after final pick")
}

func TestSkipUnnecessaryPicks(t *testing.T) {
	f := linearFixture()
	p := New(f)
	prog := mustParse(t, "pick B subject\npick C subject\nsquash D subject\n")

	res, err := p.SkipUnnecessaryPicks(context.Background(), prog, "A")
	require.NoError(t, err)

	assert.Equal(t, oracle.ID("C"), res.Onto)
	assert.Len(t, res.Skipped, 2)
	assert.Len(t, res.Remaining, 1)
	assert.True(t, res.AttachPending)
}

func TestSkipUnnecessaryPicks_stopsAtMismatchedParent(t *testing.T) {
	f := linearFixture()
	p := New(f)
	prog := mustParse(t, "pick C subject\npick D subject\n")

	res, err := p.SkipUnnecessaryPicks(context.Background(), prog, "A")
	require.NoError(t, err)

	assert.Equal(t, oracle.ID("A"), res.Onto)
	assert.Empty(t, res.Skipped)
	assert.Len(t, res.Remaining, 2)
	assert.False(t, res.AttachPending)
}

// mergeFixture is A -> B -> C on the main line, A -> X on a side branch,
// and a merge M of C and X.
func mergeFixture() *fakeOracle {
	f := newFakeOracle()
	f.add("A", "init", "tA")
	f.add("B", "add feature", "tB", "A")
	f.add("C", "fix bug", "tC", "B")
	f.add("X", "side work", "tX", "A")
	f.add("M", "merge side into main", "tM", "C", "X")
	return f
}

func TestGeneratePreserveMerges_linearMatchesFlatGenerate(t *testing.T) {
	f := linearFixture()
	p := New(f)

	prog, err := p.GeneratePreserveMerges(context.Background(), PreserveMergesOptions{Base: "A", Tip: "D"})
	require.NoError(t, err)

	var picks []oracle.ID
	for _, line := range prog {
		if !line.IsText && line.Instr.Op == todo.OpPick {
			picks = append(picks, line.Instr.Commit)
		}
	}
	assert.Equal(t, []oracle.ID{"B", "C", "D"}, picks)

	// No branch point is replayed twice, so no label besides the leading
	// "onto" bookmark is needed.
	for _, line := range prog {
		if !line.IsText && line.Instr.Op == todo.OpLabel {
			assert.Equal(t, ontoLabel, line.Instr.Name)
		}
	}
}

func TestGeneratePreserveMerges_mergeCommit(t *testing.T) {
	f := mergeFixture()
	p := New(f)

	prog, err := p.GeneratePreserveMerges(context.Background(), PreserveMergesOptions{Base: "A", Tip: "M"})
	require.NoError(t, err)
	require.NotEmpty(t, prog)

	assert.Equal(t, todo.OpLabel, prog[0].Instr.Op)
	assert.Equal(t, ontoLabel, prog[0].Instr.Name)

	var picks []oracle.ID
	var merges []*todo.Instruction
	labels := make(map[string]bool)
	for _, line := range prog {
		if line.IsText {
			continue
		}
		switch line.Instr.Op {
		case todo.OpPick:
			picks = append(picks, line.Instr.Commit)
		case todo.OpMerge:
			merges = append(merges, line.Instr)
		case todo.OpLabel:
			labels[line.Instr.Name] = true
		}
	}

	assert.ElementsMatch(t, []oracle.ID{"B", "C", "X"}, picks)
	require.Len(t, merges, 1)
	assert.Equal(t, oracle.ID("M"), merges[0].MergeCommit)
	require.Len(t, merges[0].MergeParents, 2)

	// X is a merge's non-first parent, so it must be reachable by label.
	assert.True(t, labels["rewritten-X"], "expected a rewritten-X label, got labels %v", labels)

	for i := 1; i < len(prog); i++ {
		assert.NotEqual(t, prog[i-1].Format(), prog[i].Format(), "adjacent lines should have been collapsed")
	}
}

func TestGeneratePreserveMerges_emptyRange(t *testing.T) {
	f := linearFixture()
	p := New(f)

	prog, err := p.GeneratePreserveMerges(context.Background(), PreserveMergesOptions{Base: "D", Tip: "D"})
	require.NoError(t, err)
	require.Len(t, prog, 1)
	assert.Equal(t, todo.OpLabel, prog[0].Instr.Op)
}

func TestCollapseDuplicateAdjacent(t *testing.T) {
	prog := todo.Program{
		todo.Line{Instr: &todo.Instruction{Op: todo.OpGoto, Name: "onto"}},
		todo.Line{Instr: &todo.Instruction{Op: todo.OpGoto, Name: "onto"}},
		todo.Line{Instr: &todo.Instruction{Op: todo.OpPick, Commit: "A", Subject: "x"}},
	}

	got := collapseDuplicateAdjacent(prog)
	require.Len(t, got, 2)
	assert.Equal(t, todo.OpGoto, got[0].Instr.Op)
	assert.Equal(t, todo.OpPick, got[1].Instr.Op)
}

func TestReachableRangeAllParents_keepsMerges(t *testing.T) {
	f := mergeFixture()
	p := New(f)

	ids, parentsOf, err := p.reachableRangeAllParents(context.Background(), "A", "M")
	require.NoError(t, err)

	assert.ElementsMatch(t, []oracle.ID{"B", "C", "X", "M"}, ids)
	assert.Equal(t, []oracle.ID{"C", "X"}, parentsOf["M"])

	// C must precede M, B must precede C; beyond that B and X are
	// unordered siblings.
	index := make(map[oracle.ID]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	assert.Less(t, index["B"], index["C"])
	assert.Less(t, index["C"], index["M"])
	assert.Less(t, index["X"], index["M"])
}

func TestAutosquash_idempotent(t *testing.T) {
	rapid.Check(t, testAutosquashIdempotent)
}

func testAutosquashIdempotent(t *rapid.T) {
	nTargets := rapid.IntRange(1, 4).Draw(t, "nTargets")

	var prog todo.Program
	for i := range nTargets {
		subject := fmt.Sprintf("target%d", i)
		commit := fmt.Sprintf("t%d", i)
		prog = append(prog, todo.Line{Instr: &todo.Instruction{
			Op: todo.OpPick, Commit: oracle.ID(commit), Subject: subject,
		}})

		followers := rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("followers%d", i))
		for j := range followers {
			prefix := "fixup! "
			if rapid.Bool().Draw(t, fmt.Sprintf("isSquash%d_%d", i, j)) {
				prefix = "squash! "
			}
			prog = append(prog, todo.Line{Instr: &todo.Instruction{
				Op:      todo.OpPick,
				Commit:  oracle.ID(fmt.Sprintf("f%d_%d", i, j)),
				Subject: prefix + subject,
			}})
		}
	}

	once := Autosquash(prog)
	twice := Autosquash(once)
	assert.Equal(t, once, twice)
}
