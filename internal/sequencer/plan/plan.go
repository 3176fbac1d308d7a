// Package plan generates and rearranges a todo program: the initial pick
// sequence for a revision range, autosquash reordering, exec-line
// insertion, and the unnecessary-pick skip-walk a `start` invocation runs
// before entering the executor loop.
package plan

import (
	"context"
	"fmt"
	"strings"

	"go.abhg.dev/container/ring"

	"github.com/gitseq/sequencer/internal/oracle"
	"github.com/gitseq/sequencer/internal/sequencer/todo"
)

// GenerateOptions configures initial todo generation.
type GenerateOptions struct {
	// Base and Tip delimit the revision range base..tip.
	Base, Tip oracle.ID

	// KeepEmpty, if false, comments out picks whose tree equals their
	// first parent's tree instead of dropping them from the todo
	// entirely -- the commit remains visible, just disabled.
	KeepEmpty bool

	// Autosquash rearranges squash!/fixup! subjects next to their
	// targets and converts their opcode.
	Autosquash bool

	// Exec, if non-empty, is inserted as an `exec` line after every
	// pick and after the last line of every contiguous squash/fixup
	// run.
	Exec string
}

// Planner generates and rearranges todo programs against a commit graph.
type Planner struct {
	Oracle oracle.Oracle
}

// New returns a Planner backed by o.
func New(o oracle.Oracle) *Planner {
	return &Planner{Oracle: o}
}

// Generate produces the initial todo program for opts.Base..opts.Tip:
// non-merge commits reachable from Tip excluding ancestors of Base,
// deduplicated against Base's side by cherry-pick equivalence, oldest
// first, then (if requested) autosquashed and exec-interleaved.
func (p *Planner) Generate(ctx context.Context, opts GenerateOptions) (todo.Program, error) {
	ids, err := p.reachableRange(ctx, opts.Base, opts.Tip)
	if err != nil {
		return nil, fmt.Errorf("enumerate range: %w", err)
	}

	skip, err := p.baseSidePatchIDs(ctx, opts.Base, opts.Tip)
	if err != nil {
		return nil, fmt.Errorf("compute base-side patch ids: %w", err)
	}

	prog := make(todo.Program, 0, len(ids))
	for _, id := range ids {
		if len(skip) > 0 {
			patchID, err := p.Oracle.PatchID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("patch id of %v: %w", id, err)
			}
			if skip[patchID] {
				continue
			}
		}

		line, err := p.pickLine(ctx, id, opts.KeepEmpty)
		if err != nil {
			return nil, fmt.Errorf("build pick line for %v: %w", id, err)
		}
		prog = append(prog, line)
	}

	if opts.Autosquash {
		prog = Autosquash(prog)
	}
	if opts.Exec != "" {
		prog = InsertExec(prog, opts.Exec)
	}
	return prog, nil
}

func (p *Planner) pickLine(ctx context.Context, id oracle.ID, keepEmpty bool) (todo.Line, error) {
	subject, err := p.Oracle.Subject(ctx, id)
	if err != nil {
		return todo.Line{}, fmt.Errorf("subject: %w", err)
	}

	empty, err := p.isEmpty(ctx, id)
	if err != nil {
		return todo.Line{}, fmt.Errorf("empty check: %w", err)
	}

	instr := &todo.Instruction{Op: todo.OpPick, Commit: id, Subject: subject}
	if empty && !keepEmpty {
		return todo.Line{Text: "# " + instr.Format(), IsText: true}, nil
	}
	return todo.Line{Instr: instr}, nil
}

func (p *Planner) isEmpty(ctx context.Context, id oracle.ID) (bool, error) {
	parent, ok, err := p.Oracle.FirstParent(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	tree, err := p.Oracle.Tree(ctx, id)
	if err != nil {
		return false, err
	}
	parentTree, err := p.Oracle.Tree(ctx, parent)
	if err != nil {
		return false, err
	}
	return tree == parentTree, nil
}

// reachableRange returns the non-merge commits reachable from tip,
// excluding commits that are ancestors of (or equal to) base, in
// topological order with the oldest commit first.
func (p *Planner) reachableRange(ctx context.Context, base, tip oracle.ID) ([]oracle.ID, error) {
	parentsOf := make(map[oracle.ID][]oracle.ID) // only edges staying within the kept set
	included := make(map[oracle.ID]bool)
	visited := make(map[oracle.ID]bool)

	var frontier ring.Q[oracle.ID]
	frontier.Push(tip)

	for !frontier.Empty() {
		id := frontier.Pop()
		if visited[id] {
			continue
		}
		visited[id] = true

		if id == base || p.Oracle.IsAncestor(ctx, id, base) {
			continue
		}

		parents, err := p.Oracle.Parents(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("parents of %v: %w", id, err)
		}
		if len(parents) <= 1 {
			included[id] = true
		}
		for _, parent := range parents {
			if len(parents) <= 1 {
				parentsOf[id] = append(parentsOf[id], parent)
			}
			if !visited[parent] {
				frontier.Push(parent)
			}
		}
	}

	return topoSortOldestFirst(included, parentsOf), nil
}

// topoSortOldestFirst orders included so that a commit always follows all
// of its in-set parents, using Kahn's algorithm over a ring-backed ready
// queue: commits with no unresolved in-set parent go first.
func topoSortOldestFirst(included map[oracle.ID]bool, parentsOf map[oracle.ID][]oracle.ID) []oracle.ID {
	childrenOf := make(map[oracle.ID][]oracle.ID)
	remaining := make(map[oracle.ID]int, len(included))

	for id := range included {
		var n int
		for _, parent := range parentsOf[id] {
			if included[parent] {
				n++
				childrenOf[parent] = append(childrenOf[parent], id)
			}
		}
		remaining[id] = n
	}

	var ready ring.Q[oracle.ID]
	for id, n := range remaining {
		if n == 0 {
			ready.Push(id)
		}
	}

	order := make([]oracle.ID, 0, len(included))
	for !ready.Empty() {
		id := ready.Pop()
		order = append(order, id)
		for _, child := range childrenOf[id] {
			remaining[child]--
			if remaining[child] == 0 {
				ready.Push(child)
			}
		}
	}
	return order
}

// baseSidePatchIDs collects the patch identities of non-merge commits
// unique to base's side of history relative to tip, for cherry-pick
// equivalence deduplication of tip's side.
func (p *Planner) baseSidePatchIDs(ctx context.Context, base, tip oracle.ID) (map[string]bool, error) {
	mergeBase, err := p.Oracle.MergeBase(ctx, base, tip)
	if err != nil {
		return nil, fmt.Errorf("merge-base: %w", err)
	}
	if mergeBase == base {
		return nil, nil // base is already an ancestor of tip; nothing to dedup against
	}

	ids, err := p.reachableRange(ctx, mergeBase, base)
	if err != nil {
		return nil, fmt.Errorf("enumerate base side: %w", err)
	}

	patchIDs := make(map[string]bool, len(ids))
	for _, id := range ids {
		patchID, err := p.Oracle.PatchID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("patch id of %v: %w", id, err)
		}
		patchIDs[patchID] = true
	}
	return patchIDs, nil
}

// Autosquash rearranges picks whose subjects begin with "squash! " or
// "fixup! " so they immediately follow their target commit's line (and
// any squash/fixup lines already attached to it), converting their opcode
// accordingly. Lines that do not match any target are left untouched.
func Autosquash(prog todo.Program) todo.Program {
	out := make(todo.Program, 0, len(prog))
	attachPoint := make(map[oracle.ID]int) // target commit -> index in out of its run's last line

	for _, line := range prog {
		op, remainder := autosquashTarget(line)
		if op == 0 {
			out = append(out, line)
			continue
		}

		target, idx, found := findAutosquashTarget(out, remainder)
		if !found {
			out = append(out, line)
			continue
		}

		line.Instr.Op = op
		insertAt := idx + 1
		if at, ok := attachPoint[target]; ok {
			insertAt = at + 1
		}
		out = insertLine(out, insertAt, line)
		shiftAttachPoints(attachPoint, insertAt)
		attachPoint[target] = insertAt
	}
	return out
}

func shiftAttachPoints(attachPoint map[oracle.ID]int, insertedAt int) {
	for id, idx := range attachPoint {
		if idx >= insertedAt {
			attachPoint[id] = idx + 1
		}
	}
}

func insertLine(lines todo.Program, at int, line todo.Line) todo.Program {
	lines = append(lines, todo.Line{})
	copy(lines[at+1:], lines[at:])
	lines[at] = line
	return lines
}

// autosquashTarget reports the opcode a squash!/fixup! pick should become
// and the target description from its subject, or op==0 if line is not
// such a pick.
func autosquashTarget(line todo.Line) (op todo.Op, remainder string) {
	if line.IsText || line.Instr.Op != todo.OpPick {
		return 0, ""
	}
	switch {
	case strings.HasPrefix(line.Instr.Subject, "squash! "):
		return todo.OpSquash, strings.TrimPrefix(line.Instr.Subject, "squash! ")
	case strings.HasPrefix(line.Instr.Subject, "fixup! "):
		return todo.OpFixup, strings.TrimPrefix(line.Instr.Subject, "fixup! ")
	default:
		return 0, ""
	}
}

func findAutosquashTarget(lines todo.Program, remainder string) (target oracle.ID, idx int, found bool) {
	for i, line := range lines {
		if line.IsText || !line.Instr.Op.IsCommitProducing() {
			continue
		}
		in := line.Instr
		if in.Commit.String() == remainder ||
			in.Commit.Short() == remainder ||
			in.Subject == remainder ||
			strings.HasPrefix(in.Subject, remainder) {
			return in.Commit, i, true
		}
	}
	return "", 0, false
}

// InsertExec interleaves an `exec cmd` line after every pick and after the
// last line of every contiguous squash/fixup run.
func InsertExec(prog todo.Program, cmd string) todo.Program {
	out := make(todo.Program, 0, len(prog)+len(prog)/2+1)
	for i, line := range prog {
		out = append(out, line)
		if line.IsText {
			continue
		}
		switch line.Instr.Op {
		case todo.OpPick:
			out = append(out, execLine(cmd))
		case todo.OpSquash, todo.OpFixup:
			if runEndsAt(prog, i) {
				out = append(out, execLine(cmd))
			}
		}
	}
	return out
}

func runEndsAt(prog todo.Program, i int) bool {
	for j := i + 1; j < len(prog); j++ {
		if prog[j].IsText {
			continue
		}
		return prog[j].Instr.Op != todo.OpSquash && prog[j].Instr.Op != todo.OpFixup
	}
	return true
}

func execLine(cmd string) todo.Line {
	return todo.Line{Instr: &todo.Instruction{Op: todo.OpExec, Command: cmd}}
}

// PreserveMergesOptions configures expansion into a label/goto/merge
// program that reproduces merge commits instead of flattening them.
type PreserveMergesOptions struct {
	// Base and Tip delimit the revision range base..tip, as in
	// GenerateOptions, but merge commits are not excluded.
	Base, Tip oracle.ID
}

const ontoLabel = "onto"

// GeneratePreserveMerges produces a label/goto/merge program for
// opts.Base..opts.Tip: every commit in the range, merges included, is
// replayed with its original topology instead of being linearized.
//
// Every commit that is later referenced as a parent -- a branch point, or
// any non-trivial parent of a merge -- is given a unique label
// `rewritten-<id>` immediately after it is replayed. Moving HEAD to a
// label that is not the line currently being built emits a `goto`;
// a parent outside the rebased set resolves to the literal "onto" label
// prefixed onto the program. Adjacent duplicate lines are collapsed.
func (p *Planner) GeneratePreserveMerges(ctx context.Context, opts PreserveMergesOptions) (todo.Program, error) {
	ids, parentsOf, err := p.reachableRangeAllParents(ctx, opts.Base, opts.Tip)
	if err != nil {
		return nil, fmt.Errorf("enumerate range: %w", err)
	}
	inSet := make(map[oracle.ID]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}
	needsLabel := preserveMergesLabels(ids, parentsOf, inSet)

	gotoTarget := func(parent oracle.ID) string {
		if inSet[parent] {
			return "rewritten-" + parent.String()
		}
		return ontoLabel
	}

	prog := todo.Program{
		todo.Line{Instr: &todo.Instruction{Op: todo.OpLabel, Name: ontoLabel}},
	}
	var current oracle.ID // "" is the sentinel for sitting on the onto label

	for _, id := range ids {
		parents := parentsOf[id]

		var firstTarget oracle.ID
		if len(parents) > 0 {
			firstTarget = parents[0]
		}
		if firstTarget != current {
			prog = append(prog, todo.Line{Instr: &todo.Instruction{Op: todo.OpGoto, Name: gotoTarget(firstTarget)}})
			current = firstTarget
		}

		if len(parents) <= 1 {
			subject, err := p.Oracle.Subject(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("subject of %v: %w", id, err)
			}
			prog = append(prog, todo.Line{Instr: &todo.Instruction{
				Op: todo.OpPick, Commit: id, Subject: subject,
			}})
		} else {
			// Every parent, the first included, is named by label:
			// a merge op carries no implicit "current HEAD" parent
			// the way a pick does.
			refs := make([]todo.Ref, len(parents))
			for i, parent := range parents {
				if inSet[parent] {
					refs[i] = todo.Ref{Label: gotoTarget(parent)}
				} else {
					refs[i] = todo.Ref{Commit: parent}
				}
			}
			prog = append(prog, todo.Line{Instr: &todo.Instruction{
				Op: todo.OpMerge, HasMergeCommit: true, MergeCommit: id, MergeParents: refs,
			}})
		}
		current = id

		if needsLabel[id] {
			prog = append(prog, todo.Line{Instr: &todo.Instruction{
				Op: todo.OpLabel, Name: "rewritten-" + id.String(),
			}})
		}
	}

	return collapseDuplicateAdjacent(prog), nil
}

// preserveMergesLabels decides which in-set commits need a `rewritten-<id>`
// label: every in-set parent of a merge (named by label regardless of its
// parent index, since a merge op has no implicit first-parent the way a
// pick does), plus any commit that a later pick or merge reaches by `goto`
// because it isn't the one immediately preceding it in ids' order.
func preserveMergesLabels(ids []oracle.ID, parentsOf map[oracle.ID][]oracle.ID, inSet map[oracle.ID]bool) map[oracle.ID]bool {
	needsLabel := make(map[oracle.ID]bool)
	var prev oracle.ID
	for _, id := range ids {
		parents := parentsOf[id]
		switch {
		case len(parents) > 1:
			for _, parent := range parents {
				if inSet[parent] {
					needsLabel[parent] = true
				}
			}
		case len(parents) == 1:
			if parent := parents[0]; inSet[parent] && parent != prev {
				needsLabel[parent] = true
			}
		}
		prev = id
	}
	return needsLabel
}

// reachableRangeAllParents is like reachableRange but keeps merge commits
// and every parent edge (not just first-parent), as preserve-merges needs
// the full topology rather than a linearization.
func (p *Planner) reachableRangeAllParents(ctx context.Context, base, tip oracle.ID) ([]oracle.ID, map[oracle.ID][]oracle.ID, error) {
	parentsOf := make(map[oracle.ID][]oracle.ID)
	included := make(map[oracle.ID]bool)
	visited := make(map[oracle.ID]bool)

	var frontier ring.Q[oracle.ID]
	frontier.Push(tip)

	for !frontier.Empty() {
		id := frontier.Pop()
		if visited[id] {
			continue
		}
		visited[id] = true

		if id == base || p.Oracle.IsAncestor(ctx, id, base) {
			continue
		}
		included[id] = true

		parents, err := p.Oracle.Parents(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("parents of %v: %w", id, err)
		}
		parentsOf[id] = parents
		for _, parent := range parents {
			if !visited[parent] {
				frontier.Push(parent)
			}
		}
	}

	order := topoSortOldestFirst(included, parentsOf)
	return order, parentsOf, nil
}

// collapseDuplicateAdjacent removes a line that is textually identical to
// the one immediately before it, e.g. a goto immediately followed by
// another goto to the same label.
func collapseDuplicateAdjacent(prog todo.Program) todo.Program {
	out := make(todo.Program, 0, len(prog))
	for _, line := range prog {
		if n := len(out); n > 0 && out[n-1].Format() == line.Format() {
			continue
		}
		out = append(out, line)
	}
	return out
}

// SkipResult is the outcome of a skip-walk.
type SkipResult struct {
	// Remaining is the todo program with the skipped prefix removed.
	Remaining todo.Program
	// Skipped holds the lines moved to the done log, in order.
	Skipped todo.Program
	// Onto is the commit the executor should now be positioned on.
	Onto oracle.ID
	// AttachPending is true if the remainder begins with a squash/fixup
	// run, meaning the run's predecessor (Onto) must be recorded in
	// RewrittenPending so the run attaches to the right commit.
	AttachPending bool
}

// SkipUnnecessaryPicks walks prog from the top while the next instruction
// is a pick whose commit's first parent equals onto, moving such lines to
// the skipped list and advancing onto. It stops at the first non-pick,
// non-comment instruction, or a pick whose parent is not onto.
func (p *Planner) SkipUnnecessaryPicks(ctx context.Context, prog todo.Program, onto oracle.ID) (SkipResult, error) {
	i := 0
	var skipped todo.Program
	for i < len(prog) {
		line := prog[i]
		if line.IsText {
			skipped = append(skipped, line)
			i++
			continue
		}
		if line.Instr.Op != todo.OpPick {
			break
		}

		parent, ok, err := p.Oracle.FirstParent(ctx, line.Instr.Commit)
		if err != nil {
			return SkipResult{}, fmt.Errorf("first parent of %v: %w", line.Instr.Commit, err)
		}
		if !ok || parent != onto {
			break
		}

		skipped = append(skipped, line)
		onto = line.Instr.Commit
		i++
	}

	remaining := prog[i:]
	attach := false
	for _, line := range remaining {
		if line.IsText {
			continue
		}
		attach = line.Instr.Op == todo.OpSquash || line.Instr.Op == todo.OpFixup
		break
	}

	return SkipResult{Remaining: remaining, Skipped: skipped, Onto: onto, AttachPending: attach}, nil
}
