// Package todo implements the parser and in-memory representation of a
// rebase todo program: the ordered sequence of instructions (plus
// interleaved comments and blank lines) that the executor consumes one
// line at a time.
//
// The program is kept as a first-class value and reserialized verbatim on
// request, so that a user invoking `edit-todo` between pauses sees exactly
// the text they would expect, comments included.
package todo

import (
	"fmt"
	"strings"

	"github.com/buildkite/shellwords"

	"github.com/gitseq/sequencer/internal/oracle"
)

// Op identifies an instruction's opcode.
type Op int

// Recognized opcodes, long form first; short forms are accepted on parse
// but never produced on format.
const (
	OpPick Op = iota
	OpReword
	OpEdit
	OpSquash
	OpFixup
	OpExec
	OpLabel
	OpGoto
	OpMerge
	OpNoop
)

func (op Op) String() string {
	switch op {
	case OpPick:
		return "pick"
	case OpReword:
		return "reword"
	case OpEdit:
		return "edit"
	case OpSquash:
		return "squash"
	case OpFixup:
		return "fixup"
	case OpExec:
		return "exec"
	case OpLabel:
		return "label"
	case OpGoto:
		return "goto"
	case OpMerge:
		return "merge"
	case OpNoop:
		return "noop"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// IsCommitProducing reports whether successfully executing op produces (or
// amends into) a final commit and therefore participates in rewritten-list
// bookkeeping.
func (op Op) IsCommitProducing() bool {
	switch op {
	case OpPick, OpReword, OpEdit, OpSquash, OpFixup:
		return true
	default:
		return false
	}
}

var longform = map[string]Op{
	"pick": OpPick, "p": OpPick,
	"reword": OpReword, "r": OpReword,
	"edit": OpEdit, "e": OpEdit,
	"squash": OpSquash, "s": OpSquash,
	"fixup": OpFixup, "f": OpFixup,
	"exec": OpExec, "x": OpExec,
	"label": OpLabel, "l": OpLabel,
	"goto": OpGoto, "g": OpGoto,
	"merge": OpMerge, "m": OpMerge,
	"noop": OpNoop,
}

// Ref names either a raw commit or a label defined earlier in the program
// by a Label instruction, per the grammar for merge parents.
type Ref struct {
	Label  string
	Commit oracle.ID
}

func (r Ref) String() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Commit.String()
}

// IsLabel reports whether the ref names a label rather than a commit.
func (r Ref) IsLabel() bool { return r.Label != "" }

// ParseRef interprets tok as a commit id unless it matches the shape of a
// label produced by a preceding Label instruction; label resolution itself
// happens later, against the LabelMap, so at parse time any token that is
// not a commit-like hex id is provisionally treated as a label name.
func ParseRef(tok string) Ref {
	if looksLikeCommit(tok) {
		return Ref{Commit: oracle.ID(tok)}
	}
	return Ref{Label: tok}
}

func looksLikeCommit(tok string) bool {
	if len(tok) < 4 {
		return false
	}
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Instruction is a single parsed todo line. It is a closed sum type: Op
// selects which fields are meaningful, keeping serialization and
// exhaustive dispatch in the executor a single switch rather than a type
// hierarchy.
type Instruction struct {
	Op Op

	// Commit is the subject commit for Pick, Reword, Edit, Squash, Fixup.
	Commit oracle.ID

	// Subject is the informational commit subject trailing a commit
	// opcode; it is cosmetic (re-derived from the commit on execution)
	// but preserved so the serialized todo reads the way a human wrote
	// it.
	Subject string

	// Name is the label argument for Label and Goto.
	Name string

	// Command is the shell command for Exec; the entire remainder of
	// the line after the opcode, unparsed.
	Command string

	// MergeCommit is the commit named by merge's optional `-c <id>`
	// message-source flag.
	MergeCommit oracle.ID
	// HasMergeCommit distinguishes an explicitly empty message source
	// from one that was never set.
	HasMergeCommit bool
	// MergeParents are the refs to merge for a Merge instruction.
	MergeParents []Ref
}

// Line is either a parsed Instruction or verbatim text: a comment, a blank
// line, or (transiently, before the planner comments it out) a disabled
// pick. Exactly one of Instr or Text is meaningful, selected by IsText.
type Line struct {
	Instr  *Instruction
	Text   string // verbatim source, including any leading "# "
	IsText bool
}

// Program is an ordered sequence of todo lines, preserving exact textual
// form for lines that are comments or blank.
type Program []Line

// String reserializes the program to its textual todo-file form.
func (p Program) String() string {
	var b strings.Builder
	for _, l := range p {
		b.WriteString(l.Format())
		b.WriteByte('\n')
	}
	return b.String()
}

// Format renders a single line back to its textual form.
func (l Line) Format() string {
	if l.IsText {
		return l.Text
	}
	return l.Instr.Format()
}

// Format renders an instruction back to its canonical textual form, always
// using the long opcode name.
func (in *Instruction) Format() string {
	switch in.Op {
	case OpExec:
		return "exec " + in.Command
	case OpLabel:
		return "label " + in.Name
	case OpGoto:
		return "goto " + in.Name
	case OpNoop:
		return "noop"
	case OpMerge:
		var b strings.Builder
		b.WriteString("merge ")
		if in.HasMergeCommit {
			fmt.Fprintf(&b, "-c %s ", in.MergeCommit)
		}
		parents := make([]string, len(in.MergeParents))
		for i, p := range in.MergeParents {
			parents[i] = p.String()
		}
		b.WriteString(strings.Join(parents, " "))
		return b.String()
	default:
		if in.Subject != "" {
			return fmt.Sprintf("%s %s %s", in.Op, in.Commit.Short(), in.Subject)
		}
		return fmt.Sprintf("%s %s", in.Op, in.Commit.Short())
	}
}

// Parse reads a todo program from its textual form. Unknown opcodes are
// reported as *UnknownOpError; the caller decides (per spec) whether the
// offending token nevertheless resolves as a commit and should instead be
// treated as a conflict-style pause.
func Parse(text string) (Program, error) {
	lines := strings.Split(text, "\n")
	// A trailing newline produces one spurious empty trailing element;
	// drop it so round-tripping an empty final line is unambiguous.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	prog := make(Program, 0, len(lines))
	for _, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			prog = append(prog, Line{Text: raw, IsText: true})
			continue
		}

		fields := strings.SplitN(trimmed, " ", 2)
		opTok := fields[0]
		var rest string
		if len(fields) == 2 {
			rest = fields[1]
		}

		op, ok := longform[opTok]
		if !ok {
			return nil, &UnknownOpError{Line: raw, Opcode: opTok}
		}

		instr, err := parseArgs(op, rest)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", raw, err)
		}
		prog = append(prog, Line{Instr: instr})
	}
	return prog, nil
}

// UnknownOpError is returned by Parse when a line's opcode token does not
// match any known instruction.
type UnknownOpError struct {
	Line   string
	Opcode string
}

func (e *UnknownOpError) Error() string {
	return fmt.Sprintf("unknown instruction %q in line %q", e.Opcode, e.Line)
}

func parseArgs(op Op, rest string) (*Instruction, error) {
	switch op {
	case OpExec:
		return &Instruction{Op: op, Command: rest}, nil
	case OpLabel, OpGoto:
		name, err := firstToken(rest)
		if err != nil {
			return nil, err
		}
		return &Instruction{Op: op, Name: name}, nil
	case OpNoop:
		return &Instruction{Op: op}, nil
	case OpMerge:
		return parseMerge(rest)
	default: // Pick, Reword, Edit, Squash, Fixup
		fields := strings.SplitN(rest, " ", 2)
		if fields[0] == "" {
			return nil, fmt.Errorf("%v requires a commit", op)
		}
		in := &Instruction{Op: op, Commit: oracle.ID(fields[0])}
		if len(fields) == 2 {
			in.Subject = fields[1]
		}
		return in, nil
	}
}

func firstToken(rest string) (string, error) {
	toks, err := shellwords.SplitPosix(rest)
	if err != nil {
		return "", fmt.Errorf("tokenize %q: %w", rest, err)
	}
	if len(toks) == 0 {
		return "", fmt.Errorf("expected a name, got nothing")
	}
	return toks[0], nil
}

func parseMerge(rest string) (*Instruction, error) {
	toks, err := shellwords.SplitPosix(rest)
	if err != nil {
		return nil, fmt.Errorf("tokenize merge args %q: %w", rest, err)
	}

	in := &Instruction{Op: OpMerge}
	i := 0
	if i < len(toks) && toks[i] == "-c" {
		if i+1 >= len(toks) {
			return nil, fmt.Errorf("merge -c requires a commit")
		}
		in.HasMergeCommit = true
		in.MergeCommit = oracle.ID(toks[i+1])
		i += 2
	}
	if i >= len(toks) {
		return nil, fmt.Errorf("merge requires at least one parent")
	}
	for ; i < len(toks); i++ {
		in.MergeParents = append(in.MergeParents, ParseRef(toks[i]))
	}
	return in, nil
}
