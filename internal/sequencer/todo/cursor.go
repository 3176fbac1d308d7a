package todo

import "go.abhg.dev/container/ring"

// Cursor walks a Program one line at a time, exposing peek_next_command
// without consuming. The remaining lines live in a FIFO queue; lines
// already dequeued to satisfy a peek are held in a small buffer and
// replayed before the queue resumes, so that Next and PeekNextCommand
// agree on ordering regardless of call order.
type Cursor struct {
	pending   ring.Q[Line]
	lookahead []Line
}

// NewCursor returns a Cursor positioned at the start of p.
func NewCursor(p Program) *Cursor {
	c := &Cursor{}
	for _, l := range p {
		c.pending.Push(l)
	}
	return c
}

// Next returns the next line and advances the cursor, or reports false if
// the program is exhausted.
func (c *Cursor) Next() (Line, bool) {
	if len(c.lookahead) > 0 {
		l := c.lookahead[0]
		c.lookahead = c.lookahead[1:]
		return l, true
	}
	if c.pending.Empty() {
		return Line{}, false
	}
	return c.pending.Pop(), true
}

// Remaining reports whether any lines, consumed or not, remain to be read.
func (c *Cursor) Remaining() bool {
	return len(c.lookahead) > 0 || !c.pending.Empty()
}

// Remainder returns every line not yet returned by Next, in order, without
// consuming them -- used to persist the todo file after popping the
// line currently being executed.
func (c *Cursor) Remainder() Program {
	var prog Program
	prog = append(prog, c.lookahead...)
	for !c.pending.Empty() {
		prog = append(prog, c.pending.Pop())
	}
	return prog
}

// PeekNextCommand returns the opcode of the next non-comment, non-blank
// instruction without consuming any lines, skipping over interleaved
// comments and blank lines (which remain in the buffer for Next to
// return). Reports false if no such instruction remains.
func (c *Cursor) PeekNextCommand() (Op, bool) {
	// Drain everything left in pending into lookahead, then scan the
	// buffer.
	for !c.pending.Empty() {
		c.lookahead = append(c.lookahead, c.pending.Pop())
	}
	for _, l := range c.lookahead {
		if !l.IsText {
			return l.Instr.Op, true
		}
	}
	return 0, false
}
