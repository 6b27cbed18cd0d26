// Package rewrite implements the tracked edit buffer used to rewrite host
// files. All edits address original-source offsets, so later edits stay
// correct no matter what earlier ones did to the text around them.
package rewrite

import (
	"sort"
	"strings"

	"vinec/internal/core/errors"
)

type EditOp int

const (
	OpRemove EditOp = iota
	OpOverwrite
	OpAppendLeft
	OpAppendRight
	OpPrepend
	OpAppend
)

func (op EditOp) String() string {
	switch op {
	case OpRemove:
		return "remove"
	case OpOverwrite:
		return "overwrite"
	case OpAppendLeft:
		return "append-left"
	case OpAppendRight:
		return "append-right"
	case OpPrepend:
		return "prepend"
	case OpAppend:
		return "append"
	}
	return "unknown"
}

// Edit is one recorded buffer operation.
type Edit struct {
	Op      EditOp
	Span    errors.Span
	Text    string
	Version int
}

// chunk is a contiguous original range and what it currently renders as.
type chunk struct {
	start, end int
	content    string
	edited     bool
	// intro renders before content, outro after. Both are insertions
	// anchored at start and end respectively.
	intro, outro string
}

// Buffer is a MagicString-style edit buffer over one source text.
type Buffer struct {
	original string
	chunks   []*chunk
	intro    string
	outro    string
	version  int
	edits    []Edit
}

func NewBuffer(original string) *Buffer {
	b := &Buffer{original: original}
	b.chunks = []*chunk{{start: 0, end: len(original), content: original}}
	return b
}

func (b *Buffer) Original() string { return b.original }

// Version counts applied edits.
func (b *Buffer) Version() int { return b.version }

// Edits returns the edit log in application order.
func (b *Buffer) Edits() []Edit {
	out := make([]Edit, len(b.edits))
	copy(out, b.edits)
	return out
}

// Remove deletes original[start:end).
func (b *Buffer) Remove(start, end int) error {
	if start == end {
		return nil
	}
	return b.replace(OpRemove, start, end, "")
}

// Overwrite replaces original[start:end) with text.
func (b *Buffer) Overwrite(start, end int, text string) error {
	if start == end {
		return b.invalid(OpOverwrite, start, end, "overwrite of an empty range")
	}
	return b.replace(OpOverwrite, start, end, text)
}

// AppendLeft inserts text at index, attached to the chunk ending there. It
// survives removal of the range that follows index.
func (b *Buffer) AppendLeft(index int, text string) error {
	if err := b.checkIndex(OpAppendLeft, index); err != nil {
		return err
	}
	if index == 0 {
		b.intro += text
	} else {
		if err := b.split(index); err != nil {
			return err
		}
		c := b.chunks[b.find(index-1)]
		c.outro += text
	}
	b.record(OpAppendLeft, errors.Span{Start: index, End: index}, text)
	return nil
}

// AppendRight inserts text at index, attached to the chunk starting there.
func (b *Buffer) AppendRight(index int, text string) error {
	if err := b.checkIndex(OpAppendRight, index); err != nil {
		return err
	}
	if index == len(b.original) {
		b.outro = text + b.outro
	} else {
		if err := b.split(index); err != nil {
			return err
		}
		c := b.chunks[b.find(index)]
		c.intro += text
	}
	b.record(OpAppendRight, errors.Span{Start: index, End: index}, text)
	return nil
}

// Prepend inserts text before everything else.
func (b *Buffer) Prepend(text string) {
	b.intro = text + b.intro
	b.record(OpPrepend, errors.Span{}, text)
}

// Append inserts text after everything else.
func (b *Buffer) Append(text string) {
	b.outro += text
	n := len(b.original)
	b.record(OpAppend, errors.Span{Start: n, End: n}, text)
}

func (b *Buffer) String() string {
	var sb strings.Builder
	sb.Grow(len(b.original) + len(b.intro) + len(b.outro))
	sb.WriteString(b.intro)
	for _, c := range b.chunks {
		sb.WriteString(c.intro)
		sb.WriteString(c.content)
		sb.WriteString(c.outro)
	}
	sb.WriteString(b.outro)
	return sb.String()
}

func (b *Buffer) replace(op EditOp, start, end int, text string) error {
	if start > end || start < 0 || end > len(b.original) {
		return b.invalid(op, start, end, "range out of order or out of bounds")
	}
	if err := b.split(start); err != nil {
		return err
	}
	if err := b.split(end); err != nil {
		return err
	}
	first, last := b.find(start), b.find(end-1)
	for i := first; i <= last; i++ {
		if b.chunks[i].edited {
			return b.invalid(op, start, end, "overlaps an earlier edit")
		}
	}
	for i := first; i <= last; i++ {
		b.chunks[i].content = ""
		b.chunks[i].edited = true
	}
	b.chunks[first].content = text
	b.record(op, errors.Span{Start: start, End: end}, text)
	return nil
}

// split makes index a chunk boundary. Splitting inside an edited chunk is
// an overlap.
func (b *Buffer) split(index int) error {
	if index <= 0 || index >= len(b.original) {
		return nil
	}
	i := b.find(index)
	c := b.chunks[i]
	if c.start == index {
		return nil
	}
	if c.edited {
		return b.invalid(OpRemove, index, index, "splits an edited range")
	}
	tail := &chunk{
		start:   index,
		end:     c.end,
		content: b.original[index:c.end],
		outro:   c.outro,
	}
	c.end = index
	c.content = b.original[c.start:index]
	c.outro = ""
	b.chunks = append(b.chunks, nil)
	copy(b.chunks[i+2:], b.chunks[i+1:])
	b.chunks[i+1] = tail
	return nil
}

// find returns the index of the chunk containing original offset off.
func (b *Buffer) find(off int) int {
	return sort.Search(len(b.chunks), func(i int) bool { return b.chunks[i].end > off })
}

func (b *Buffer) checkIndex(op EditOp, index int) error {
	if index < 0 || index > len(b.original) {
		return b.invalid(op, index, index, "index out of bounds")
	}
	return nil
}

func (b *Buffer) record(op EditOp, span errors.Span, text string) {
	b.version++
	b.edits = append(b.edits, Edit{Op: op, Span: span, Text: text, Version: b.version})
}

func (b *Buffer) invalid(op EditOp, start, end int, reason string) error {
	err := errors.Newf(errors.CodeInternal, "rewrite %s [%d,%d): %s", op, start, end, reason)
	return errors.AddContext(err, errors.CtxSpan, errors.Span{Start: start, End: end})
}
