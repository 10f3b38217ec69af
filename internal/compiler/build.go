package compiler

import (
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/conneroisu/markup/internal/errors"
)

type mode uint8

// Modes at or above modePropSet are property states; their order matters.
const (
	modeSlash mode = iota
	modeText
	modeWhitespace
	modeTagName
	modeComment
	modePropSet
	modePropAppend
)

type builder struct {
	blocks   [][]Op
	parents  [][]Op
	current  []Op
	mode     mode
	buffer   []byte
	quote    byte
	propName string
}

// Compile scans the literal segments of a template and produces its compiled
// form. Value i sits between segments[i] and segments[i+1].
func Compile(segments []string) (*Template, error) {
	if len(segments) == 0 {
		return nil, errors.NewMalformedTemplate(errors.ErrCodeFieldCount,
			"template needs at least one literal segment")
	}

	b := &builder{mode: modeText}
	for i, segment := range segments {
		if i > 0 {
			if b.mode == modeText {
				b.commit(noField)
			}
			b.commit(i - 1)
		}
		for j := 0; j < len(segment); j++ {
			if err := b.step(segment, j); err != nil {
				return nil, err.WithContext("segment", i).WithContext("offset", j)
			}
		}
	}
	b.commit(noField)

	switch {
	case b.quote != 0:
		return nil, errors.NewMalformedTemplate(errors.ErrCodeUnterminated, "unterminated quoted value")
	case b.mode == modeComment:
		return nil, errors.NewMalformedTemplate(errors.ErrCodeUnterminated, "unterminated comment")
	case b.mode != modeText:
		return nil, errors.NewMalformedTemplate(errors.ErrCodeUnterminated, "unterminated tag")
	case len(b.parents) > 0:
		return nil, errors.NewMalformedTemplate(errors.ErrCodeUnclosedElement,
			"element is never closed").WithContext("open", len(b.parents))
	}

	root := len(b.blocks)
	t := &Template{
		blocks: append(b.blocks, b.current),
		root:   root,
		fields: len(segments) - 1,
	}
	t.memo = make([]atomic.Pointer[memoEntry], len(t.blocks))
	return t, nil
}

func (b *builder) step(segment string, j int) *errors.MarkupError {
	c := segment[j]

	switch {
	case b.mode == modeText:
		if c == '<' {
			b.commit(noField)
			b.parents = append(b.parents, b.current)
			b.current = nil
			b.mode = modeTagName
		} else {
			b.buffer = append(b.buffer, c)
		}

	case b.mode == modeComment:
		// The buffer holds the last two characters, newest first.
		if string(b.buffer) == "--" && c == '>' {
			b.mode = modeText
			b.buffer = b.buffer[:0]
		} else if len(b.buffer) > 0 {
			b.buffer = []byte{c, b.buffer[0]}
		} else {
			b.buffer = []byte{c}
		}

	case b.quote != 0:
		if c == b.quote {
			b.quote = 0
		} else {
			b.buffer = append(b.buffer, c)
		}

	case c == '"' || c == '\'':
		b.quote = c

	case c == '>':
		b.commit(noField)
		b.mode = modeText

	case b.mode == modeSlash:
		// Skip the rest of a closing tag.

	case c == '=':
		b.mode = modePropSet
		b.propName = string(b.buffer)
		b.buffer = b.buffer[:0]

	case c == '/' && (b.mode < modePropSet || (j+1 < len(segment) && segment[j+1] == '>')):
		if err := b.close(); err != nil {
			return err
		}

	case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		b.commit(noField)
		b.mode = modeWhitespace

	default:
		b.buffer = append(b.buffer, c)
	}

	if b.mode == modeTagName && string(b.buffer) == "!--" {
		b.mode = modeComment
		b.pop()
	}
	return nil
}

func (b *builder) pop() {
	n := len(b.parents) - 1
	b.current = b.parents[n]
	b.parents = b.parents[:n]
}

// close finishes the current element and records it in its parent.
func (b *builder) close() *errors.MarkupError {
	b.commit(noField)
	if b.mode == modeTagName {
		// A closing tag such as </div> opened an empty frame.
		b.pop()
	}
	if len(b.parents) == 0 {
		return errors.NewMalformedTemplate(errors.ErrCodeUnbalancedClose,
			"closing tag without an open element")
	}
	if len(b.current) == 0 || b.current[0].Kind != OpTagSet {
		return errors.NewMalformedTemplate(errors.ErrCodeInvalidTag, "element has no tag name")
	}

	block := len(b.blocks)
	b.blocks = append(b.blocks, b.current)
	b.pop()
	b.current = append(b.current, Op{Kind: OpChildRecurse, Field: noField, Block: block})
	b.mode = modeSlash
	return nil
}

func (b *builder) push(op Op) {
	b.current = append(b.current, op)
}

// commit flushes the buffer as an instruction for the current mode. field is
// the index of the value that ends the token, or noField.
func (b *builder) commit(field int) {
	hasField := field != noField
	buf := string(b.buffer)

	switch {
	case b.mode == modeText:
		if hasField {
			b.push(Op{Kind: OpChildAppend, Field: field})
		} else if text := trimText(buf); text != "" {
			b.push(Op{Kind: OpChildAppend, Field: noField, Literal: text})
		}

	case b.mode == modeTagName && (hasField || buf != ""):
		if hasField {
			b.push(Op{Kind: OpTagSet, Field: field})
		} else {
			b.push(Op{Kind: OpTagSet, Field: noField, Literal: buf})
		}
		b.mode = modeWhitespace

	case b.mode == modeWhitespace && buf == "..." && hasField:
		b.push(Op{Kind: OpPropsAssign, Field: field})

	case b.mode == modeWhitespace && buf != "" && !hasField:
		b.push(Op{Kind: OpPropSet, Field: noField, Literal: true, Name: buf})

	case b.mode >= modePropSet:
		if buf != "" || (!hasField && b.mode == modePropSet) {
			b.push(Op{Kind: b.propKind(), Field: noField, Literal: buf, Name: b.propName})
			b.mode = modePropAppend
		}
		if hasField {
			b.push(Op{Kind: b.propKind(), Field: field, Name: b.propName})
			b.mode = modePropAppend
		}
	}
	b.buffer = b.buffer[:0]
}

func (b *builder) propKind() OpKind {
	if b.mode == modePropSet {
		return OpPropSet
	}
	return OpPropAppend
}

// trimText drops a leading or trailing whitespace run when that run contains
// a newline, so template indentation never reaches the output.
func trimText(s string) string {
	start := 0
	for start < len(s) {
		r, size := utf8.DecodeRuneInString(s[start:])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	if strings.Contains(s[:start], "\n") {
		s = s[start:]
	}

	end := len(s)
	for end > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if strings.Contains(s[end:], "\n") {
		s = s[:end]
	}
	return s
}
