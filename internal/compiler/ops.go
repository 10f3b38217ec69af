// Package compiler turns literal template segments into a compiled Template
// and evaluates it against the values of one invocation.
//
// A Template holds an immutable list of blocks, one per element plus the root
// fragment, and a memo table addressed by block index. The first evaluation
// that proves a block static stores its node in the memo slot; later
// evaluations append the stored node instead of walking the block again.
package compiler

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/conneroisu/markup/internal/node"
)

// OpKind identifies an instruction.
type OpKind uint8

const (
	OpTagSet OpKind = iota + 1
	OpPropsAssign
	OpPropSet
	OpPropAppend
	OpChildAppend
	OpChildRecurse
)

func (k OpKind) String() string {
	switch k {
	case OpTagSet:
		return "TAG_SET"
	case OpPropsAssign:
		return "PROPS_ASSIGN"
	case OpPropSet:
		return "PROP_SET"
	case OpPropAppend:
		return "PROP_APPEND"
	case OpChildAppend:
		return "CHILD_APPEND"
	case OpChildRecurse:
		return "CHILD_RECURSE"
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

// noField marks an operand carried as a literal.
const noField = -1

// Op is one instruction. The operand is either Literal or, when Field is not
// negative, the value at that index of the invocation.
type Op struct {
	Kind    OpKind
	Field   int
	Literal any
	// Name is the property name of PropSet and PropAppend.
	Name string
	// Block is the nested block of ChildRecurse.
	Block int
}

// IsField reports whether the operand is a field reference.
func (o Op) IsField() bool { return o.Field != noField }

func (o Op) String() string {
	var b strings.Builder
	b.WriteString(o.Kind.String())
	if o.Name != "" {
		fmt.Fprintf(&b, " %s", o.Name)
	}
	switch {
	case o.Kind == OpChildRecurse:
		fmt.Fprintf(&b, " #%d", o.Block)
	case o.IsField():
		fmt.Fprintf(&b, " ${%d}", o.Field)
	default:
		fmt.Fprintf(&b, " %#v", o.Literal)
	}
	return b.String()
}

type memoEntry struct {
	node node.Node
}

// Template is a compiled literal-segment sequence. It is safe for concurrent
// use; evaluation only ever fills empty memo slots.
type Template struct {
	blocks [][]Op
	root   int
	fields int
	memo   []atomic.Pointer[memoEntry]
}

// Fields returns the number of values an invocation must supply.
func (t *Template) Fields() int { return t.fields }

// Blocks returns the number of element blocks, excluding the root fragment.
func (t *Template) Blocks() int { return len(t.blocks) - 1 }

// Memoized returns the number of blocks whose node has been stored.
func (t *Template) Memoized() int {
	n := 0
	for i := range t.memo {
		if t.memo[i].Load() != nil {
			n++
		}
	}
	return n
}

// String lists the instructions of every block, root last.
func (t *Template) String() string {
	var b strings.Builder
	for i, ops := range t.blocks {
		if i == t.root {
			b.WriteString("root:\n")
		} else {
			fmt.Fprintf(&b, "#%d:\n", i)
		}
		for _, op := range ops {
			b.WriteString("  ")
			b.WriteString(op.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}
