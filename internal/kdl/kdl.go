// Package kdl defines the node-tree document model that humid emits
// from, plus a parser for the KDL-ish surface syntax.
//
// A document is an ordered sequence of nodes. Each node has a name, an
// ordered list of entries (positional or keyed scalar values) and an
// optional children document. Parsed trees are treated as immutable;
// transformations clone first.
package kdl

import (
	"slices"
	"strconv"
)

// Kind enumerates the scalar types an entry value can hold.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindNull
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	default:
		return "unknown"
	}
}

// Value is one scalar value: a string, integer, float, bool or null.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// String constructs a string Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Integer constructs an integer Value.
func Integer(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float constructs a float Value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Null constructs a null Value.
func Null() Value { return Value{Kind: KindNull} }

// Text returns the plain textual form of the value. Strings are
// returned as-is, numbers and booleans are stringified, null is empty.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// AsInt returns the integer form of the value and whether it has one.
func (v Value) AsInt() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.Int, true
}

// Entry is an attribute-like value on a node. An empty Name marks a
// positional entry.
type Entry struct {
	Name  string
	Value Value
}

// IsPositional reports whether the entry carries no key.
func (e Entry) IsPositional() bool { return e.Name == "" }

// Node is one element of the source tree.
type Node struct {
	Name    string
	Entries []Entry
	// Children is nil when the node has no children block. An empty,
	// non-nil document means an explicit "{}" block.
	Children *Document

	// Indent is the leading whitespace of the node's source line,
	// used by the follow-formatting emission mode.
	Indent string
	// Line is the 1-based source line the node started on.
	Line int
}

// Arg returns the i-th positional value.
func (n *Node) Arg(i int) (Value, bool) {
	seen := 0
	for _, e := range n.Entries {
		if !e.IsPositional() {
			continue
		}
		if seen == i {
			return e.Value, true
		}
		seen++
	}
	return Value{}, false
}

// Args returns all positional values in order.
func (n *Node) Args() []Value {
	var out []Value
	for _, e := range n.Entries {
		if e.IsPositional() {
			out = append(out, e.Value)
		}
	}
	return out
}

// Prop returns the value of the keyed entry with the given name.
// Later entries shadow earlier ones, matching insertion-overwrites
// semantics.
func (n *Node) Prop(name string) (Value, bool) {
	for i := len(n.Entries) - 1; i >= 0; i-- {
		if n.Entries[i].Name == name {
			return n.Entries[i].Value, true
		}
	}
	return Value{}, false
}

// HasChildren reports whether the node carries a children block.
func (n *Node) HasChildren() bool { return n.Children != nil }

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Entries = slices.Clone(n.Entries)
	if n.Children != nil {
		c.Children = n.Children.Clone()
	}
	return &c
}

// Document is an ordered sequence of sibling nodes.
type Document struct {
	Nodes []*Node
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{Nodes: make([]*Node, len(d.Nodes))}
	for i, n := range d.Nodes {
		c.Nodes[i] = n.Clone()
	}
	return c
}
