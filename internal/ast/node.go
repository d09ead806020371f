package ast

import (
	"fmt"
	"strings"
)

// Opcodes recognised by preparation.
const (
	OpLiteral            = "literal"
	OpContext            = "context"
	OpDereference        = "dereference"
	OpAssignment         = "assignment"
	OpDynamicDereference = "dynamic_dereference"
	OpStatic             = "static"
	OpUnboundDereference = "unbound_dereference"
	OpUnboundAssignment  = "unbound_assignment"
)

// Node is one opcode with its operands.
//
// Reference is the identifier of unbound and dynamic references. Value is
// the payload of literals. Args are the operand sub-trees in opcode order.
type Node struct {
	Opcode    string  `json:"opcode" yaml:"opcode"`
	Reference string  `json:"reference,omitempty" yaml:"reference,omitempty"`
	Value     any     `json:"value,omitempty" yaml:"value,omitempty"`
	Args      []*Node `json:"args,omitempty" yaml:"args,omitempty"`
	Line      int     `json:"line,omitempty" yaml:"line,omitempty"`
	Column    int     `json:"column,omitempty" yaml:"column,omitempty"`
}

// Literal returns a node producing v.
func Literal(v any) *Node {
	return &Node{Opcode: OpLiteral, Value: v}
}

// Context returns a node producing the current execution context.
func Context() *Node {
	return &Node{Opcode: OpContext}
}

// Dereference reads key from the value of of.
func Dereference(of *Node, key string) *Node {
	return &Node{Opcode: OpDereference, Args: []*Node{of, Literal(key)}}
}

// Assignment writes rvalue under key of the value of of.
func Assignment(of *Node, key string, rvalue *Node) *Node {
	return &Node{Opcode: OpAssignment, Args: []*Node{of, Literal(key), rvalue}}
}

// ContextPath dereferences each part in turn, starting from the context.
func ContextPath(parts ...string) *Node {
	n := Context()
	for _, p := range parts {
		n = Dereference(n, p)
	}
	return n
}

// DynamicDereference looks reference up at run time.
func DynamicDereference(reference string) *Node {
	return &Node{Opcode: OpDynamicDereference, Reference: reference}
}

// Static marks inner as evaluable once, at preparation.
func Static(inner *Node) *Node {
	return &Node{Opcode: OpStatic, Args: []*Node{inner}}
}

// UnboundDereference reads an identifier not yet resolved.
func UnboundDereference(reference string) *Node {
	return &Node{Opcode: OpUnboundDereference, Reference: reference}
}

// UnboundAssignment writes an identifier not yet resolved.
func UnboundAssignment(reference string, rvalue *Node) *Node {
	return &Node{Opcode: OpUnboundAssignment, Reference: reference, Args: []*Node{rvalue}}
}

// Op returns a node for an opcode preparation does not interpret.
func Op(opcode string, args ...*Node) *Node {
	return &Node{Opcode: opcode, Args: args}
}

// At returns a copy of n carrying a source position.
func (n *Node) At(line, column int) *Node {
	c := *n
	c.Line, c.Column = line, column
	return &c
}

// Rewrite applies fn bottom-up: children are rewritten before their
// parent is handed to fn. A nil tree stays nil. Subtrees fn leaves alone
// are shared with the input.
func Rewrite(n *Node, fn func(*Node) (*Node, error)) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	var args []*Node
	for i, arg := range n.Args {
		rewritten, err := Rewrite(arg, fn)
		if err != nil {
			return nil, err
		}
		if rewritten != arg && args == nil {
			args = append([]*Node(nil), n.Args...)
		}
		if args != nil {
			args[i] = rewritten
		}
	}
	if args != nil {
		c := *n
		c.Args = args
		n = &c
	}
	return fn(n)
}

// Walk calls fn for n and every node below it, parents first, until fn
// returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, arg := range n.Args {
		Walk(arg, fn)
	}
}

// String renders the tree in a compact prefix form for diagnostics, e.g.
// dereference(context, "argument").
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch n.Opcode {
	case OpLiteral:
		if s, ok := n.Value.(string); ok {
			fmt.Fprintf(b, "%q", s)
		} else {
			fmt.Fprintf(b, "%v", n.Value)
		}
		return
	case OpContext:
		b.WriteString(OpContext)
		return
	}
	b.WriteString(n.Opcode)
	b.WriteString("(")
	sep := ""
	if n.Reference != "" {
		b.WriteString(n.Reference)
		sep = ", "
	}
	for _, arg := range n.Args {
		b.WriteString(sep)
		arg.write(b)
		sep = ", "
	}
	b.WriteString(")")
}
