package licenseexpr

import (
	"errors"
	"strings"
)

var (
	ErrEmpty            = errors.New("licenseexpr: empty expression")
	ErrUnbalanced       = errors.New("licenseexpr: unbalanced parentheses")
	ErrUnexpectedToken  = errors.New("licenseexpr: unexpected token")
	ErrInvalidCharacter = errors.New("licenseexpr: invalid character")
	ErrInvalidID        = errors.New("licenseexpr: malformed identifier")
	ErrUnknownLicense   = errors.New("licenseexpr: unknown license identifier")
)

const (
	licenseRefPrefix  = "LicenseRef-"
	documentRefPrefix = "DocumentRef-"
)

// Operator joins two sub-expressions.
type Operator int

const (
	OpOr Operator = iota
	OpAnd
)

func (o Operator) String() string {
	if o == OpAnd {
		return "AND"
	}
	return "OR"
}

// Node is either a License leaf or a Compound.
type Node interface {
	node()
}

// License is one leaf of an expression.
type License struct {
	ID        string
	OrLater   bool   // trailing "+"
	Exception string // identifier after WITH, empty if none
}

// Compound joins two nodes with an operator.
type Compound struct {
	Op          Operator
	Left, Right Node
}

func (License) node()  {}
func (Compound) node() {}

// String renders the leaf as it appears in a canonical expression.
func (l License) String() string {
	var b strings.Builder
	l.write(&b)
	return b.String()
}

func (l License) write(b *strings.Builder) {
	b.WriteString(l.ID)
	if l.OrLater {
		b.WriteByte('+')
	}
	if l.Exception != "" {
		b.WriteString(" WITH ")
		b.WriteString(l.Exception)
	}
}

// UserDefined reports whether the identifier is a LicenseRef or
// DocumentRef, which are not on the SPDX list by definition.
func (l License) UserDefined() bool {
	return strings.HasPrefix(l.ID, licenseRefPrefix) || strings.HasPrefix(l.ID, documentRefPrefix)
}

// Expression is a parsed license expression.
type Expression struct {
	root Node
}

// Root returns the top node of the expression tree.
func (e *Expression) Root() Node { return e.root }

// Licenses returns the leaves in source order.
func (e *Expression) Licenses() []License {
	var out []License
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case License:
			out = append(out, n)
		case Compound:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(e.root)
	return out
}

// String returns the canonical serialization of the expression.
func (e *Expression) String() string {
	var b strings.Builder
	writeNode(&b, e.root, OpOr)
	return b.String()
}

// writeNode renders n as an operand of an operator with precedence parent.
// OR operands of AND are the only place parentheses are required.
func writeNode(b *strings.Builder, n Node, parent Operator) {
	switch n := n.(type) {
	case License:
		n.write(b)
	case Compound:
		paren := n.Op == OpOr && parent == OpAnd
		if paren {
			b.WriteByte('(')
		}
		writeNode(b, n.Left, n.Op)
		b.WriteByte(' ')
		b.WriteString(n.Op.String())
		b.WriteByte(' ')
		writeNode(b, n.Right, n.Op)
		if paren {
			b.WriteByte(')')
		}
	}
}
