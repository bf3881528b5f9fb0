package licenseexpr

import (
	"fmt"
	"strings"
)

// Parse parses text and checks its identifiers against the SPDX lists.
// Identifiers found on a list take that list's spelling.
func Parse(text string) (*Expression, error) {
	e, err := ParseSyntax(text)
	if err != nil {
		return nil, err
	}
	if err := checkIdentifiers(e.Licenses()); err != nil {
		return nil, err
	}
	e.root = canonicalize(e.root)
	return e, nil
}

// ParseSyntax parses text without consulting the SPDX lists.
func ParseSyntax(text string) (*Expression, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	switch t := p.peek(); t.kind {
	case tokEOF:
	case tokRParen:
		return nil, fmt.Errorf("%w: unmatched %q at offset %d", ErrUnbalanced, ")", t.pos)
	default:
		return nil, unexpected(t)
	}
	return &Expression{root: root}, nil
}

type parser struct {
	toks  []token
	pos   int
	depth int // open parentheses
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Compound{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Compound{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		p.depth++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.kind != tokRParen {
			if closing.kind == tokEOF {
				return nil, fmt.Errorf("%w: unclosed %q at offset %d", ErrUnbalanced, "(", t.pos)
			}
			return nil, unexpected(closing)
		}
		p.depth--
		return inner, nil

	case tokIdent:
		return p.parseLicense(t)

	case tokRParen:
		if p.depth == 0 {
			return nil, fmt.Errorf("%w: unmatched %q at offset %d", ErrUnbalanced, ")", t.pos)
		}
		return nil, unexpected(t)

	default:
		return nil, unexpected(t)
	}
}

func (p *parser) parseLicense(id token) (Node, error) {
	if !validIDString(id.text) {
		return nil, fmt.Errorf("%w: %q at offset %d", ErrInvalidID, id.text, id.pos)
	}
	lic := License{ID: id.text, OrLater: id.plus}
	if p.peek().kind != tokWith {
		return lic, nil
	}
	p.next()
	exc := p.next()
	if exc.kind != tokIdent || exc.plus || strings.Contains(exc.text, ":") {
		return nil, unexpected(exc)
	}
	lic.Exception = exc.text
	return lic, nil
}

func unexpected(t token) error {
	if t.kind == tokEOF {
		return fmt.Errorf("%w: unexpected %s", ErrUnexpectedToken, t.kind)
	}
	return fmt.Errorf("%w: %q at offset %d", ErrUnexpectedToken, t.text, t.pos)
}
