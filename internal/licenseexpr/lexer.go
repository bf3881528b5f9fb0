package licenseexpr

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokWith
	tokIdent
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokWith:
		return "WITH"
	default:
		return "identifier"
	}
}

type token struct {
	kind tokenKind
	text string
	plus bool // identifier carried a trailing "+"
	pos  int
}

// lex splits text into tokens. It fails on characters outside the SPDX
// idstring alphabet and on a "+" that does not directly follow an identifier.
func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case isIDChar(c):
			start := i
			for i < len(text) && isIDChar(text[i]) {
				i++
			}
			word := text[start:i]
			plus := false
			if i < len(text) && text[i] == '+' {
				plus = true
				i++
			}
			toks = append(toks, classify(word, plus, start))
		case c == '+':
			return nil, fmt.Errorf("%w: %q at offset %d", ErrUnexpectedToken, "+", i)
		default:
			return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidCharacter, rune(c), i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(text)}), nil
}

func classify(word string, plus bool, pos int) token {
	if !plus {
		switch word {
		case "AND", "and":
			return token{kind: tokAnd, text: word, pos: pos}
		case "OR", "or":
			return token{kind: tokOr, text: word, pos: pos}
		case "WITH", "with":
			return token{kind: tokWith, text: word, pos: pos}
		}
	}
	return token{kind: tokIdent, text: word, plus: plus, pos: pos}
}

func isIDChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '-' || c == '.' || c == ':'
}

// validIDString checks the shape of one identifier. A colon is only allowed
// in the DocumentRef-<id>:LicenseRef-<id> form.
func validIDString(id string) bool {
	if !strings.Contains(id, ":") {
		return true
	}
	doc, ref, ok := strings.Cut(id, ":")
	if !ok || strings.Contains(ref, ":") {
		return false
	}
	return strings.HasPrefix(doc, documentRefPrefix) && len(doc) > len(documentRefPrefix) &&
		strings.HasPrefix(ref, licenseRefPrefix) && len(ref) > len(licenseRefPrefix)
}
