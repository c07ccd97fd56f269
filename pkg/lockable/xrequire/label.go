package xrequire

import (
	"fmt"
	"slices"
	"strings"
)

// Expr 是编译后的标签表达式，不可变，可并发使用。
type Expr struct {
	root   node
	source string
}

// Match 判断标签集合是否满足表达式。
func (e *Expr) Match(labels []string) bool {
	if e == nil || e.root == nil {
		return false
	}
	return e.root.match(labels)
}

// Source 返回编译前的原始表达式。
func (e *Expr) Source() string { return e.source }

// String 返回规范化后的表达式文本。
func (e *Expr) String() string {
	if e == nil || e.root == nil {
		return ""
	}
	return e.root.String()
}

// ValidLabel 判断 s 能否作为单个标签使用。
func ValidLabel(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isLabelChar(s[i]) {
			return false
		}
	}
	return true
}

// =============================================================================
// 语法树
// =============================================================================

type node interface {
	match(labels []string) bool
	String() string
}

type atomNode struct{ label string }

func (n atomNode) match(labels []string) bool { return slices.Contains(labels, n.label) }
func (n atomNode) String() string             { return n.label }

type notNode struct{ x node }

func (n notNode) match(labels []string) bool { return !n.x.match(labels) }
func (n notNode) String() string {
	switch n.x.(type) {
	case atomNode, notNode:
		return "!" + n.x.String()
	}
	return "!(" + n.x.String() + ")"
}

type andNode struct{ l, r node }

func (n andNode) match(labels []string) bool { return n.l.match(labels) && n.r.match(labels) }
func (n andNode) String() string             { return wrapOr(n.l) + " && " + wrapOr(n.r) }

type orNode struct{ l, r node }

func (n orNode) match(labels []string) bool { return n.l.match(labels) || n.r.match(labels) }
func (n orNode) String() string             { return n.l.String() + " || " + n.r.String() }

func wrapOr(n node) string {
	if _, ok := n.(orNode); ok {
		return "(" + n.String() + ")"
	}
	return n.String()
}

// =============================================================================
// 词法与语法分析
// =============================================================================

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLabel
	tokNot
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isLabelChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_.:/@+-", c) >= 0
}

func tokenize(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '!':
			toks = append(toks, token{kind: tokNot, text: "!", pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '&' || c == '|':
			if i+1 >= len(src) || src[i+1] != c {
				return nil, fmt.Errorf("%w: single %q at %d in %q", ErrInvalidLabelExpr, c, i, src)
			}
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			toks = append(toks, token{kind: kind, text: src[i : i+2], pos: i})
			i += 2
		case isLabelChar(c):
			j := i
			for j < len(src) && isLabelChar(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokLabel, text: src[i:j], pos: i})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d in %q", ErrInvalidLabelExpr, c, i, src)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, what string) error {
	if t.kind == tokEOF {
		return fmt.Errorf("%w: %s at end of %q", ErrInvalidLabelExpr, what, p.src)
	}
	return fmt.Errorf("%w: %s, got %q at %d in %q", ErrInvalidLabelExpr, what, t.text, t.pos, p.src)
}

func (p *parser) parseOr() (node, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = orNode{l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokAnd:
			p.next()
		case tokLabel, tokNot, tokLParen:
			// 并列视为 &&
		default:
			return l, nil
		}
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = andNode{l: l, r: r}
	}
}

func (p *parser) parseUnary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNot:
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{x: x}, nil
	case tokLParen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return x, nil
	case tokLabel:
		return atomNode{label: t.text}, nil
	default:
		return nil, p.errorf(t, "expected label")
	}
}

// parseExpr 解析标签表达式，不经过缓存。
func parseExpr(src string) (*Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 1 {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidLabelExpr)
	}
	p := &parser{src: src, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected trailing token")
	}
	return &Expr{root: root, source: src}, nil
}
