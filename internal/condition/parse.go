package condition

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/yusco/siteaudit/internal/errors"
)

// ErrSyntax is returned for conditions that cannot be parsed.
var ErrSyntax = errors.NewSentinel("condition syntax error")

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenString
	tokenEq
	tokenNeq
	tokenAnd
	tokenOr
	tokenNot
	tokenIn
	tokenLParen
	tokenRParen
	tokenComma
	tokenEOF
)

type token struct {
	kind tokenKind
	raw  string
	pos  int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '[', ']', ',', '=', '!', '<', '&', '|':
		return true
	}
	return isSpace(c)
}

func syntaxError(msg string, pos int) error {
	return errors.Wrap(ErrSyntax, msg, slog.Int("position", pos))
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		start := i
		switch {
		case isSpace(c):
			i++
			continue
		case c == '(' || c == '[':
			tokens = append(tokens, token{kind: tokenLParen, raw: string(c), pos: start})
			i++
		case c == ')' || c == ']':
			tokens = append(tokens, token{kind: tokenRParen, raw: string(c), pos: start})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokenComma, raw: ",", pos: start})
			i++
		case c == '=':
			i++
			if i < len(input) && input[i] == '=' {
				i++
			}
			tokens = append(tokens, token{kind: tokenEq, raw: "=", pos: start})
		case c == '!':
			i++
			if i < len(input) && input[i] == '=' {
				i++
				tokens = append(tokens, token{kind: tokenNeq, raw: "!=", pos: start})
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, raw: "!", pos: start})
		case c == '<':
			if i+1 >= len(input) || input[i+1] != '>' {
				return nil, syntaxError("unexpected '<', use '!=' or '<>'", start)
			}
			i += 2
			tokens = append(tokens, token{kind: tokenNeq, raw: "<>", pos: start})
		case c == '&' || c == '|':
			if i+1 >= len(input) || input[i+1] != c {
				return nil, syntaxError(fmt.Sprintf("unexpected '%c'", c), start)
			}
			i += 2
			kind := tokenAnd
			if c == '|' {
				kind = tokenOr
			}
			tokens = append(tokens, token{kind: kind, raw: input[start:i], pos: start})
		case c == '"' || c == '\'':
			value, next, err := scanString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, raw: value, pos: start})
			i = next
		default:
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			raw := input[start:i]
			switch strings.ToLower(raw) {
			case "and":
				tokens = append(tokens, token{kind: tokenAnd, raw: raw, pos: start})
			case "or":
				tokens = append(tokens, token{kind: tokenOr, raw: raw, pos: start})
			case "not":
				tokens = append(tokens, token{kind: tokenNot, raw: raw, pos: start})
			case "in":
				tokens = append(tokens, token{kind: tokenIn, raw: raw, pos: start})
			default:
				tokens = append(tokens, token{kind: tokenWord, raw: raw, pos: start})
			}
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(input)})
	return tokens, nil
}

// scanString reads a quoted literal starting at input[start]. A backslash takes the next byte literally.
func scanString(input string, start int) (string, int, error) {
	quoteChar := input[start]
	var b strings.Builder
	for i := start + 1; i < len(input); i++ {
		c := input[i]
		switch {
		case c == '\\' && i+1 < len(input):
			i++
			b.WriteByte(input[i])
		case c == quoteChar:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, syntaxError("unterminated string literal", start)
}

type parser struct {
	tokens []token
	pos    int
}

// Parse parses a condition cell. A blank condition yields a nil predicate, which is always satisfied.
func Parse(input string) (Predicate, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil //nolint:nilnil // nil predicate means "no condition"
	}
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, errors.Wrap(err, "parse condition", slog.String("condition", input))
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, errors.Wrap(syntaxError(fmt.Sprintf("unexpected %q", tok.raw), tok.pos), "parse condition",
			slog.String("condition", input))
	}
	return expr, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Predicate{left}
	for p.peek().kind == tokenOr {
		p.next()
		var right Predicate
		if right, err = p.parseAnd(); err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return Or{Terms: terms}, nil
}

func (p *parser) parseAnd() (Predicate, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []Predicate{left}
	for p.peek().kind == tokenAnd {
		p.next()
		var right Predicate
		if right, err = p.parseUnary(); err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return And{Terms: terms}, nil
}

func (p *parser) parseUnary() (Predicate, error) {
	if p.peek().kind == tokenNot {
		p.next()
		term, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Term: term}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Predicate, error) {
	tok := p.next()
	switch tok.kind { //nolint:exhaustive // every other token is a syntax error
	case tokenLParen:
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokenRParen {
			return nil, syntaxError("expected ')'", closing.pos)
		}
		return expr, nil
	case tokenWord:
		ref, err := parseRef(tok)
		if err != nil {
			return nil, err
		}
		return p.parseComparison(ref)
	default:
		return nil, syntaxError(fmt.Sprintf("expected question reference, got %q", tok.raw), tok.pos)
	}
}

func (p *parser) parseComparison(ref Ref) (Predicate, error) {
	switch p.peek().kind { //nolint:exhaustive // anything else ends the comparison
	case tokenEq:
		p.next()
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return Equals{Ref: ref, Value: lit}, nil
	case tokenNeq:
		p.next()
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return NotEquals{Ref: ref, Value: lit}, nil
	case tokenIn:
		p.next()
		values, err := p.parseSet()
		if err != nil {
			return nil, err
		}
		return InSet{Ref: ref, Values: values}, nil
	case tokenNot:
		notTok := p.next()
		if p.peek().kind != tokenIn {
			return nil, syntaxError("expected 'in' after 'not'", notTok.pos)
		}
		p.next()
		values, err := p.parseSet()
		if err != nil {
			return nil, err
		}
		return Not{Term: InSet{Ref: ref, Values: values}}, nil
	default:
		return Answered{Ref: ref}, nil
	}
}

// parseLiteral reads a quoted string or a run of bare words such as `Non conforme`.
func (p *parser) parseLiteral() (string, error) {
	tok := p.peek()
	if tok.kind == tokenString {
		p.next()
		return tok.raw, nil
	}
	var words []string
	for p.peek().kind == tokenWord {
		words = append(words, p.next().raw)
	}
	if len(words) == 0 {
		return "", syntaxError(fmt.Sprintf("expected value, got %q", tok.raw), tok.pos)
	}
	return strings.Join(words, " "), nil
}

func (p *parser) parseSet() ([]string, error) {
	open := p.next()
	if open.kind != tokenLParen {
		return nil, syntaxError("expected '(' after 'in'", open.pos)
	}
	var values []string
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, lit)
		switch sep := p.next(); sep.kind { //nolint:exhaustive // anything else is a syntax error
		case tokenComma:
			continue
		case tokenRParen:
			return values, nil
		default:
			return nil, syntaxError("expected ',' or ')' in set", sep.pos)
		}
	}
}

// parseRef accepts `12`, `Q12` and `prev.12`.
func parseRef(tok token) (Ref, error) {
	raw := tok.raw
	ref := Ref{Scope: ScopeDraft}
	if len(raw) > 5 && strings.EqualFold(raw[:5], "prev.") {
		ref.Scope = ScopePrior
		raw = raw[5:]
	}
	if len(raw) > 1 && (raw[0] == 'Q' || raw[0] == 'q') {
		raw = raw[1:]
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return Ref{}, syntaxError(fmt.Sprintf("invalid question reference %q", tok.raw), tok.pos)
	}
	ref.QuestionID = id
	return ref, nil
}

// References lists the questions a predicate reads, in order of appearance.
func References(p Predicate) []Ref {
	var refs []Ref
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch n := p.(type) {
		case Equals:
			refs = append(refs, n.Ref)
		case NotEquals:
			refs = append(refs, n.Ref)
		case InSet:
			refs = append(refs, n.Ref)
		case Answered:
			refs = append(refs, n.Ref)
		case And:
			for _, t := range n.Terms {
				walk(t)
			}
		case Or:
			for _, t := range n.Terms {
				walk(t)
			}
		case Not:
			walk(n.Term)
		}
	}
	if p != nil {
		walk(p)
	}
	return refs
}
