package privileges

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Expr is a boolean expression over privilege names.
type Expr interface {
	Eval(s Set) bool
	String() string
}

// Named matches a single privilege.
type Named string

// Eval implements Expr.
func (n Named) Eval(s Set) bool { return s.Contains(string(n)) }

func (n Named) String() string { return string(n) }

// Not negates an expression.
type Not struct{ X Expr }

// Eval implements Expr.
func (n Not) Eval(s Set) bool { return !n.X.Eval(s) }

func (n Not) String() string { return "!" + wrap(n.X) }

// And holds when every operand holds.
type And []Expr

// Eval implements Expr.
func (a And) Eval(s Set) bool {
	for _, x := range a {
		if !x.Eval(s) {
			return false
		}
	}
	return true
}

func (a And) String() string { return join(a, " & ") }

// Or holds when any operand holds.
type Or []Expr

// Eval implements Expr.
func (o Or) Eval(s Set) bool {
	for _, x := range o {
		if x.Eval(s) {
			return true
		}
	}
	return false
}

func (o Or) String() string { return join(o, " | ") }

func join(list []Expr, sep string) string {
	parts := make([]string, len(list))
	for i, x := range list {
		parts[i] = wrap(x)
	}
	return strings.Join(parts, sep)
}

func wrap(x Expr) string {
	switch x.(type) {
	case And, Or:
		return "(" + x.String() + ")"
	default:
		return x.String()
	}
}

var errUnexpectedEnd = errors.New("privileges: unexpected end of expression")

// Parse reads expressions such as "ILOG_ADMIN | ENTER_ADMIN_PANEL & !ENTER_ACCOUNT_PANEL".
// "!" binds tighter than "&", which binds tighter than "|". Parentheses group.
func Parse(input string) (Expr, error) {
	p := &parser{tokens: tokenize(input)}
	expr, errParse := p.parseOr()
	if errParse != nil {
		return nil, errParse
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("privileges: unexpected %q", p.tokens[p.pos])
	}
	return expr, nil
}

// MustParse is Parse for expressions known at compile time.
func MustParse(input string) Expr {
	expr, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return expr
}

func tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			flush()
		case strings.ContainsRune("!&|()", r):
			flush()
			tokens = append(tokens, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := Or{left}
	for p.peek() == "|" {
		p.pos++
		right, errRight := p.parseAnd()
		if errRight != nil {
			return nil, errRight
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return operands, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	operands := And{left}
	for p.peek() == "&" {
		p.pos++
		right, errRight := p.parseUnary()
		if errRight != nil {
			return nil, errRight
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return operands, nil
}

func (p *parser) parseUnary() (Expr, error) {
	switch tok := p.peek(); tok {
	case "":
		return nil, errUnexpectedEnd
	case "!":
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{X: inner}, nil
	case "(":
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("privileges: missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	case "&", "|", ")":
		return nil, fmt.Errorf("privileges: unexpected %q", tok)
	default:
		p.pos++
		return Named(tok), nil
	}
}
