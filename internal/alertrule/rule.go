// Package alertrule compiles and evaluates alert rules: small boolean
// expressions over a decoded response body, e.g. `response.code != 0` or
// `response.items.length === 0 || !response.ok`.
//
// Supported: number/string/bool/null/undefined literals, the `response`
// root, field access (`.name`, `["name"]`, `[0]`), `.length` on strings and
// arrays, `! -`, `< <= > >=`, `== != === !==`, `&& ||` and parentheses.
// Nothing else is reachable, so a rule cannot call functions or mutate state.
package alertrule

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSyntax = errors.New("alert rule syntax error")
	ErrEval   = errors.New("alert rule evaluation error")
)

const maxRuleLen = 4096

type Rule struct {
	src  string
	expr node
}

// Compile parses src into a Rule.
func Compile(src string) (*Rule, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrSyntax)
	}
	if len(src) > maxRuleLen {
		return nil, fmt.Errorf("%w: rule longer than %d bytes", ErrSyntax, maxRuleLen)
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
	}
	return &Rule{src: src, expr: expr}, nil
}

func (r *Rule) String() string { return r.src }

// Eval reports whether the rule holds for response, which is a value as
// produced by encoding/json decoding into `any` (or a plain string for
// non-JSON bodies).
func (r *Rule) Eval(response any) (bool, error) {
	v, err := r.expr.eval(&env{response: response})
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}
