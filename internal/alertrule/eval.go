package alertrule

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

type env struct {
	response any
}

func (l literal) eval(*env) (any, error) { return l.v, nil }

func (root) eval(e *env) (any, error) { return e.response, nil }

func (m member) eval(e *env) (any, error) {
	t, err := m.target.eval(e)
	if err != nil {
		return nil, err
	}
	return property(t, m.name)
}

func (ix index) eval(e *env) (any, error) {
	t, err := ix.target.eval(e)
	if err != nil {
		return nil, err
	}
	k, err := ix.key.eval(e)
	if err != nil {
		return nil, err
	}
	switch key := k.(type) {
	case string:
		return property(t, key)
	case float64:
		if arr, ok := t.([]any); ok {
			i := int(key)
			if float64(i) != key || i < 0 || i >= len(arr) {
				return undefined, nil
			}
			return arr[i], nil
		}
		if s, ok := t.(string); ok {
			rs := []rune(s)
			i := int(key)
			if float64(i) != key || i < 0 || i >= len(rs) {
				return undefined, nil
			}
			return string(rs[i]), nil
		}
		return property(t, strconv.FormatFloat(key, 'f', -1, 64))
	}
	return nil, fmt.Errorf("%w: unsupported index %v", ErrEval, k)
}

func property(t any, name string) (any, error) {
	switch v := t.(type) {
	case nil, undefinedType:
		return nil, fmt.Errorf("%w: cannot read %q of %s", ErrEval, name, typeName(t))
	case map[string]any:
		if x, ok := v[name]; ok {
			return x, nil
		}
		return undefined, nil
	case []any:
		if name == "length" {
			return float64(len(v)), nil
		}
	case string:
		if name == "length" {
			return float64(utf8.RuneCountInString(v)), nil
		}
	}
	return undefined, nil
}

func (u unary) eval(e *env) (any, error) {
	x, err := u.x.eval(e)
	if err != nil {
		return nil, err
	}
	if u.op == "!" {
		return !truthy(x), nil
	}
	return -toNumber(x), nil
}

func (b binary) eval(e *env) (any, error) {
	l, err := b.l.eval(e)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case "&&":
		if !truthy(l) {
			return l, nil
		}
		return b.r.eval(e)
	case "||":
		if truthy(l) {
			return l, nil
		}
		return b.r.eval(e)
	}
	r, err := b.r.eval(e)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case "===":
		return strictEqual(l, r), nil
	case "!==":
		return !strictEqual(l, r), nil
	case "==":
		return looseEqual(l, r), nil
	case "!=":
		return !looseEqual(l, r), nil
	}
	return compare(b.op, l, r), nil
}

func compare(op string, l, r any) bool {
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		c := strings.Compare(ls, rs)
		return cmpHolds(op, c)
	}
	a, b := toNumber(l), toNumber(r)
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	switch {
	case a < b:
		return cmpHolds(op, -1)
	case a > b:
		return cmpHolds(op, 1)
	}
	return cmpHolds(op, 0)
}

func cmpHolds(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

func nullish(v any) bool {
	switch v.(type) {
	case nil, undefinedType:
		return true
	}
	return false
}

func strictEqual(l, r any) bool {
	switch a := l.(type) {
	case nil:
		return r == nil
	case undefinedType:
		_, ok := r.(undefinedType)
		return ok
	case float64:
		b, ok := r.(float64)
		return ok && a == b
	case string:
		b, ok := r.(string)
		return ok && a == b
	case bool:
		b, ok := r.(bool)
		return ok && a == b
	}
	// objects and arrays compare by identity, and every decoded value is distinct
	return false
}

func looseEqual(l, r any) bool {
	if nullish(l) || nullish(r) {
		return nullish(l) && nullish(r)
	}
	if strictEqual(l, r) {
		return true
	}
	switch l.(type) {
	case float64, string, bool:
	default:
		return false
	}
	switch r.(type) {
	case float64, string, bool:
	default:
		return false
	}
	a, b := toNumber(l), toNumber(r)
	return !math.IsNaN(a) && a == b
}

func toNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil, undefinedType:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case undefinedType:
		return "undefined"
	}
	return fmt.Sprintf("%T", v)
}
