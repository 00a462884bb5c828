package alertrule

// node is an expression in a compiled rule. Evaluation never has side effects.
type node interface {
	eval(env *env) (any, error)
}

type literal struct{ v any }

// root is the "response" identifier.
type root struct{}

type member struct {
	target node
	name   string
}

type index struct {
	target node
	key    node
}

type unary struct {
	op string
	x  node
}

type binary struct {
	op   string
	l, r node
}

// undefined is distinct from null (nil) the way decoded JSON bodies need:
// a missing field is undefined, an explicit null is nil.
type undefinedType struct{}

var undefined = undefinedType{}
