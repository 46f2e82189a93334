package flowcompose

import "fmt"

// Unit is anything that can be bound to a slot: a *Function[R] or an
// *Argument[T].
type Unit interface {
	Name() string
	Cached() bool
	Params() []Param
	invoke(c *Context, args []any) (any, error)
}

// Function is a named computation with explicitly declared plain
// parameters and dependency slots.
type Function[R any] struct {
	name   string
	cached bool
	params []Param
	plain  []Param
	slots  []Param
	body   func(*Input) (R, error)
}

// FunctionOption is a modifier for flow functions.
type FunctionOption func(*functionOptions)

type functionOptions struct {
	cached bool
}

// Cached enables per-call memoization keyed by the call arguments.
func Cached() FunctionOption {
	return func(o *functionOptions) {
		o.cached = true
	}
}

// Define creates a flow function. All plain parameters must precede all
// slots.
func Define[R any](name string, params []Param, body func(*Input) (R, error), opts ...FunctionOption) (*Function[R], error) {
	if body == nil {
		return nil, compositionErrorf(name, "nil body")
	}

	plain, slots, names, err := validateParams(name, params)
	if err != nil {
		return nil, err
	}
	if err := bindNames(names); err != nil {
		return nil, err
	}

	var o functionOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &Function[R]{
		name:   name,
		cached: o.cached,
		params: append([]Param(nil), params...),
		plain:  plain,
		slots:  slots,
		body:   body,
	}, nil
}

// MustDefine is like Define but panics on a composition error. Intended for
// package-level declarations.
func MustDefine[R any](name string, params []Param, body func(*Input) (R, error), opts ...FunctionOption) *Function[R] {
	fn, err := Define(name, params, body, opts...)
	if err != nil {
		panic(err)
	}
	return fn
}

func (f *Function[R]) Name() string { return f.name }

func (f *Function[R]) Cached() bool { return f.cached }

// Params returns a copy of the declared parameters.
func (f *Function[R]) Params() []Param {
	return append([]Param(nil), f.params...)
}

func (f *Function[R]) invoke(c *Context, args []any) (any, error) {
	if err := checkPlainArgs(f.name, f.plain, args); err != nil {
		return nil, err
	}

	slots := make(map[string]*Invoker, len(f.slots))
	var missing []string
	for _, p := range f.slots {
		if inv, ok := c.Lookup(p.Name); ok {
			slots[p.Name] = inv
			continue
		}
		if p.Default != nil {
			slots[p.Name] = c.fallback(p.Name, p.Default)
			continue
		}
		missing = append(missing, p.Name)
	}
	if len(missing) > 0 {
		return nil, &ResolutionError{Owner: f.name, Missing: missing}
	}

	return f.body(newInput(f.name, c, f.plain, args, slots))
}

func checkPlainArgs(owner string, plain []Param, args []any) error {
	if len(args) != len(plain) {
		return &TypeConstraintError{
			Name:   owner,
			Reason: pluralArgs(len(plain), len(args)),
		}
	}
	for i, p := range plain {
		if !p.accepts(args[i]) {
			return &TypeConstraintError{Name: p.Name, Expected: p.typeString(), Got: typeName(args[i])}
		}
	}
	return nil
}

func pluralArgs(want, got int) string {
	noun := "arguments"
	if want == 1 {
		noun = "argument"
	}
	return fmt.Sprintf("expects %d plain %s, got %d", want, noun, got)
}
