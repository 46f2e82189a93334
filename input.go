package flowcompose

import "sort"

// Input is what a flow or flow function body sees: its plain arguments and
// one Invoker per declared slot.
type Input struct {
	owner string
	ctx   *Context
	plain []Param
	args  []any
	slots map[string]*Invoker
}

func newInput(owner string, c *Context, plain []Param, args []any, slots map[string]*Invoker) *Input {
	return &Input{
		owner: owner,
		ctx:   c,
		plain: plain,
		args:  args,
		slots: slots,
	}
}

// Context returns the flow context of the current call.
func (in *Input) Context() *Context {
	return in.ctx
}

// Args returns the plain arguments in declaration order.
func (in *Input) Args() []any {
	return append([]any(nil), in.args...)
}

// Arg returns the plain argument declared under name.
func (in *Input) Arg(name string) (any, bool) {
	for i, p := range in.plain {
		if p.Name == name {
			return in.args[i], true
		}
	}
	return nil, false
}

// Slot returns the Invoker bound to a declared slot.
func (in *Input) Slot(name string) (*Invoker, bool) {
	inv, ok := in.slots[name]
	return inv, ok
}

// SlotNames returns the declared slot names, sorted.
func (in *Input) SlotNames() []string {
	names := make([]string, 0, len(in.slots))
	for name := range in.slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Value returns the plain argument name as a T.
func Value[T any](in *Input, name string) (T, error) {
	var zero T

	v, ok := in.Arg(name)
	if !ok {
		return zero, &TypeConstraintError{Name: name, Reason: "not a plain parameter of `" + in.owner + "`"}
	}
	return as[T](name, v)
}

// Pull calls the Invoker bound to slot with args and returns its result as a
// T. Dependents pull values at the moment they need them.
func Pull[T any](in *Input, slot string, args ...any) (T, error) {
	inv, ok := in.Slot(slot)
	if !ok {
		var zero T
		return zero, &ResolutionError{Owner: in.owner, What: "slot", Missing: []string{slot}}
	}
	return Call[T](inv, args...)
}
