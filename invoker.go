package flowcompose

import (
	"errors"
	"reflect"
)

// Invoker binds one unit to one Context. Cached units memoize results by
// call arguments for as long as the Invoker lives, which is one call.
type Invoker struct {
	name  string
	unit  Unit
	ctx   *Context
	cache *callCache

	// requiredBy names the flow that synthesized this argument as a required
	// external parameter. Unset reads then surface as resolution errors.
	requiredBy string
}

func newInvoker(name string, u Unit, c *Context) *Invoker {
	inv := &Invoker{
		name: name,
		unit: u,
		ctx:  c,
	}
	if u.Cached() {
		inv.cache = newCallCache()
	}
	return inv
}

// Name returns the slot name the Invoker is registered under.
func (i *Invoker) Name() string {
	return i.name
}

// Unit returns the bound unit.
func (i *Invoker) Unit() Unit {
	return i.unit
}

// Cached reports whether results are memoized.
func (i *Invoker) Cached() bool {
	return i.cache != nil
}

// Call runs the bound unit with args, consulting the cache first when the
// unit is cached. Errors are returned unmodified and never cached.
func (i *Invoker) Call(args ...any) (any, error) {
	op := &Operation{
		Kind:    OpInvoke,
		Name:    i.name,
		Unit:    i.unit,
		Args:    args,
		Context: i.ctx,
	}

	if i.cache == nil {
		return i.run(op)
	}

	key, err := newCallKey(i.unit.Name(), args)
	if err != nil {
		i.ctx.notifyError(err, op)
		return nil, err
	}

	if v, ok := i.cache.load(key); ok {
		op.Kind = OpCacheHit
		i.ctx.notifyCacheHit(op)
		return v, nil
	}

	v, err := i.run(op)
	if err != nil {
		return nil, err
	}
	i.cache.store(key, v)
	return v, nil
}

func (i *Invoker) run(op *Operation) (any, error) {
	v, err := i.ctx.wrap(op, func() (any, error) {
		return i.unit.invoke(i.ctx, op.Args)
	})
	if err == nil {
		return v, nil
	}

	var tce *TypeConstraintError
	if i.requiredBy != "" && errors.As(err, &tce) && tce.Unset {
		err = &ResolutionError{
			Owner:   i.requiredBy,
			Flow:    true,
			What:    "argument",
			Missing: []string{i.name},
			Cause:   err,
		}
	}
	i.ctx.notifyError(err, op)
	return nil, err
}

// Call runs inv and asserts the result to T.
func Call[T any](inv *Invoker, args ...any) (T, error) {
	v, err := inv.Call(args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](inv.name, v)
}

// as asserts v to T. nil converts to the zero value only when T can hold
// nil.
func as[T any](name string, v any) (T, error) {
	var zero T
	if v == nil {
		if !nilable(reflect.TypeOf((*T)(nil)).Elem()) {
			return zero, &TypeConstraintError{Name: name, Expected: typeNameOf[T](), Got: "nil"}
		}
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeConstraintError{Name: name, Expected: typeNameOf[T](), Got: typeName(v)}
	}
	return typed, nil
}

func typeNameOf[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
