package flowcompose

import (
	"reflect"
	"sync"
)

// Argument is a leaf unit holding a caller-suppliable value of type T. It
// has no slots and is never cached.
//
// An Argument used in a Config or as a slot default is a template: every
// call clones it into a fresh value cell, so per-call values never leak
// between calls.
type Argument[T any] struct {
	mu    sync.RWMutex
	name  string
	value T
	set   bool
}

// NewArgument creates an Argument, optionally holding an initial value.
func NewArgument[T any](initial ...T) *Argument[T] {
	a := &Argument[T]{}
	if len(initial) > 0 {
		a.value = initial[len(initial)-1]
		a.set = true
	}
	return a
}

// Get returns the value. Reading an unset Argument is an error.
func (a *Argument[T]) Get() (T, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.set {
		var zero T
		return zero, &TypeConstraintError{Name: a.name, Expected: a.Type().String(), Unset: true}
	}
	return a.value, nil
}

// Set replaces the value.
func (a *Argument[T]) Set(v T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = v
	a.set = true
}

// HasValue reports whether a value has been set.
func (a *Argument[T]) HasValue() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.set
}

// Name returns the binding name, or "" while the Argument is unbound.
func (a *Argument[T]) Name() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name
}

// Type returns the type constraint T.
func (a *Argument[T]) Type() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (a *Argument[T]) Cached() bool { return false }

func (a *Argument[T]) Params() []Param { return nil }

func (a *Argument[T]) invoke(_ *Context, args []any) (any, error) {
	if len(args) != 0 {
		return nil, &TypeConstraintError{Name: a.Name(), Reason: "an argument takes no call arguments"}
	}
	return a.Get()
}

func (a *Argument[T]) bindName(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.name != "" && a.name != name {
		return compositionErrorf(name, "argument is already bound as `%s`", a.name)
	}
	a.name = name
	return nil
}

func (a *Argument[T]) setAny(v any) error {
	typed, ok := v.(T)
	if !ok {
		if v != nil || !nilable(a.Type()) {
			return &TypeConstraintError{Name: a.Name(), Expected: a.Type().String(), Got: typeName(v)}
		}
	}
	a.Set(typed)
	return nil
}

func (a *Argument[T]) current() (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value, a.set
}

func (a *Argument[T]) clone() argumentUnit {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &Argument[T]{name: a.name, value: a.value, set: a.set}
}

// argumentUnit is the type-erased view of *Argument[T] used by the composer.
type argumentUnit interface {
	Unit
	Type() reflect.Type
	HasValue() bool
	bindName(name string) error
	setAny(v any) error
	current() (any, bool)
	clone() argumentUnit
}

// valueArgument creates an untyped argument for a raw override with no
// template to clone from.
func valueArgument(name string, v any) argumentUnit {
	return &Argument[any]{name: name, value: v, set: true}
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
