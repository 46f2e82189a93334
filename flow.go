package flowcompose

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync/atomic"
)

// Flow is the callable entry point produced by Compose. Every call gets a
// fresh Context, so concurrent calls never share invokers or caches.
type Flow[R any] struct {
	name        string
	params      []Param
	plain       []Param
	slots       []Param
	config      Config
	synthesized []Param
	external    []Param
	body        func(*Input) (R, error)
	extensions  []Extension
	graph       *Graph
	idCounter   atomic.Uint64
}

// FlowOption is a modifier for flows
type FlowOption func(*flowOptions)

type flowOptions struct {
	extensions []Extension
}

// WithExtension returns an option that registers an extension to a flow
func WithExtension(ext Extension) FlowOption {
	return func(o *flowOptions) {
		o.extensions = append(o.extensions, ext)
	}
}

// Compose wires config into the slots declared by params and returns the
// flow entry point. Ordering violations and name collisions are reported
// here, never at call time.
func Compose[R any](name string, params []Param, config Config, body func(*Input) (R, error), opts ...FlowOption) (*Flow[R], error) {
	if body == nil {
		return nil, compositionErrorf(name, "nil body")
	}

	plain, slots, names, err := validateParams(name, params)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]Param, len(params))
	for _, p := range params {
		declared[p.Name] = p
	}

	seen := make(map[string]bool, len(config))
	var required, optional []Param
	for _, b := range config {
		if b.Name == "" {
			return nil, compositionErrorf(name, "configuration entry with empty name")
		}
		if b.Unit == nil {
			return nil, compositionErrorf(name, "configuration entry `%s` has no unit", b.Name)
		}
		if seen[b.Name] {
			return nil, compositionErrorf(name, "configuration entry `%s` bound twice", b.Name)
		}
		seen[b.Name] = true

		p, isDeclared := declared[b.Name]
		if isDeclared && p.Kind == KindPlain {
			return nil, compositionErrorf(name,
				"argument `%s` is not a dependency slot and is also present in the flow configuration", b.Name)
		}
		if isDeclared && p.Default != nil {
			return nil, compositionErrorf(name,
				"slot `%s` has a declared default and is also bound in the flow configuration", b.Name)
		}

		a, ok := b.Unit.(argumentUnit)
		if !ok {
			continue
		}
		names = append(names, nameBinding{arg: a, name: b.Name})
		if isDeclared {
			continue
		}

		ext := Param{Name: b.Name, Kind: KindArgument, Type: a.Type()}
		if a.HasValue() {
			ext.Default = a
			optional = append(optional, ext)
		} else {
			required = append(required, ext)
		}
	}

	if err := bindNames(names); err != nil {
		return nil, err
	}

	var o flowOptions
	for _, opt := range opts {
		opt(&o)
	}

	external := append([]Param(nil), required...)
	for _, p := range params {
		if p.Kind == KindPlain || p.Kind == KindArgument {
			external = append(external, p)
		}
	}
	external = append(external, optional...)

	f := &Flow[R]{
		name:        name,
		params:      append([]Param(nil), params...),
		plain:       plain,
		slots:       slots,
		config:      append(Config(nil), config...),
		synthesized: append(required, optional...),
		external:    external,
		body:        body,
		extensions:  sortExtensions(o.extensions),
	}
	f.graph = buildGraph(name, slots, f.config)

	return f, nil
}

// MustCompose is like Compose but panics on a composition error.
func MustCompose[R any](name string, params []Param, config Config, body func(*Input) (R, error), opts ...FlowOption) *Flow[R] {
	f, err := Compose(name, params, config, body, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// Name returns the flow name.
func (f *Flow[R]) Name() string {
	return f.name
}

// Params returns the external parameter list: synthesized arguments
// without a value, then declared plain parameters and argument slots, then
// synthesized arguments carrying a value.
func (f *Flow[R]) Params() []Param {
	return append([]Param(nil), f.external...)
}

// Graph returns the static dependency graph of the flow.
func (f *Flow[R]) Graph() *Graph {
	return f.graph
}

// Call invokes the flow with positional plain arguments.
func (f *Flow[R]) Call(args ...any) (R, error) {
	return f.Invoke(args, nil)
}

// Invoke invokes the flow. args fill plain parameters positionally; named
// may supply plain parameters, slot overrides, configuration overrides and
// values for synthesized argument parameters. Every failure, including the
// ones raised before the body runs, goes through the extension hooks.
func (f *Flow[R]) Invoke(args []any, named Values) (R, error) {
	c := newContext(fmt.Sprintf("call-%d", f.idCounter.Add(1)), f.name, f.extensions)
	c.graph = f.graph

	return f.run(c, func() (*Input, error) {
		return f.prepare(c, args, named)
	})
}

// prepare registers the configuration and call-time values in c and
// resolves the target's slots.
func (f *Flow[R]) prepare(c *Context, args []any, named Values) (*Input, error) {
	plainArgs, overrides, synthValues, presets, err := f.splitValues(args, named)
	if err != nil {
		return nil, err
	}

	for _, b := range f.config {
		c.bind(b.Name, b.Unit)
	}
	for _, name := range sortedKeys(presets) {
		c.bind(name, presets[name])
	}

	var missing []string
	for _, p := range f.slots {
		if v, ok := overrides[p.Name]; ok {
			u, err := f.overrideUnit(p, v)
			if err != nil {
				return nil, err
			}
			c.bind(p.Name, u)
			continue
		}
		if p.Default != nil {
			c.bind(p.Name, p.Default)
			continue
		}
		if _, ok := c.Lookup(p.Name); ok {
			continue
		}
		missing = append(missing, p.Name)
	}
	if len(missing) > 0 {
		return nil, &ResolutionError{Owner: f.name, Flow: true, Missing: missing}
	}

	for _, p := range f.synthesized {
		inv, _ := c.Lookup(p.Name)
		a := inv.unit.(argumentUnit)
		if v, ok := synthValues[p.Name]; ok {
			if err := a.setAny(v); err != nil {
				return nil, err
			}
			continue
		}
		if !a.HasValue() {
			inv.requiredBy = f.name
		}
	}

	slots := make(map[string]*Invoker, len(f.slots))
	for _, p := range f.slots {
		slots[p.Name], _ = c.Lookup(p.Name)
	}

	return newInput(f.name, c, f.plain, plainArgs, slots), nil
}

func (f *Flow[R]) run(c *Context, prepare func() (*Input, error)) (result R, err error) {
	for _, ext := range c.extensions {
		if err := ext.OnFlowStart(c); err != nil {
			return result, err
		}
	}

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			var zero R
			result = zero
			err = &PanicError{Flow: f.name, Recovered: r, StackTrace: stack}
			for _, ext := range c.extensions {
				if panicErr := ext.OnFlowPanic(c, r, stack); panicErr != nil {
					err = errors.Join(err, panicErr)
				}
			}
		}

		for i := len(c.extensions) - 1; i >= 0; i-- {
			if extErr := c.extensions[i].OnFlowEnd(c, result, err); extErr != nil && err == nil {
				err = extErr
			}
		}
	}()

	in, err := prepare()
	if err != nil {
		c.notifyError(err, &Operation{Kind: OpFlow, Name: f.name, Context: c})
		return result, err
	}

	op := &Operation{Kind: OpFlow, Name: f.name, Args: in.Args(), Context: c}
	v, err := c.wrap(op, func() (any, error) {
		return f.body(in)
	})
	if err != nil {
		c.notifyError(err, op)
		return result, err
	}
	return as[R](f.name, v)
}

// splitValues sorts positional and named call values into their roles.
func (f *Flow[R]) splitValues(args []any, named Values) (plainArgs []any, overrides, synth map[string]any, presets map[string]Unit, err error) {
	if len(args) > len(f.plain) {
		return nil, nil, nil, nil, &TypeConstraintError{Name: f.name, Reason: pluralArgs(len(f.plain), len(args))}
	}

	plainArgs = make([]any, len(f.plain))
	have := make([]bool, len(f.plain))
	for i, a := range args {
		plainArgs[i] = a
		have[i] = true
	}

	overrides = make(map[string]any)
	synth = make(map[string]any)
	presets = make(map[string]Unit)
	var unknown []string

	for _, name := range sortedKeys(named) {
		v := named[name]
		if i := paramIndex(f.plain, name); i >= 0 {
			if have[i] {
				return nil, nil, nil, nil, &TypeConstraintError{Name: name, Reason: "passed both positionally and by name"}
			}
			plainArgs[i] = v
			have[i] = true
			continue
		}
		if paramIndex(f.slots, name) >= 0 {
			overrides[name] = v
			continue
		}
		if paramIndex(f.synthesized, name) >= 0 {
			synth[name] = v
			continue
		}
		if _, ok := f.config.Lookup(name); ok {
			u, ok := v.(Unit)
			if !ok {
				return nil, nil, nil, nil, &TypeConstraintError{Name: name, Reason: "override of a configuration entry must be a flow function or Argument"}
			}
			presets[name] = u
			continue
		}
		unknown = append(unknown, name)
	}
	if len(unknown) > 0 {
		return nil, nil, nil, nil, &TypeConstraintError{
			Name:   f.name,
			Reason: "unknown parameters `" + strings.Join(unknown, "`, `") + "`",
		}
	}

	var missing []string
	for i, p := range f.plain {
		if !have[i] {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, nil, nil, &ResolutionError{Owner: f.name, Flow: true, What: "argument", Missing: missing}
	}

	if err := checkPlainArgs(f.name, f.plain, plainArgs); err != nil {
		return nil, nil, nil, nil, err
	}
	return plainArgs, overrides, synth, presets, nil
}

// overrideUnit turns a call-time override for slot p into a unit.
func (f *Flow[R]) overrideUnit(p Param, v any) (Unit, error) {
	if u, ok := v.(Unit); ok {
		if _, isArg := u.(argumentUnit); p.Kind == KindArgument && !isArg {
			return nil, &TypeConstraintError{Name: p.Name, Reason: "argument slot needs an Argument override"}
		}
		return u, nil
	}

	if p.Kind != KindArgument {
		return nil, &TypeConstraintError{Name: p.Name, Reason: "override of a computed slot must be a flow function"}
	}

	template, _ := p.Default.(argumentUnit)
	if template == nil {
		if u, ok := f.config.Lookup(p.Name); ok {
			template, _ = u.(argumentUnit)
		}
	}
	if template == nil {
		if !p.accepts(v) {
			return nil, &TypeConstraintError{Name: p.Name, Expected: p.typeString(), Got: typeName(v)}
		}
		return valueArgument(p.Name, v), nil
	}

	a := template.clone()
	if err := a.setAny(v); err != nil {
		return nil, err
	}
	return a, nil
}

func paramIndex(params []Param, name string) int {
	for i, p := range params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
