package flowcompose

import "sort"

// Extension provides hooks into the call lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Wrap intercepts invocations of units and flow bodies
	Wrap(next func() (any, error), op *Operation) (any, error)

	// OnCacheHit is called when a cached unit answers from its cache
	OnCacheHit(op *Operation)

	// OnError handles errors during an operation
	OnError(err error, op *Operation)

	// Flow call hooks
	OnFlowStart(c *Context) error
	OnFlowEnd(c *Context, result any, err error) error
	OnFlowPanic(c *Context, recovered any, stack []byte) error
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Wrap(next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnCacheHit(op *Operation) {
}

func (e *BaseExtension) OnError(err error, op *Operation) {
}

func (e *BaseExtension) OnFlowStart(c *Context) error {
	return nil
}

func (e *BaseExtension) OnFlowEnd(c *Context, result any, err error) error {
	return nil
}

func (e *BaseExtension) OnFlowPanic(c *Context, recovered any, stack []byte) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind    OperationKind
	Name    string
	Unit    Unit
	Args    []any
	Context *Context
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpFlow indicates the body of a composed flow
	OpFlow OperationKind = "flow"
	// OpInvoke indicates the execution of a bound unit
	OpInvoke OperationKind = "invoke"
	// OpCacheHit indicates a result served from an invoker cache
	OpCacheHit OperationKind = "cache_hit"
)

func sortExtensions(exts []Extension) []Extension {
	out := append([]Extension(nil), exts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order() < out[j].Order()
	})
	return out
}

// wrap chains the extensions around next (middleware pattern)
func (c *Context) wrap(op *Operation, next func() (any, error)) (any, error) {
	for i := len(c.extensions) - 1; i >= 0; i-- {
		ext := c.extensions[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(currentNext, op)
		}
	}
	return next()
}

func (c *Context) notifyCacheHit(op *Operation) {
	for _, ext := range c.extensions {
		ext.OnCacheHit(op)
	}
}

func (c *Context) notifyError(err error, op *Operation) {
	for _, ext := range c.extensions {
		ext.OnError(err, op)
	}
}
