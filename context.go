package flowcompose

import "sort"

// Context is the resolution scope of exactly one top-level call. It maps
// slot names to Invokers and is discarded when the call returns.
type Context struct {
	id         string
	flow       string
	invokers   map[string]*Invoker
	fallbacks  map[fallbackKey]*Invoker
	extensions []Extension
	graph      *Graph
}

type fallbackKey struct {
	name string
	unit Unit
}

func newContext(id, flow string, exts []Extension) *Context {
	return &Context{
		id:         id,
		flow:       flow,
		invokers:   make(map[string]*Invoker),
		fallbacks:  make(map[fallbackKey]*Invoker),
		extensions: exts,
	}
}

// ID identifies the call this context belongs to.
func (c *Context) ID() string {
	return c.id
}

// Flow returns the name of the flow being called.
func (c *Context) Flow() string {
	return c.flow
}

// Graph returns the static dependency graph of the flow being called.
func (c *Context) Graph() *Graph {
	return c.graph
}

// Lookup returns the Invoker registered under name.
func (c *Context) Lookup(name string) (*Invoker, bool) {
	inv, ok := c.invokers[name]
	return inv, ok
}

// Names returns the registered names, sorted.
func (c *Context) Names() []string {
	names := make([]string, 0, len(c.invokers))
	for name := range c.invokers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bind registers u under name, replacing any earlier registration.
// Arguments are cloned so the call gets its own value cell.
func (c *Context) bind(name string, u Unit) *Invoker {
	inv := newInvoker(name, instantiate(u), c)
	c.invokers[name] = inv
	return inv
}

// fallback returns the Invoker for a slot default that is not registered by
// name. It is created once per context so cached defaults stay memoized.
func (c *Context) fallback(name string, u Unit) *Invoker {
	key := fallbackKey{name: name, unit: u}
	if inv, ok := c.fallbacks[key]; ok {
		return inv
	}
	inv := newInvoker(name, instantiate(u), c)
	c.fallbacks[key] = inv
	return inv
}

func instantiate(u Unit) Unit {
	if a, ok := u.(argumentUnit); ok {
		return a.clone()
	}
	return u
}
