package flowcompose

// Binding names one unit in a flow configuration.
type Binding struct {
	Name string
	Unit Unit
}

// Bind creates a configuration binding.
func Bind(name string, u Unit) Binding {
	return Binding{Name: name, Unit: u}
}

// Config is the ordered set of bindings a flow registers on every call.
// Order decides the position of synthesized external parameters.
type Config []Binding

// Lookup returns the unit bound under name.
func (c Config) Lookup(name string) (Unit, bool) {
	for _, b := range c {
		if b.Name == name {
			return b.Unit, true
		}
	}
	return nil, false
}

// Names returns the binding names in order.
func (c Config) Names() []string {
	names := make([]string, len(c))
	for i, b := range c {
		names[i] = b.Name
	}
	return names
}

// Values carries named call-time values: plain arguments, slot overrides
// and values for synthesized argument parameters.
type Values map[string]any
