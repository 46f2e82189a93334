package flowcompose

import "reflect"

// Kind tells how a declared parameter is filled at call time.
type Kind int

const (
	// KindPlain is an ordinary value passed through by the caller.
	KindPlain Kind = iota
	// KindComputed is a dependency slot bound to a flow function.
	KindComputed
	// KindArgument is a dependency slot bound to an Argument.
	KindArgument
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindComputed:
		return "computed"
	case KindArgument:
		return "argument"
	default:
		return "unknown"
	}
}

// Param declares one parameter of a flow or flow function. The kind is
// always stated explicitly by the constructor that built the Param.
type Param struct {
	Name    string
	Kind    Kind
	Type    reflect.Type
	Default Unit
}

// Plain declares an untyped plain parameter.
func Plain(name string) Param {
	return Param{Name: name, Kind: KindPlain}
}

// PlainOf declares a plain parameter whose values must be assignable to T.
func PlainOf[T any](name string) Param {
	return Param{Name: name, Kind: KindPlain, Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// Slot declares a computed dependency slot.
func Slot(name string) Param {
	return Param{Name: name, Kind: KindComputed}
}

// ArgSlot declares an argument slot.
func ArgSlot(name string) Param {
	return Param{Name: name, Kind: KindArgument}
}

// ArgSlotOf declares an argument slot holding values of type T.
func ArgSlotOf[T any](name string) Param {
	return Param{Name: name, Kind: KindArgument, Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// WithDefault returns a copy of p whose slot falls back to u.
func (p Param) WithDefault(u Unit) Param {
	p.Default = u
	if p.Type == nil {
		if a, ok := u.(argumentUnit); ok {
			p.Type = a.Type()
		}
	}
	return p
}

// IsSlot reports whether p is a dependency slot of either kind.
func (p Param) IsSlot() bool {
	return p.Kind == KindComputed || p.Kind == KindArgument
}

// HasDefault reports whether p carries a default unit.
func (p Param) HasDefault() bool {
	return p.Default != nil
}

// accepts reports whether v may be passed for p.
func (p Param) accepts(v any) bool {
	if p.Type == nil {
		return true
	}
	if v == nil {
		return nilable(p.Type)
	}
	return reflect.TypeOf(v).AssignableTo(p.Type)
}

func (p Param) typeString() string {
	if p.Type == nil {
		return "any"
	}
	return p.Type.String()
}

// validateParams checks names and the plain-before-slot ordering. It
// returns the default Arguments to bind to their slot names; nothing is
// bound until the caller has finished its own checks.
func validateParams(owner string, params []Param) (plain, slots []Param, names []nameBinding, err error) {
	seen := make(map[string]bool, len(params))
	slotFound := false

	for _, p := range params {
		if p.Name == "" {
			return nil, nil, nil, compositionErrorf(owner, "parameter with empty name")
		}
		if seen[p.Name] {
			return nil, nil, nil, compositionErrorf(owner, "parameter `%s` declared twice", p.Name)
		}
		seen[p.Name] = true

		switch p.Kind {
		case KindPlain:
			if slotFound {
				return nil, nil, nil, compositionErrorf(owner,
					"plain parameter `%s` declared after a dependency slot; all plain parameters must precede all slots", p.Name)
			}
			if p.Default != nil {
				return nil, nil, nil, compositionErrorf(owner, "plain parameter `%s` cannot have a flow function default", p.Name)
			}
			plain = append(plain, p)
		case KindComputed, KindArgument:
			slotFound = true
			if p.Default != nil {
				a, isArg := p.Default.(argumentUnit)
				if p.Kind == KindArgument && !isArg {
					return nil, nil, nil, compositionErrorf(owner, "argument slot `%s` needs an Argument default, got %T", p.Name, p.Default)
				}
				if isArg {
					names = append(names, nameBinding{arg: a, name: p.Name})
				}
			}
			slots = append(slots, p)
		default:
			return nil, nil, nil, compositionErrorf(owner, "parameter `%s` has unknown kind %d", p.Name, int(p.Kind))
		}
	}

	return plain, slots, names, nil
}

// nameBinding is an Argument waiting to be bound to a name.
type nameBinding struct {
	arg  argumentUnit
	name string
}

// bindNames binds every pending name, or none of them when one Argument
// would end up under two names.
func bindNames(pending []nameBinding) error {
	claimed := make(map[argumentUnit]string, len(pending))
	for _, b := range pending {
		current, ok := claimed[b.arg]
		if !ok {
			current = b.arg.Name()
		}
		if current != "" && current != b.name {
			return compositionErrorf(b.name, "argument is already bound as `%s`", current)
		}
		claimed[b.arg] = b.name
	}
	for _, b := range pending {
		if err := b.arg.bindName(b.name); err != nil {
			return err
		}
	}
	return nil
}
