package flowcompose

import "sort"

// Binding sources reported by the dependency graph.
const (
	SourceFlow    = "flow"
	SourceConfig  = "config"
	SourceDefault = "default"
	SourceUnbound = "unbound"
)

// GraphNode is one named binding reachable from a flow.
type GraphNode struct {
	Name   string
	Unit   string
	Kind   Kind
	Cached bool
	Source string
	Deps   []string
}

// Graph is the static wiring of a flow: which name each slot resolves to
// without call-time overrides. Self references and cycles are legal (a
// cached function may recurse through its own slot).
type Graph struct {
	Root       string
	nodes      map[string]*GraphNode
	downstream map[string][]string
}

func buildGraph(flow string, slots []Param, config Config) *Graph {
	g := &Graph{
		Root:       flow,
		nodes:      make(map[string]*GraphNode),
		downstream: make(map[string][]string),
	}

	root := &GraphNode{Name: flow, Unit: flow, Source: SourceFlow}
	for _, p := range slots {
		root.Deps = append(root.Deps, p.Name)
	}
	g.nodes[flow] = root

	// Names visible in every context: configuration plus target slot defaults.
	registered := make(map[string]Unit, len(config)+len(slots))
	sources := make(map[string]string)
	for _, b := range config {
		registered[b.Name] = b.Unit
		sources[b.Name] = SourceConfig
	}
	for _, p := range slots {
		if p.Default != nil {
			registered[p.Name] = p.Default
			sources[p.Name] = SourceDefault
		}
	}

	pending := make([]Param, len(slots))
	copy(pending, slots)
	for len(pending) > 0 {
		p := pending[0]
		pending = pending[1:]
		if _, done := g.nodes[p.Name]; done {
			continue
		}

		u, source := registered[p.Name], sources[p.Name]
		if u == nil && p.Default != nil {
			u, source = p.Default, SourceDefault
		}

		node := &GraphNode{Name: p.Name, Kind: p.Kind, Source: SourceUnbound}
		if u != nil {
			node.Unit = u.Name()
			node.Cached = u.Cached()
			node.Source = source
			if _, isArg := u.(argumentUnit); isArg {
				node.Kind = KindArgument
			} else {
				node.Kind = KindComputed
			}
			for _, dep := range u.Params() {
				if dep.IsSlot() {
					node.Deps = append(node.Deps, dep.Name)
					pending = append(pending, dep)
				}
			}
		}
		g.nodes[p.Name] = node
	}

	for name, node := range g.nodes {
		for _, dep := range node.Deps {
			g.downstream[dep] = appendUnique(g.downstream[dep], name)
		}
	}

	return g
}

// Node returns the node registered under name.
func (g *Graph) Node(name string) (*GraphNode, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Names returns every node name except the root, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		if name != g.Root {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Unbound returns the names no configuration entry or default covers.
// They must be supplied as overrides at call time.
func (g *Graph) Unbound() []string {
	var out []string
	for _, name := range g.Names() {
		if g.nodes[name].Source == SourceUnbound {
			out = append(out, name)
		}
	}
	return out
}

// Dependents returns every node that transitively depends on name.
func (g *Graph) Dependents(name string) []string {
	stack := []string{name}
	visited := map[string]bool{}
	var out []string

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, parent := range g.downstream[current] {
			if visited[parent] {
				continue
			}
			visited[parent] = true
			out = append(out, parent)
			stack = append(stack, parent)
		}
	}

	sort.Strings(out)
	return out
}

// Walk visits nodes depth-first from the root. Nodes already on the
// current path are reported with cycle set and not descended into.
func (g *Graph) Walk(visit func(node *GraphNode, depth int, cycle bool) bool) {
	var walk func(name string, depth int, path map[string]bool)
	walk = func(name string, depth int, path map[string]bool) {
		node := g.nodes[name]
		if node == nil {
			return
		}
		if path[name] {
			visit(node, depth, true)
			return
		}
		if !visit(node, depth, false) {
			return
		}
		path[name] = true
		for _, dep := range node.Deps {
			walk(dep, depth+1, path)
		}
		delete(path, name)
	}
	walk(g.Root, 0, map[string]bool{})
}

func appendUnique[T comparable](slice []T, item T) []T {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}
