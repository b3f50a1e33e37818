// Package graph orders migrations by their declared dependencies and walks
// them in topological order, in both directions.
package graph

import (
	"sort"

	"github.com/goliatone/go-schema-migrate/internal/actions"
	"github.com/goliatone/go-schema-migrate/internal/domain"
)

// Migration is one node of the dependency graph: a named, reversible set of
// action records, depending on zero or more earlier migrations.
type Migration struct {
	Name         string           `json:"name"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Actions      []actions.Record `json:"actions"`

	// Applied reflects the history collection, not the file on disk.
	Applied bool `json:"-"`
}

// ForwardActions decodes the migration's actions in execution order.
func (m *Migration) ForwardActions() ([]actions.Action, error) {
	return actions.DecodeRecords(m.Actions)
}

// BackwardActions decodes the migration's actions in reverse order, the
// order they must run when reverting.
func (m *Migration) BackwardActions() ([]actions.Action, error) {
	decoded, err := actions.DecodeRecords(m.Actions)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(decoded)-1; i < j; i, j = i+1, j-1 {
		decoded[i], decoded[j] = decoded[j], decoded[i]
	}
	return decoded, nil
}

type node struct {
	migration *Migration
	parents   []string
	children  []string
}

// Graph is a migration dependency DAG.
type Graph struct {
	nodes map[string]*node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: map[string]*node{}}
}

// Add inserts a migration. Dependencies may name migrations added later;
// Verify checks that they all resolve.
func (g *Graph) Add(m *Migration) error {
	if m == nil || m.Name == "" {
		return domain.GraphErrorf("migration has no name")
	}
	if _, ok := g.nodes[m.Name]; ok {
		return domain.GraphErrorf("duplicate migration %q", m.Name)
	}
	g.nodes[m.Name] = &node{migration: m, parents: append([]string(nil), m.Dependencies...)}
	return nil
}

// Len returns the number of migrations in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Migration returns a node by name, nil when absent.
func (g *Graph) Migration(name string) *Migration {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return n.migration
}

// Names returns all migration names in sorted order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Initial returns the migration without dependencies, empty when the graph
// is empty. Call Verify first: it guarantees there is exactly one.
func (g *Graph) Initial() string {
	initials := g.initials()
	if len(initials) == 0 {
		return ""
	}
	return initials[0]
}

// Last returns the migration nothing depends on. Call Verify first.
func (g *Graph) Last() string {
	lasts := g.lasts()
	if len(lasts) == 0 {
		return ""
	}
	return lasts[0]
}

func (g *Graph) initials() []string {
	var out []string
	for name, n := range g.nodes {
		if len(n.parents) == 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) lasts() []string {
	var out []string
	for name, n := range g.nodes {
		if len(n.children) == 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Verify resolves dependencies into the adjacency lists and checks the graph
// shape: every dependency must name a known migration, no migration may
// depend on itself, and a non-empty graph must have exactly one initial and
// one last migration, all reachable from the initial one.
func (g *Graph) Verify() error {
	for _, n := range g.nodes {
		n.children = n.children[:0]
	}
	for name, n := range g.nodes {
		for _, dep := range n.parents {
			if dep == name {
				return domain.GraphErrorf("migration %q depends on itself", name)
			}
			parent, ok := g.nodes[dep]
			if !ok {
				return domain.GraphErrorf("migration %q depends on unknown migration %q", name, dep)
			}
			parent.children = append(parent.children, name)
		}
	}
	for _, n := range g.nodes {
		sort.Strings(n.children)
	}
	if len(g.nodes) == 0 {
		return nil
	}

	initials := g.initials()
	if len(initials) == 0 {
		return domain.GraphErrorf("no initial migration: every migration has dependencies")
	}
	if len(initials) > 1 {
		return domain.GraphErrorf("multiple initial migrations: %v", initials)
	}
	lasts := g.lasts()
	if len(lasts) == 0 {
		return domain.GraphErrorf("no last migration: every migration has dependents")
	}
	if len(lasts) > 1 {
		return domain.GraphErrorf("multiple last migrations: %v", lasts)
	}

	if unreached := g.unreachableFrom(initials[0]); len(unreached) > 0 {
		return domain.GraphErrorf("migrations not reachable from %q: %v", initials[0], unreached)
	}
	return nil
}

func (g *Graph) unreachableFrom(start string) []string {
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range g.nodes[name].children {
			if !seen[child] {
				seen[child] = true
				stack = append(stack, child)
			}
		}
	}
	var out []string
	for name := range g.nodes {
		if !seen[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// WalkDown visits from and everything below it in dependency order: a
// migration is yielded only once all of its parents on the walk have been.
// The walk is iterative and detects dependency cycles.
func (g *Graph) WalkDown(from string, fn func(*Migration) error) error {
	return g.walk(from, true, fn)
}

// WalkUp is the reverse walk: a migration is yielded only once all of its
// children on the walk have been.
func (g *Graph) WalkUp(from string, fn func(*Migration) error) error {
	return g.walk(from, false, fn)
}

// walk runs the counter-based traversal. Every node carries a countdown of
// the edges that must be consumed before it may be yielded: its in-degree
// going down, its out-degree going up, never less than one so the start node
// fires on first reach. Reaching a node decrements its counter; a positive
// remainder means more branches of a diamond are still converging on it, and
// a negative one means the same edge set was consumed twice, which only a
// cycle can cause.
func (g *Graph) walk(from string, down bool, fn func(*Migration) error) error {
	if _, ok := g.nodes[from]; !ok {
		return domain.GraphErrorf("unknown migration %q", from)
	}

	// Counters are scoped to the subgraph reachable from the start node, so
	// a mid-graph walk is not starved by edges arriving from outside it.
	reachable := g.reachable(from, down)
	counters := make(map[string]int, len(reachable))
	for name := range reachable {
		n := g.nodes[name]
		edges := n.parents
		if !down {
			edges = n.children
		}
		degree := 0
		for _, edge := range edges {
			if reachable[edge] {
				degree++
			}
		}
		if degree < 1 {
			degree = 1
		}
		counters[name] = degree
	}

	stack := []string{from}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := g.nodes[name]
		if !ok {
			return domain.GraphErrorf("unknown migration %q", name)
		}

		counters[name]--
		if counters[name] > 0 {
			continue
		}
		if counters[name] < 0 {
			return domain.CyclicDependencyf("dependency cycle through migration %q", name)
		}
		if err := fn(n.migration); err != nil {
			return err
		}

		next := n.children
		if !down {
			next = n.parents
		}
		queued := append([]string(nil), next...)
		sort.Sort(sort.Reverse(sort.StringSlice(queued)))
		stack = append(stack, queued...)
	}

	// An acyclic subgraph drains every counter to zero. A counter still
	// positive means some of the node's edges never fired, which only a
	// cycle among the reachable migrations can cause.
	var starved []string
	for name, counter := range counters {
		if counter > 0 {
			starved = append(starved, name)
		}
	}
	if len(starved) > 0 {
		sort.Strings(starved)
		return domain.CyclicDependencyf("dependency cycle through migration %q", starved[0])
	}
	return nil
}

// reachable returns the nodes reachable from start, start included,
// following children when walking down and parents when walking up.
func (g *Graph) reachable(start string, down bool) map[string]bool {
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := g.nodes[name]
		if !ok {
			continue
		}
		next := n.children
		if !down {
			next = n.parents
		}
		for _, edge := range next {
			if !seen[edge] {
				seen[edge] = true
				stack = append(stack, edge)
			}
		}
	}
	return seen
}
