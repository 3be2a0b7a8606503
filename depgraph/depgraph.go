// Package depgraph builds a dependency graph over a batch of tool-execution
// requests and computes a topological order and critical path using Kahn's
// algorithm. Recursion is deliberately avoided: batches are caller-controlled
// and can exceed stack depth.
package depgraph

import (
	"fmt"
	"sort"
)

// Error represents a graph-construction failure.
type Error struct {
	Action  string
	Message string
	Nodes   []string
}

func (e *Error) Error() string {
	if len(e.Nodes) > 0 {
		return fmt.Sprintf("depgraph: %s: %s %v", e.Action, e.Message, e.Nodes)
	}
	return fmt.Sprintf("depgraph: %s: %s", e.Action, e.Message)
}

// Request is the minimal shape depgraph needs from a tool-execution
// request: its name and the names of tools it depends on.
type Request struct {
	ToolName     string
	Dependencies []string
}

// Graph is a dependency graph over a batch of tool names. An edge A->B
// means "A depends on B" (B must complete before A starts).
type Graph struct {
	nodes map[string]bool
	// edges[a] is the set of tools a depends on.
	edges map[string][]string
	// dependents[b] is the set of tools that depend on b.
	dependents map[string][]string
}

// Build constructs a Graph from a batch of requests. A dependency on a tool
// name not present in the batch is rejected with a planning error.
func Build(requests []Request) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[string]bool, len(requests)),
		edges:      make(map[string][]string, len(requests)),
		dependents: make(map[string][]string, len(requests)),
	}

	for _, r := range requests {
		g.nodes[r.ToolName] = true
	}

	for _, r := range requests {
		for _, dep := range r.Dependencies {
			if !g.nodes[dep] {
				return nil, &Error{Action: "Build", Message: "dependency on tool not present in batch", Nodes: []string{r.ToolName, dep}}
			}
			g.edges[r.ToolName] = append(g.edges[r.ToolName], dep)
			g.dependents[dep] = append(g.dependents[dep], r.ToolName)
		}
	}

	return g, nil
}

// Nodes returns the sorted set of tool names in the graph.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// DependenciesOf returns the tool names that the given tool depends on.
func (g *Graph) DependenciesOf(tool string) []string {
	return g.edges[tool]
}

// TopologicalOrder computes a topological order via Kahn's algorithm. A
// cycle surfaces as a CircularDependency error naming every node whose
// in-degree never reached zero.
func (g *Graph) TopologicalOrder() ([]string, error) {
	// in-degree here counts unresolved dependencies (edges out of a node).
	inDegree := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		inDegree[n] = len(g.edges[n])
	}

	queue := make([]string, 0)
	for _, n := range g.Nodes() {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		// pop lowest-named ready node for deterministic ordering.
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)

		ready := make([]string, 0)
		for _, dependent := range g.dependents[cur] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
		sort.Strings(queue)
	}

	if len(order) != len(g.nodes) {
		remaining := make([]string, 0)
		for n, d := range inDegree {
			if d > 0 {
				remaining = append(remaining, n)
			}
		}
		sort.Strings(remaining)
		return nil, &Error{Action: "TopologicalOrder", Message: "CircularDependency", Nodes: remaining}
	}

	return order, nil
}

// CriticalPath returns the longest dependency chain by node count, ties
// broken by lexicographic tool name. The returned path runs from the chain's
// root (no dependents) down to its deepest dependency.
func (g *Graph) CriticalPath() ([]string, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	// longest[n] = longest chain starting at n going into its dependencies.
	longest := make(map[string]int, len(g.nodes))
	next := make(map[string]string, len(g.nodes))

	// order lists tools with no dependencies first; since edges[n] are n's
	// dependencies, processing forward guarantees longest[dep] is already
	// known by the time n is processed.
	for i := 0; i < len(order); i++ {
		n := order[i]
		best := 0
		bestDep := ""
		deps := append([]string(nil), g.edges[n]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if longest[dep]+1 > best {
				best = longest[dep] + 1
				bestDep = dep
			}
		}
		longest[n] = best
		next[n] = bestDep
	}

	bestRoot := ""
	bestLen := -1
	roots := append([]string(nil), order...)
	sort.Strings(roots)
	for _, n := range roots {
		if longest[n] > bestLen {
			bestLen = longest[n]
			bestRoot = n
		}
	}
	if bestRoot == "" {
		return nil, nil
	}

	path := []string{bestRoot}
	cur := bestRoot
	for next[cur] != "" {
		cur = next[cur]
		path = append(path, cur)
	}
	return path, nil
}
