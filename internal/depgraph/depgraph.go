// Package depgraph builds the project dependency graph, detects cycles
// via strongly-connected components, answers reachability queries, and
// computes topological level decompositions — grounded on the teacher's
// own use of github.com/hashicorp/terraform/dag (config/config_graph.go),
// generalized from its HCL-expression-evaluation graph to a project
// name graph. Edges run dependent -> dependency, matching the teacher's
// basicEdge{S, T} convention.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/hashicorp/terraform/dag"

	"github.com/marty-build/marty/internal/merr"
)

type basicEdge struct {
	S, T dag.Vertex
}

func (e *basicEdge) Hashcode() any {
	return fmt.Sprintf("%v->%v", e.S, e.T)
}

func (e *basicEdge) Source() dag.Vertex {
	return e.S
}

func (e *basicEdge) Target() dag.Vertex {
	return e.T
}

// Graph is the built, queryable dependency graph over project names.
type Graph struct {
	g     dag.Graph
	nodes map[string]struct{}
}

// Builder accumulates nodes and edges before a single Build() validates
// and freezes them into a Graph.
type Builder struct {
	nodes map[string]struct{}
	edges [][2]string
}

// NewBuilder seeds a Builder with the exact node set (the explicit project
// names); edges pointing outside this set are a construction error.
func NewBuilder(nodeNames []string) *Builder {
	nodes := make(map[string]struct{}, len(nodeNames))
	for _, n := range nodeNames {
		nodes[n] = struct{}{}
	}

	return &Builder{nodes: nodes}
}

// HasNode reports whether name is a declared node.
func (b *Builder) HasNode(name string) bool {
	_, ok := b.nodes[name]
	return ok
}

// AddEdge records a dependent -> dependency edge to be added on Build.
func (b *Builder) AddEdge(from, to string) {
	b.edges = append(b.edges, [2]string{from, to})
}

// Build validates every edge's endpoints exist and constructs the Graph.
func (b *Builder) Build() (*Graph, error) {
	var g dag.Graph

	names := make([]string, 0, len(b.nodes))
	for n := range b.nodes {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		g.Add(n)
	}

	for _, e := range b.edges {
		from, to := e[0], e[1]

		if !b.HasNode(from) {
			return nil, &merr.MissingDependencyError{Project: from, Dependency: to}
		}
		if !b.HasNode(to) {
			return nil, &merr.MissingDependencyError{Project: from, Dependency: to}
		}

		g.Connect(&basicEdge{S: from, T: to})
	}

	return &Graph{g: g, nodes: b.nodes}, nil
}

// Cycles returns every non-trivial strongly-connected component (size > 1)
// plus any self-loop singleton, each as a canonically (alphabetically)
// ordered name list, with the overall list itself sorted for
// reproducibility.
func (g *Graph) Cycles() [][]string {
	components := dag.StronglyConnected(&g.g)

	var cycles [][]string
	for _, comp := range components {
		if len(comp) > 1 {
			cycles = append(cycles, sortedNames(comp))
			continue
		}

		if len(comp) == 1 {
			name := comp[0].(string)
			for _, down := range g.g.DownEdges(name).List() {
				if down.(string) == name {
					cycles = append(cycles, []string{name})
					break
				}
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return fmt.Sprint(cycles[i]) < fmt.Sprint(cycles[j])
	})

	return cycles
}

func sortedNames(vertices []dag.Vertex) []string {
	names := make([]string, len(vertices))
	for i, v := range vertices {
		names[i] = v.(string)
	}
	sort.Strings(names)
	return names
}

// Reachable returns the set of node names reachable from targets via
// out-edges (dependent -> dependency), including the targets themselves.
func (g *Graph) Reachable(targets []string) (map[string]struct{}, error) {
	for _, t := range targets {
		if _, ok := g.nodes[t]; !ok {
			return nil, &merr.WorkspaceError{Project: t, Reason: "not a known project"}
		}
	}

	visited := map[string]struct{}{}
	queue := append([]string{}, targets...)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}

		for _, down := range g.g.DownEdges(cur).List() {
			queue = append(queue, down.(string))
		}
	}

	return visited, nil
}

// RecursiveDependencies computes deps(targets) and fails if any stored
// cycle intersects the reachable set, per the cycle enforcement policy.
func (g *Graph) RecursiveDependencies(targets []string) ([]string, error) {
	reachable, err := g.Reachable(targets)
	if err != nil {
		return nil, err
	}

	var offending [][]string
	for _, cycle := range g.Cycles() {
		for _, name := range cycle {
			if _, ok := reachable[name]; ok {
				offending = append(offending, cycle)
				break
			}
		}
	}

	if len(offending) > 0 {
		return nil, &merr.CycleError{Cycles: offending}
	}

	names := make([]string, 0, len(reachable))
	for n := range reachable {
		names = append(names, n)
	}
	sort.Strings(names)

	return names, nil
}

// Levels partitions set S (a slice of node names) into topological levels,
// leaves first: L0 holds nodes in S with no out-edges inside S, and each
// subsequent level holds nodes whose in-S out-edges land entirely in prior
// levels. Built by iteratively expanding the "ready" set (Kahn's
// algorithm restricted to S).
func (g *Graph) Levels(set []string) [][]string {
	inSet := make(map[string]struct{}, len(set))
	for _, n := range set {
		inSet[n] = struct{}{}
	}

	remainingDeps := make(map[string]map[string]struct{}, len(set))
	for _, n := range set {
		deps := map[string]struct{}{}
		for _, down := range g.g.DownEdges(n).List() {
			name := down.(string)
			if _, ok := inSet[name]; ok {
				deps[name] = struct{}{}
			}
		}
		remainingDeps[n] = deps
	}

	var levels [][]string
	done := map[string]struct{}{}

	for len(done) < len(set) {
		var ready []string
		for n, deps := range remainingDeps {
			if _, already := done[n]; already {
				continue
			}

			allDone := true
			for d := range deps {
				if _, ok := done[d]; !ok {
					allDone = false
					break
				}
			}
			if allDone {
				ready = append(ready, n)
			}
		}

		if len(ready) == 0 {
			// Every remaining node participates in a cycle inside S;
			// RecursiveDependencies should already have rejected this
			// path, but emit the stragglers as a final level rather than
			// looping forever.
			for n := range remainingDeps {
				if _, already := done[n]; !already {
					ready = append(ready, n)
				}
			}
		}

		sort.Strings(ready)
		levels = append(levels, ready)

		for _, n := range ready {
			done[n] = struct{}{}
		}
	}

	return levels
}
