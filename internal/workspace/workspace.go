// Package workspace holds the explicit/inferred project model and the
// Workspace aggregate described in the data model: a root path, its
// projects, and the dependency graph built over them.
package workspace

import (
	"github.com/marty-build/marty/internal/config"
	"github.com/marty-build/marty/internal/depgraph"
	"github.com/marty-build/marty/internal/merr"
)

// Project is an explicit project: a directory containing a marty.yml.
type Project struct {
	Name         string
	ProjectDir   string
	ManifestPath string
	Tags         []string
	Dependencies []string
	Tasks        []config.TaskConfig
}

// HasTag reports whether the project declares tag.
func (p Project) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// InferredProject is a project discovered by a plugin from a framework
// manifest, never directly user-authored.
type InferredProject struct {
	Name                  string
	ProjectDir            string
	DiscoveredBy          string
	WorkspaceDependencies []string
}

// Workspace is the root aggregate: path, explicit and inferred projects,
// and the dependency graph built from them.
type Workspace struct {
	Root             string
	Projects         []Project
	InferredProjects []InferredProject
	Graph            *depgraph.Graph
	Cycles           [][]string
}

// ProjectByName returns the explicit project with the given name, if any.
func (w *Workspace) ProjectByName(name string) (*Project, bool) {
	for i := range w.Projects {
		if w.Projects[i].Name == name {
			return &w.Projects[i], true
		}
	}
	return nil, false
}

// InferredByName returns the first-seen inferred project with the given
// name, per the dedup-by-first-occurrence rule used for graph edges.
func (w *Workspace) InferredByName(name string) (*InferredProject, bool) {
	for i := range w.InferredProjects {
		if w.InferredProjects[i].Name == name {
			return &w.InferredProjects[i], true
		}
	}
	return nil, false
}

// EffectiveDependencies returns the exact edge set buildGraph used for
// project name: its explicit Dependencies plus any matching InferredProject's
// WorkspaceDependencies. Returns nil for an unknown project name.
func (w *Workspace) EffectiveDependencies(name string) []string {
	project, ok := w.ProjectByName(name)
	if !ok {
		return nil
	}

	deps := append([]string{}, project.Dependencies...)

	if inferred, ok := w.InferredByName(name); ok {
		deps = append(deps, inferred.WorkspaceDependencies...)
	}

	return deps
}

// New assembles a Workspace from discovery results: explicit projects,
// inferred projects (a name may repeat; the first occurrence supplies the
// graph edges), and the root path. It builds the dependency graph and
// records its cycles. Duplicate explicit project names are not rejected:
// they collapse into a single graph node.
func New(root string, projects []Project, inferred []InferredProject) (*Workspace, error) {
	w := &Workspace{
		Root:             root,
		Projects:         projects,
		InferredProjects: inferred,
	}

	graph, cycles, err := buildGraph(w)
	if err != nil {
		return nil, err
	}

	w.Graph = graph
	w.Cycles = cycles

	return w, nil
}

func buildGraph(w *Workspace) (*depgraph.Graph, [][]string, error) {
	names := make([]string, len(w.Projects))
	for i, p := range w.Projects {
		names[i] = p.Name
	}

	builder := depgraph.NewBuilder(names)

	for _, p := range w.Projects {
		for _, dep := range w.EffectiveDependencies(p.Name) {
			if !builder.HasNode(dep) {
				return nil, nil, &merr.MissingDependencyError{Project: p.Name, Dependency: dep}
			}

			builder.AddEdge(p.Name, dep)
		}
	}

	graph, err := builder.Build()
	if err != nil {
		return nil, nil, err
	}

	return graph, graph.Cycles(), nil
}
