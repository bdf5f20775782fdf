// Package taskresolver implements the target grammar, task existence
// checks, initial target-set computation, and tag-based compatibility
// filtering described for the task planning phase.
package taskresolver

import (
	"sort"
	"strings"

	"github.com/marty-build/marty/internal/config"
	"github.com/marty-build/marty/internal/merr"
	"github.com/marty-build/marty/internal/workspace"
)

// Target is a parsed "[project:]task" string.
type Target struct {
	Project string // empty if no filter was given
	Task    string
}

// ParseTarget splits on the first colon; a bare string is a task name with
// no project filter.
func ParseTarget(raw string) Target {
	if project, task, found := strings.Cut(raw, ":"); found {
		return Target{Project: project, Task: task}
	}
	return Target{Task: raw}
}

// Plan is the result of resolving a Target against a Workspace: the
// effective task name, the topological levels to execute, and the merged
// workspace TasksFile used to look up task definitions.
type Plan struct {
	TaskName           string
	Levels             [][]string
	CompatibleProjects []string
	Tasks              *config.TasksFile
}

// Resolve implements the full §4.F pipeline: existence check, initial
// target set, dependency expansion, and tag filtering.
func Resolve(ws *workspace.Workspace, tasks *config.TasksFile, target Target) (*Plan, error) {
	if err := checkExists(ws, tasks, target); err != nil {
		return nil, err
	}

	initial, err := initialSet(ws, target)
	if err != nil {
		return nil, err
	}

	expanded, err := ws.Graph.RecursiveDependencies(initial)
	if err != nil {
		return nil, err
	}

	compatible, err := filterByTags(ws, tasks, expanded)
	if err != nil {
		return nil, err
	}

	if target.Project != "" && !contains(compatible, target.Project) {
		return nil, &merr.TagMismatchError{Project: target.Project, Task: target.Task}
	}

	levels := ws.Graph.Levels(compatible)

	return &Plan{
		TaskName:           target.Task,
		Levels:             levels,
		CompatibleProjects: compatible,
		Tasks:              tasks,
	}, nil
}

func checkExists(ws *workspace.Workspace, tasks *config.TasksFile, target Target) error {
	for _, t := range tasks.Tasks {
		if t.Name == target.Task {
			return nil
		}
	}

	if target.Project != "" {
		p, ok := ws.ProjectByName(target.Project)
		if !ok {
			return &merr.WorkspaceError{Project: target.Project, Reason: "project not found"}
		}
		for _, t := range p.Tasks {
			if t.Name == target.Task {
				return nil
			}
		}
		return &merr.TaskError{Project: target.Project, Task: target.Task, Reason: "unknown task"}
	}

	for _, p := range ws.Projects {
		for _, t := range p.Tasks {
			if t.Name == target.Task {
				return nil
			}
		}
	}

	return &merr.TaskError{Task: target.Task, Reason: "unknown task"}
}

func initialSet(ws *workspace.Workspace, target Target) ([]string, error) {
	if target.Project != "" {
		if _, ok := ws.ProjectByName(target.Project); !ok {
			return nil, &merr.WorkspaceError{Project: target.Project, Reason: "project not found"}
		}
		return []string{target.Project}, nil
	}

	names := make([]string, len(ws.Projects))
	for i, p := range ws.Projects {
		names[i] = p.Name
	}
	return names, nil
}

// filterByTags keeps only projects compatible with the TasksFile's tags:
// no tags declared means everything is compatible; a project without a
// manifest is always compatible; a tagged TasksFile requires at least one
// shared tag, and a project with an empty tag set is then incompatible.
func filterByTags(ws *workspace.Workspace, tasks *config.TasksFile, candidates []string) ([]string, error) {
	if len(tasks.Tags) == 0 {
		sorted := append([]string{}, candidates...)
		sort.Strings(sorted)
		return sorted, nil
	}

	tagSet := make(map[string]struct{}, len(tasks.Tags))
	for _, t := range tasks.Tags {
		tagSet[t] = struct{}{}
	}

	var compatible []string
	for _, name := range candidates {
		project, hasManifest := ws.ProjectByName(name)
		if !hasManifest {
			compatible = append(compatible, name)
			continue
		}

		if len(project.Tags) == 0 {
			continue
		}

		shared := false
		for _, tag := range project.Tags {
			if _, ok := tagSet[tag]; ok {
				shared = true
				break
			}
		}
		if shared {
			compatible = append(compatible, name)
		}
	}

	sort.Strings(compatible)
	return compatible, nil
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// EffectiveTask resolves task T for project P: P's own definition if
// present, else the workspace-level definition. The override is
// structural — it replaces the task wholesale, never merges fields.
func EffectiveTask(ws *workspace.Workspace, tasks *config.TasksFile, projectName, taskName string) (*config.TaskConfig, error) {
	if project, ok := ws.ProjectByName(projectName); ok {
		for _, t := range project.Tasks {
			if t.Name == taskName {
				return &t, nil
			}
		}
	}

	for _, t := range tasks.Tasks {
		if t.Name == taskName {
			return &t, nil
		}
	}

	return nil, &merr.TaskError{Project: projectName, Task: taskName, Reason: "unknown task"}
}
