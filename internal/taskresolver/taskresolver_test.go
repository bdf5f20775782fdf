package taskresolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marty-build/marty/internal/config"
	"github.com/marty-build/marty/internal/merr"
	"github.com/marty-build/marty/internal/workspace"
)

func TestParseTarget(t *testing.T) {
	t.Parallel()

	require.Equal(t, Target{Project: "a", Task: "build"}, ParseTarget("a:build"))
	require.Equal(t, Target{Task: "build"}, ParseTarget("build"))
}

func buildWorkspace(t *testing.T, projects []workspace.Project) *workspace.Workspace {
	t.Helper()

	ws, err := workspace.New(t.TempDir(), projects, nil)
	require.NoError(t, err)

	return ws
}

func TestResolveTagFiltering(t *testing.T) {
	t.Parallel()

	ws := buildWorkspace(t, []workspace.Project{
		{Name: "a", Tags: []string{"rust"}},
		{Name: "b", Tags: []string{"js"}},
	})

	tasks := &config.TasksFile{
		Tasks: []config.TaskConfig{{Name: "test", Command: "cargo test"}},
		Tags:  []string{"rust"},
	}

	plan, err := Resolve(ws, tasks, ParseTarget("test"))
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, plan.CompatibleProjects)

	_, err = Resolve(ws, tasks, ParseTarget("b:test"))
	require.Error(t, err)

	var mismatch *merr.TagMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestResolveUnknownTaskFails(t *testing.T) {
	t.Parallel()

	ws := buildWorkspace(t, []workspace.Project{{Name: "a"}})
	tasks := &config.TasksFile{}

	_, err := Resolve(ws, tasks, ParseTarget("nope"))
	require.Error(t, err)
}

func TestEffectiveTaskPrefersProjectOverride(t *testing.T) {
	t.Parallel()

	ws := buildWorkspace(t, []workspace.Project{
		{Name: "a", Tasks: []config.TaskConfig{{Name: "build", Command: "project-specific"}}},
	})
	tasks := &config.TasksFile{Tasks: []config.TaskConfig{{Name: "build", Command: "workspace-default"}}}

	task, err := EffectiveTask(ws, tasks, "a", "build")
	require.NoError(t, err)
	require.Equal(t, "project-specific", task.Command)

	task, err = EffectiveTask(ws, tasks, "unknown-project", "build")
	require.NoError(t, err)
	require.Equal(t, "workspace-default", task.Command)
}
