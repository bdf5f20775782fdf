// Package taskrunner executes a taskresolver.Plan level by level: levels
// run strictly sequentially, projects within a level run cooperatively
// parallel over an internal/util.WorkerPool, and each project's task
// recursively runs its own declared task-level dependencies first.
package taskrunner

import (
	"context"
	"os"

	"github.com/marty-build/marty/internal/config"
	"github.com/marty-build/marty/internal/execshell"
	"github.com/marty-build/marty/internal/logging"
	"github.com/marty-build/marty/internal/merr"
	"github.com/marty-build/marty/internal/taskresolver"
	"github.com/marty-build/marty/internal/util"
	"github.com/marty-build/marty/internal/workspace"
)

// Run executes plan.TaskName across plan.Levels in topological order.
func Run(ctx context.Context, ws *workspace.Workspace, plan *taskresolver.Plan) error {
	for _, level := range plan.Levels {
		pool := util.NewWorkerPool(len(level))

		for _, projectName := range level {
			projectName := projectName

			pool.Submit(func() error {
				return runProjectTask(ctx, ws, plan.Tasks, projectName, plan.TaskName, []string{projectName}, map[string]struct{}{})
			})
		}

		if err := pool.Wait(); err != nil {
			pool.Stop()
			return err
		}

		pool.Stop()
	}

	return nil
}

// runProjectTask resolves and executes task taskName for project, first
// recursively running its declared dependencies in declaration order.
// visiting guards against a task-dependency cycle along the current
// recursion stack only: it is scoped to the active chain (removed again
// once that chain unwinds), so a diamond — two tasks sharing a common
// dependency — runs the shared dependency twice rather than tripping a
// false cycle error. Only a genuine back-edge within one chain is fatal.
func runProjectTask(ctx context.Context, ws *workspace.Workspace, tasks *config.TasksFile, projectName, taskName string, targets []string, visiting map[string]struct{}) error {
	if _, already := visiting[taskName]; already {
		return &merr.TaskError{Project: projectName, Task: taskName, Reason: "task dependency cycle detected"}
	}
	visiting[taskName] = struct{}{}
	defer delete(visiting, taskName)

	task, err := taskresolver.EffectiveTask(ws, tasks, projectName, taskName)
	if err != nil {
		return err
	}

	for _, dep := range task.Dependencies {
		if err := runProjectTask(ctx, ws, tasks, projectName, dep, targets, visiting); err != nil {
			return err
		}
	}

	logging.WithTask(projectName, taskName).Info("running task")

	return execshell.Run(ctx, *task, execshell.Options{
		WorkspaceRoot: ws.Root,
		Project:       projectName,
		Task:          taskName,
		Targets:       targets,
		Stdout:        os.Stdout,
		Stderr:        os.Stderr,
	})
}
