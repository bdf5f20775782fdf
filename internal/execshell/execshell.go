// Package execshell dispatches a resolved TaskConfig to a subprocess:
// script, single shell command, or program-plus-args, with workspace root
// as CWD and MARTY_TARGET_i environment variables naming the effective
// targets, grounded on the teacher's shell package conventions for
// building and running *exec.Cmd (util/cmd_registry.go's Run pattern:
// inherited env plus extra vars, explicit CWD, captured output).
package execshell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/marty-build/marty/internal/config"
	"github.com/marty-build/marty/internal/merr"
)

// Options control a single task invocation.
type Options struct {
	WorkspaceRoot string
	Project       string
	Task          string
	Targets       []string
	Stdout        *os.File
	Stderr        *os.File
}

// Run executes one resolved TaskConfig to completion.
func Run(ctx context.Context, task config.TaskConfig, opts Options) error {
	targets := task.OverrideTargets
	if len(targets) == 0 {
		targets = opts.Targets
	}

	program, args, isShell, ok := task.CommandArgs()

	switch {
	case task.Script != "" && (task.Command != nil):
		return &merr.TaskError{Project: opts.Project, Task: opts.Task, Reason: "exactly one of script or command must be set"}
	case task.Script != "":
		return runScript(ctx, task.Script, targets, opts)
	case task.Command != nil && ok:
		return runCommand(ctx, program, args, isShell, targets, opts)
	case task.Command != nil && !ok:
		// Multiple([]) is a documented no-op.
		return nil
	default:
		return &merr.TaskError{Project: opts.Project, Task: opts.Task, Reason: "exactly one of script or command must be set"}
	}
}

func runScript(ctx context.Context, script string, targets []string, opts Options) error {
	path := script
	if !filepath.IsAbs(path) {
		path = filepath.Join(opts.WorkspaceRoot, path)
	}

	if _, err := os.Stat(path); err != nil {
		return &merr.TaskError{Project: opts.Project, Task: opts.Task, Reason: "script not found: " + path, Cause: err}
	}

	return run(ctx, path, nil, targets, opts)
}

func runCommand(ctx context.Context, program string, args []string, _ bool, targets []string, opts Options) error {
	return run(ctx, program, args, targets, opts)
}

func run(ctx context.Context, program string, args []string, targets []string, opts Options) error {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = opts.WorkspaceRoot
	cmd.Env = append(os.Environ(), targetEnv(targets)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		return &merr.ExitError{Project: opts.Project, Task: opts.Task, ExitCode: exitErr.ExitCode()}
	}

	return &merr.TaskError{Project: opts.Project, Task: opts.Task, Reason: "failed to run", Cause: err}
}

func targetEnv(targets []string) []string {
	env := make([]string, len(targets))
	for i, t := range targets {
		env[i] = fmt.Sprintf("MARTY_TARGET_%d=%s", i, t)
	}
	return env
}
