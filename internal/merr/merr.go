// Package merr holds marty's error taxonomy: one concrete type per error
// kind named in the design (Config, Plugin, Workspace, Graph, Task, IO),
// each carrying enough context to identify the offending object. This
// mirrors the teacher's per-command error types (e.g.
// cli/commands/terraform's MissingCommandError) rather than a single
// generic wrapped-string error.
package merr

import (
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
)

// WithStack wraps err with a captured stack trace, for the first place an
// underlying I/O, subprocess, or HTTP error surfaces. A nil err returns nil.
func WithStack(err error) error {
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, 1)
}

// ConfigError reports malformed configuration: bad YAML, missing required
// fields, unknown fields, or a plugin spec missing every source variant.
type ConfigError struct {
	Path   string
	Reason string
}

func (err *ConfigError) Error() string {
	if err.Path == "" {
		return fmt.Sprintf("config error: %s", err.Reason)
	}

	return fmt.Sprintf("config error in %s: %s", err.Path, err.Reason)
}

// PluginError reports a download, load, or option-validation failure for a
// named plugin.
type PluginError struct {
	Plugin string
	Reason string
	Cause  error
}

func (err *PluginError) Error() string {
	msg := fmt.Sprintf("plugin %q: %s", err.Plugin, err.Reason)
	if err.Cause != nil {
		msg += ": " + err.Cause.Error()
	}

	return msg
}

func (err *PluginError) Unwrap() error {
	return err.Cause
}

// WorkspaceError reports a project name that is not part of the workspace.
type WorkspaceError struct {
	Project string
	Reason  string
}

func (err *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace error for project %q: %s", err.Project, err.Reason)
}

// MissingDependencyError is the specific WorkspaceError/GraphError raised
// when a project depends on a name that is not a node in the graph.
type MissingDependencyError struct {
	Project    string
	Dependency string
}

func (err *MissingDependencyError) Error() string {
	return fmt.Sprintf("project %q depends on %q which was not found", err.Project, err.Dependency)
}

// CycleError reports one or more cycles intersecting a requested reachable set.
type CycleError struct {
	Cycles [][]string
}

func (err *CycleError) Error() string {
	parts := make([]string, 0, len(err.Cycles))
	for _, cycle := range err.Cycles {
		if len(cycle) == 0 {
			continue
		}

		chain := append(append([]string{}, cycle...), cycle[0])
		parts = append(parts, strings.Join(chain, " -> "))
	}

	return "Circular dependency detected: " + strings.Join(parts, "; ")
}

// TaskError reports a task resolution or execution failure.
type TaskError struct {
	Project string
	Task    string
	Reason  string
	Cause   error
}

func (err *TaskError) Error() string {
	subject := err.Task
	if err.Project != "" {
		subject = err.Project + ":" + err.Task
	}

	msg := fmt.Sprintf("task %q: %s", subject, err.Reason)
	if err.Cause != nil {
		msg += ": " + err.Cause.Error()
	}

	return msg
}

func (err *TaskError) Unwrap() error {
	return err.Cause
}

// TagMismatchError reports a project filter that is incompatible with a
// tag-gated TasksFile.
type TagMismatchError struct {
	Project string
	Task    string
}

func (err *TagMismatchError) Error() string {
	return fmt.Sprintf("project %q is not tagged for task %q", err.Project, err.Task)
}

// ExitError reports a subprocess that exited with a non-zero code.
type ExitError struct {
	Project  string
	Task     string
	ExitCode int
}

func (err *ExitError) Error() string {
	return fmt.Sprintf("task %q on project %q exited with code %d", err.Task, err.Project, err.ExitCode)
}

// IOError wraps any filesystem error with the offending path.
type IOError struct {
	Path  string
	Cause error
}

func (err *IOError) Error() string {
	return fmt.Sprintf("io error at %s: %s", err.Path, err.Cause.Error())
}

func (err *IOError) Unwrap() error {
	return err.Cause
}
