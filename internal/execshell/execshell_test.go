package execshell

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marty-build/marty/internal/config"
	"github.com/marty-build/marty/internal/merr"
)

func captureOpts(t *testing.T, root string) (Options, *os.File, func() string) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)

	return Options{WorkspaceRoot: root, Project: "p", Task: "t", Targets: []string{"p"}}, f, func() string {
		data, _ := os.ReadFile(f.Name())
		return string(data)
	}
}

func TestRunSingleShellCommand(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	opts, out, read := captureOpts(t, root)
	opts.Stdout = out

	task := config.TaskConfig{Name: "echo", Command: "echo hello-$MARTY_TARGET_0"}
	require.NoError(t, Run(context.Background(), task, opts))
	require.Contains(t, read(), "hello-p")
}

func TestRunMultipleCommand(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	opts, out, read := captureOpts(t, root)
	opts.Stdout = out

	task := config.TaskConfig{Name: "echo", Command: []any{"echo", "multi"}}
	require.NoError(t, Run(context.Background(), task, opts))
	require.Contains(t, read(), "multi")
}

func TestRunEmptyMultipleIsNoop(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	opts, _, _ := captureOpts(t, root)

	task := config.TaskConfig{Name: "noop", Command: []any{}}
	require.NoError(t, Run(context.Background(), task, opts))
}

func TestRunNonZeroExitIsExitError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	opts, _, _ := captureOpts(t, root)

	task := config.TaskConfig{Name: "fail", Command: "exit 3"}
	err := Run(context.Background(), task, opts)
	require.Error(t, err)

	var exitErr *merr.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.ExitCode)
}

func TestRunBothScriptAndCommandIsFatal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	opts, _, _ := captureOpts(t, root)

	task := config.TaskConfig{Name: "bad", Script: "build.sh", Command: "echo hi"}
	err := Run(context.Background(), task, opts)
	require.Error(t, err)
}

func TestRunMissingScriptFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	opts, _, _ := captureOpts(t, root)

	task := config.TaskConfig{Name: "bad", Script: "does-not-exist.sh"}
	err := Run(context.Background(), task, opts)
	require.Error(t, err)
}

func TestRunScriptRelativeToWorkspaceRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	script := filepath.Join(root, "build.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho built\n"), 0o755))

	opts, out, read := captureOpts(t, root)
	opts.Stdout = out

	task := config.TaskConfig{Name: "build", Script: "build.sh"}
	require.NoError(t, Run(context.Background(), task, opts))
	require.Contains(t, read(), "built")
}
