package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestLoadWorkspaceConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "workspace.yml", `
name: demo
includes: ["**/*.rs"]
plugins:
  - path: builtin
    plugin: cargo
`)

	cfg, err := LoadWorkspaceConfig(path)
	require.NoError(t, err)
	require.Equal(t, "demo", cfg.Name)
	require.Equal(t, []string{"**/*.rs"}, cfg.Includes)
	require.Len(t, cfg.Plugins, 1)
	require.Equal(t, "builtin", cfg.Plugins[0].Path)
}

func TestLoadWorkspaceConfigRejectsUnknownTopLevelKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "workspace.yml", "name: demo\nbogus: true\n")

	_, err := LoadWorkspaceConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bogus")
}

func TestLoadProjectManifestRejectsUnknownNestedTaskKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "marty.yml", `
name: api
tasks:
  - name: build
    command: cargo build
    bogusField: 1
`)

	_, err := LoadProjectManifest(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bogusField")
}

func TestTaskConfigCommandArgsVariants(t *testing.T) {
	t.Parallel()

	single := TaskConfig{Command: "cargo build"}
	program, args, isShell, ok := single.CommandArgs()
	require.True(t, ok)
	require.True(t, isShell)
	require.Equal(t, "sh", program)
	require.Equal(t, []string{"-c", "cargo build"}, args)

	multi := TaskConfig{Command: []any{"cargo", "build", "--release"}}
	program, args, isShell, ok = multi.CommandArgs()
	require.True(t, ok)
	require.False(t, isShell)
	require.Equal(t, "cargo", program)
	require.Equal(t, []string{"build", "--release"}, args)

	empty := TaskConfig{Command: []any{}}
	_, _, _, ok = empty.CommandArgs()
	require.False(t, ok)
}

func TestLoadAllTasksFilesMergesWithLastWriterWinsAndTagDedup(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tasksDir := filepath.Join(root, ".marty", "tasks")
	require.NoError(t, os.MkdirAll(tasksDir, 0o755))

	writeFile(t, tasksDir, "a.yml", `
name: first
tags: [rust, shared]
tasks:
  - name: build
    command: cargo build
`)
	writeFile(t, tasksDir, "b.yml", `
name: second
tags: [shared, js]
tasks:
  - name: test
    command: cargo test
`)

	merged, err := LoadAllTasksFiles(root)
	require.NoError(t, err)
	require.Equal(t, "second", merged.Name)
	require.Len(t, merged.Tasks, 2)
	require.Equal(t, []string{"rust", "shared", "js"}, merged.Tags)
}

func TestLoadAllTasksFilesMissingDirectoryReturnsEmpty(t *testing.T) {
	t.Parallel()

	merged, err := LoadAllTasksFiles(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, merged.Tasks)
}
