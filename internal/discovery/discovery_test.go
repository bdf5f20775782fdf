package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marty-build/marty/internal/pluginabi"
)

type stubPlugin struct {
	key      string
	includes []string
	excludes []string
	onFile   func(path, contents string) (*pluginabi.InferredProjectMessage, error)
}

func (s *stubPlugin) Key() string                      { return s.key }
func (s *stubPlugin) IncludeGlobs() ([]string, error)  { return s.includes, nil }
func (s *stubPlugin) ExcludeGlobs() ([]string, error)  { return s.excludes, nil }
func (s *stubPlugin) OnFileFound(path, contents string) (*pluginabi.InferredProjectMessage, error) {
	return s.onFile(path, contents)
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, contents := range files {
		abs := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(contents), 0o644))
	}
}

func TestScanInvokesPluginAndCollectsInferredProjects(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/Cargo.toml":            "[package]\nname = \"app\"\n",
		"node_modules/dep/index.js": "ignored",
	})

	cargo := &stubPlugin{
		key:      "cargo",
		includes: []string{"**/Cargo.toml"},
		onFile: func(path, contents string) (*pluginabi.InferredProjectMessage, error) {
			return &pluginabi.InferredProjectMessage{
				Name:         "app",
				ProjectDir:   filepath.Dir(path),
				DiscoveredBy: "cargo",
			}, nil
		},
	}

	result, err := Scan(root, []Plugin{cargo}, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Inferred, 1)
	require.Equal(t, "app", result.Inferred[0].Name)
}

func TestScanRespectsBuiltinExcludes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"node_modules/dep/package.json": "{}",
		"src/package.json":              "{}",
	})

	var seen []string
	plugin := &stubPlugin{
		key:      "pnpm",
		includes: []string{"**/package.json"},
		onFile: func(path, contents string) (*pluginabi.InferredProjectMessage, error) {
			seen = append(seen, path)
			return nil, nil
		},
	}

	_, err := Scan(root, []Plugin{plugin}, nil, nil)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Contains(t, seen[0], filepath.Join("src", "package.json"))
}

func TestScanWorkspaceIncludesReplacePluginIncludes(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/Cargo.toml": "x",
		"app/README.md":  "x",
	})

	var seen []string
	plugin := &stubPlugin{
		key:      "cargo",
		includes: []string{"**/Cargo.toml"},
		onFile: func(path, contents string) (*pluginabi.InferredProjectMessage, error) {
			seen = append(seen, path)
			return nil, nil
		},
	}

	_, err := Scan(root, []Plugin{plugin}, []string{"**/*.md"}, nil)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Contains(t, seen[0], "README.md")
}

func TestScanAddsExplicitProjectWhenMartyYMLPresent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app/Cargo.toml": "x",
		"app/marty.yml":  "name: app\ntags: [rust]\n",
	})

	plugin := &stubPlugin{
		key:      "cargo",
		includes: []string{"**/Cargo.toml"},
		onFile: func(path, contents string) (*pluginabi.InferredProjectMessage, error) {
			return &pluginabi.InferredProjectMessage{Name: "app", ProjectDir: filepath.Dir(path), DiscoveredBy: "cargo"}, nil
		},
	}

	result, err := Scan(root, []Plugin{plugin}, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Projects, 1)
	require.Equal(t, "app", result.Projects[0].Name)
	require.Equal(t, []string{"rust"}, result.Projects[0].Tags)
}
