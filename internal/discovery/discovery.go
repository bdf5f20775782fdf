// Package discovery walks a workspace root honoring include/exclude
// globs, invokes every loaded plugin on each kept file in registration
// order, and collects inferred projects plus marty.yml-backed explicit
// projects. Glob matching uses github.com/mattn/go-zglob, grounded on the
// teacher's own zglob.Glob calls for *.tf/*.hcl discovery (cli/cli_app.go,
// cli/hclfmt.go), generalized from whole-tree Glob scans to an incremental
// BFS that tests one relative path at a time against the include/exclude
// sets.
package discovery

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-zglob"

	"github.com/marty-build/marty/internal/config"
	"github.com/marty-build/marty/internal/merr"
	"github.com/marty-build/marty/internal/pluginabi"
	"github.com/marty-build/marty/internal/pluginhost"
	"github.com/marty-build/marty/internal/workspace"
)

// builtinExcludes are always excluded regardless of configuration.
var builtinExcludes = []string{"**/.git/**", "**/target/**", "**/node_modules/**"}

// Plugin is the subset of pluginhost.Handle the scanner depends on,
// narrowed for testability.
type Plugin interface {
	Key() string
	IncludeGlobs() ([]string, error)
	ExcludeGlobs() ([]string, error)
	OnFileFound(path, contents string) (*pluginabi.InferredProjectMessage, error)
}

var _ Plugin = (*pluginhost.Handle)(nil)

// Result is the raw scan output before Workspace invariant checks run.
type Result struct {
	Projects []workspace.Project
	Inferred []workspace.InferredProject
}

// Scan walks root, applying the include/exclude resolution rules, and
// invokes every plugin (in order) on each kept file.
func Scan(root string, plugins []Plugin, workspaceIncludes, workspaceExcludes []string) (*Result, error) {
	includes, err := effectiveIncludes(plugins, workspaceIncludes)
	if err != nil {
		return nil, err
	}

	excludes, err := effectiveExcludes(plugins, workspaceExcludes)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	seenNames := map[string]struct{}{}

	err = walkBFS(root, func(relPath string, isDir bool) (bool, error) {
		excluded, err := matchesAny(excludes, relPath)
		if err != nil {
			return false, err
		}
		if excluded {
			return false, nil
		}

		if isDir {
			return true, nil
		}

		included, err := matchesAny(includes, relPath)
		if err != nil {
			return false, err
		}
		if !included {
			return false, nil
		}

		return false, handleFile(root, relPath, plugins, result, seenNames)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func handleFile(root, relPath string, plugins []Plugin, result *Result, seenNames map[string]struct{}) error {
	absPath := filepath.Join(root, relPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return &merr.IOError{Path: absPath, Cause: err}
	}
	contents := string(data)

	for _, plugin := range plugins {
		msg, err := plugin.OnFileFound(absPath, contents)
		if err != nil {
			return &merr.PluginError{Plugin: plugin.Key(), Reason: "plugin_on_file_found failed", Cause: err}
		}
		if msg == nil {
			continue
		}

		result.Inferred = append(result.Inferred, workspace.InferredProject{
			Name:                  msg.Name,
			ProjectDir:            msg.ProjectDir,
			DiscoveredBy:          msg.DiscoveredBy,
			WorkspaceDependencies: msg.WorkspaceDependencies,
		})

		manifestPath := filepath.Join(msg.ProjectDir, "marty.yml")
		if _, already := seenNames[msg.Name]; already {
			continue
		}

		if _, statErr := os.Stat(manifestPath); statErr == nil {
			manifest, err := config.LoadProjectManifest(manifestPath)
			if err != nil {
				return err
			}

			name := manifest.Name
			if name == "" {
				name = msg.Name
			}

			result.Projects = append(result.Projects, workspace.Project{
				Name:         name,
				ProjectDir:   msg.ProjectDir,
				ManifestPath: manifestPath,
				Tags:         manifest.Tags,
				Dependencies: manifest.Dependencies,
				Tasks:        manifest.Tasks,
			})
			seenNames[name] = struct{}{}
		}
	}

	return nil
}

// effectiveIncludes implements the whitelist-wins rule: non-empty
// workspace includes completely replace plugin includes; empty workspace
// includes fall back to the union of plugin includes; if that is also
// empty, the default is "**".
func effectiveIncludes(plugins []Plugin, workspaceIncludes []string) ([]string, error) {
	if len(workspaceIncludes) > 0 {
		return workspaceIncludes, nil
	}

	var all []string
	for _, p := range plugins {
		globs, err := p.IncludeGlobs()
		if err != nil {
			return nil, err
		}
		all = append(all, globs...)
	}

	if len(all) == 0 {
		return []string{"**"}, nil
	}

	return all, nil
}

// effectiveExcludes is the union of built-ins, workspace excludes, and
// every plugin's excludes.
func effectiveExcludes(plugins []Plugin, workspaceExcludes []string) ([]string, error) {
	excludes := append([]string{}, builtinExcludes...)
	excludes = append(excludes, workspaceExcludes...)

	for _, p := range plugins {
		globs, err := p.ExcludeGlobs()
		if err != nil {
			return nil, err
		}
		excludes = append(excludes, globs...)
	}

	return excludes, nil
}

func matchesAny(globs []string, relPath string) (bool, error) {
	for _, g := range globs {
		ok, err := zglob.Match(g, relPath)
		if err != nil {
			return false, &merr.ConfigError{Reason: "invalid glob pattern " + g + ": " + err.Error()}
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// walkBFS enumerates root's tree breadth-first; visit receives the path
// relative to root (using forward slashes) and whether it is a directory,
// and returns whether to recurse into it (directories only).
func walkBFS(root string, visit func(relPath string, isDir bool) (bool, error)) error {
	type queued struct{ abs, rel string }

	queue := []queued{{abs: root, rel: ""}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(cur.abs)
		if err != nil {
			return &merr.IOError{Path: cur.abs, Cause: err}
		}

		for _, entry := range entries {
			rel := entry.Name()
			if cur.rel != "" {
				rel = filepath.ToSlash(filepath.Join(cur.rel, entry.Name()))
			}
			abs := filepath.Join(cur.abs, entry.Name())

			recurse, err := visit(rel, entry.IsDir())
			if err != nil {
				return err
			}

			if entry.IsDir() && recurse {
				queue = append(queue, queued{abs: abs, rel: rel})
			}
		}
	}

	return nil
}
