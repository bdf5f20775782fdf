// Package config defines marty's on-disk YAML schemas (workspace.yml,
// marty.yml, tasks/*.yml) and a strict loader that rejects unknown keys,
// grounded in the teacher's convention of failing fast on malformed
// configuration (config.ParseConfigString et al.) even though the teacher
// itself parses HCL rather than YAML; gopkg.in/yaml.v3 is used here
// because it is the pack's own answer to strict-enough YAML decoding.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/marty-build/marty/internal/merr"
	"github.com/marty-build/marty/internal/plugincache"
)

// TaskConfig is one task definition, shared across workspace.yml's
// tasks/*.yml files and a project's marty.yml.
type TaskConfig struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description,omitempty"`
	Script          string   `yaml:"script,omitempty"`
	Command         any      `yaml:"command,omitempty"` // string or []string
	Dependencies    []string `yaml:"dependencies,omitempty"`
	OverrideTargets []string `yaml:"overrideTargets,omitempty"`
}

// CommandArgs normalizes Command into a program plus argument list per the
// Single(s)/Multiple([]) wire shapes: a bare string is "sh -c <s>"; a list
// is [program, args...]. ok is false for an empty list (the no-op case) and
// also for an absent Command; callers tell the two apart by checking
// Command for nil.
func (t TaskConfig) CommandArgs() (program string, args []string, isShell bool, ok bool) {
	switch v := t.Command.(type) {
	case string:
		return "sh", []string{"-c", v}, true, true
	case []string:
		if len(v) == 0 {
			return "", nil, false, false
		}

		return v[0], v[1:], false, true
	case []any:
		if len(v) == 0 {
			return "", nil, false, false
		}

		strs := make([]string, len(v))
		for i, item := range v {
			strs[i] = fmt.Sprintf("%v", item)
		}

		return strs[0], strs[1:], false, true
	default:
		return "", nil, false, false
	}
}

// WorkspaceConfig is the root .marty/workspace.yml document.
type WorkspaceConfig struct {
	Name        string               `yaml:"name,omitempty"`
	Description string               `yaml:"description,omitempty"`
	Plugins     []plugincache.Config `yaml:"plugins,omitempty"`
	Includes    []string             `yaml:"includes,omitempty"`
	Excludes    []string             `yaml:"excludes,omitempty"`
}

// ProjectManifest is a project's marty.yml.
type ProjectManifest struct {
	Name         string       `yaml:"name,omitempty"`
	Description  string       `yaml:"description,omitempty"`
	Tags         []string     `yaml:"tags,omitempty"`
	Dependencies []string     `yaml:"dependencies,omitempty"`
	Tasks        []TaskConfig `yaml:"tasks,omitempty"`
}

// TasksFile is a .marty/tasks/*.yml document.
type TasksFile struct {
	Name        string       `yaml:"name,omitempty"`
	Description string       `yaml:"description,omitempty"`
	Tasks       []TaskConfig `yaml:"tasks"`
	Tags        []string     `yaml:"tags,omitempty"`
	Targets     []string     `yaml:"targets,omitempty"`
}

// allowedKeys maps each schema to its permitted top-level key set, used by
// the strict decoder's unknown-key pass.
var allowedKeys = map[string][]string{
	"workspace": {"name", "description", "plugins", "includes", "excludes"},
	"manifest":  {"name", "description", "tags", "dependencies", "tasks"},
	"tasksfile": {"name", "description", "tasks", "tags", "targets"},
	"plugin":    {"repository", "version", "plugin", "url", "path", "enabled", "options"},
	"task":      {"name", "description", "script", "command", "dependencies", "overrideTargets"},
}

func rejectUnknownKeys(path, schema string, raw map[string]any) error {
	allowed := allowedKeys[schema]
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}

	var unknown []string
	for k := range raw {
		if _, ok := allowedSet[k]; !ok {
			unknown = append(unknown, k)
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)

	return &merr.ConfigError{Path: path, Reason: fmt.Sprintf("unknown field(s) %v; valid fields are %v", unknown, allowed)}
}

func decodeStrict(path, schema string, data []byte, out any) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &merr.ConfigError{Path: path, Reason: err.Error()}
	}

	if raw != nil {
		if err := rejectUnknownKeys(path, schema, raw); err != nil {
			return err
		}

		if err := rejectUnknownNestedKeys(path, raw); err != nil {
			return err
		}
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return &merr.ConfigError{Path: path, Reason: err.Error()}
	}

	return nil
}

// rejectUnknownNestedKeys re-validates the "tasks" and "plugins" arrays
// nested inside a workspace/manifest/tasksfile document, since a struct
// decode silently drops fields the Go type doesn't declare.
func rejectUnknownNestedKeys(path string, raw map[string]any) error {
	if tasksRaw, ok := raw["tasks"].([]any); ok {
		for _, item := range tasksRaw {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if err := rejectUnknownKeys(path, "task", obj); err != nil {
				return err
			}
		}
	}

	if pluginsRaw, ok := raw["plugins"].([]any); ok {
		for _, item := range pluginsRaw {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if err := rejectUnknownKeys(path, "plugin", obj); err != nil {
				return err
			}
		}
	}

	return nil
}

// LoadWorkspaceConfig reads and strictly decodes .marty/workspace.yml.
func LoadWorkspaceConfig(path string) (*WorkspaceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &merr.IOError{Path: path, Cause: err}
	}

	var cfg WorkspaceConfig
	if err := decodeStrict(path, "workspace", data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadProjectManifest reads and strictly decodes a project's marty.yml.
func LoadProjectManifest(path string) (*ProjectManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &merr.IOError{Path: path, Cause: err}
	}

	var manifest ProjectManifest
	if err := decodeStrict(path, "manifest", data, &manifest); err != nil {
		return nil, err
	}

	return &manifest, nil
}

// LoadTasksFile reads and strictly decodes one .marty/tasks/*.yml file.
func LoadTasksFile(path string) (*TasksFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &merr.IOError{Path: path, Cause: err}
	}

	var tf TasksFile
	if err := decodeStrict(path, "tasksfile", data, &tf); err != nil {
		return nil, err
	}

	return &tf, nil
}

// LoadAllTasksFiles loads and merges every .marty/tasks/*.yml file under a
// workspace root using last-writer-wins semantics for singleton fields and
// union-with-dedup for tags, per the merge rule for the workspace's
// combined TasksFile.
func LoadAllTasksFiles(workspaceRoot string) (*TasksFile, error) {
	dir := filepath.Join(workspaceRoot, ".marty", "tasks")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &TasksFile{}, nil
		}
		return nil, &merr.IOError{Path: dir, Cause: err}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	merged := &TasksFile{}
	seenTags := map[string]struct{}{}

	for _, name := range names {
		tf, err := LoadTasksFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		if tf.Name != "" {
			merged.Name = tf.Name
		}
		if tf.Description != "" {
			merged.Description = tf.Description
		}
		if len(tf.Targets) > 0 {
			merged.Targets = tf.Targets
		}

		merged.Tasks = append(merged.Tasks, tf.Tasks...)

		for _, tag := range tf.Tags {
			if _, ok := seenTags[tag]; !ok {
				seenTags[tag] = struct{}{}
				merged.Tags = append(merged.Tags, tag)
			}
		}
	}

	return merged, nil
}
