// Command typescript is a supplemental workspace-provider plugin: it
// reads tsconfig.json "references" arrays and reports the referenced
// project directories as workspace dependencies, naming a project after
// its containing directory rather than a manifest field (tsconfig.json
// has none). Grounded on the original TypeScript plugin
// (plugins/typescript/src/lib.rs).
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	"github.com/marty-build/marty/internal/pluginabi"
)

//export plugin_name
func plugin_name() *C.char {
	return C.CString("TypeScript Plugin")
}

//export plugin_key
func plugin_key() *C.char {
	return C.CString("typescript")
}

//export plugin_type
func plugin_type() C.uint8_t {
	return C.uint8_t(pluginabi.PluginTypeSupplemental)
}

//export plugin_include_globs
func plugin_include_globs() *C.char {
	return marshalOwned([]string{"**/tsconfig.json"})
}

//export plugin_exclude_globs
func plugin_exclude_globs() *C.char {
	return marshalOwned([]string{"**/node_modules/**", "**/.git/**", "**/dist/**"})
}

// configOptions is the set of workspace.yml plugin options this plugin
// accepts; plugin_config_options reflects it into a JSON Schema document
// rather than hand-maintaining one. The host only validates configured
// options against that schema: option values are never passed to the
// plugin, so they do not change what is scanned.
type configOptions struct {
	Includes []string `json:"includes,omitempty" jsonschema_description:"glob patterns; accepted by option validation, not applied to scanning"`
	Excludes []string `json:"excludes,omitempty" jsonschema_description:"glob patterns; accepted by option validation, not applied to scanning"`
}

//export plugin_config_options
func plugin_config_options() *C.char {
	return marshalOwned(pluginabi.ConfigOptionsSchema(&configOptions{}))
}

//export plugin_on_file_found
func plugin_on_file_found(path, contents *C.char) *C.char {
	goPath := C.GoString(path)
	if filepath.Base(goPath) != "tsconfig.json" {
		return null()
	}

	msg := processTSConfig(goPath, C.GoString(contents))
	if msg == nil {
		return null()
	}

	return marshalOwned(msg)
}

//export plugin_cleanup_string
func plugin_cleanup_string(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func null() *C.char {
	return C.CString("null")
}

func marshalOwned(v any) *C.char {
	data, err := json.Marshal(v)
	if err != nil {
		return null()
	}
	return C.CString(string(data))
}

type tsConfig struct {
	References []tsReference `json:"references"`
}

type tsReference struct {
	Path string `json:"path"`
}

func processTSConfig(manifestPath, contents string) *pluginabi.InferredProjectMessage {
	if filepath.Base(manifestPath) != "tsconfig.json" {
		return nil
	}

	var cfg tsConfig
	// A malformed tsconfig (e.g. with JSONC comments) degrades to "no
	// references" rather than failing the whole scan, matching the
	// original plugin's unwrap_or_default.
	_ = json.Unmarshal([]byte(contents), &cfg)

	projectDir := filepath.Dir(manifestPath)
	name := filepath.Base(projectDir)

	deps := referencedProjectNames(cfg, projectDir)

	return &pluginabi.InferredProjectMessage{
		Name:                  name,
		ProjectDir:            projectDir,
		DiscoveredBy:          "typescript",
		WorkspaceDependencies: deps,
	}
}

func referencedProjectNames(cfg tsConfig, projectDir string) []string {
	names := map[string]struct{}{}

	for _, ref := range cfg.References {
		if ref.Path == "" {
			continue
		}

		refPath := ref.Path
		if strings.EqualFold(filepath.Base(refPath), "tsconfig.json") {
			refPath = filepath.Dir(refPath)
		}

		resolved := filepath.Join(projectDir, refPath)
		names[filepath.Base(resolved)] = struct{}{}
	}

	result := make([]string, 0, len(names))
	for n := range names {
		result = append(result, n)
	}
	sort.Strings(result)

	return result
}

func main() {
	_ = os.Args
}
