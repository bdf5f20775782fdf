// Command pnpm is a primary workspace-provider plugin recognizing
// package.json manifests and reporting workspace:/file: dependency
// entries as sibling workspace dependencies. Grounded on the original
// pnpm plugin (plugins/pnpm/src/lib.rs); package.json is plain JSON so
// this plugin leans on the standard library's encoding/json rather than
// reaching for a third-party decoder.
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
	return C.CString("PNPM Plugin")
}

//export plugin_key
func plugin_key() *C.char {
	return C.CString("pnpm")
}

//export plugin_type
func plugin_type() C.uint8_t {
	return C.uint8_t(pluginabi.PluginTypePrimary)
}

//export plugin_include_globs
func plugin_include_globs() *C.char {
	return marshalOwned([]string{"**/package.json"})
}

//export plugin_exclude_globs
func plugin_exclude_globs() *C.char {
	return marshalOwned([]string{"**/node_modules/**", "**/.git/**", "**/target/**"})
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
	if filepath.Base(goPath) != "package.json" {
		return null()
	}

	msg := processPackageJSON(goPath, C.GoString(contents))
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

type packageJSON struct {
	Name                 string                     `json:"name"`
	Dependencies         map[string]json.RawMessage `json:"dependencies"`
	DevDependencies      map[string]json.RawMessage `json:"devDependencies"`
	OptionalDependencies map[string]json.RawMessage `json:"optionalDependencies"`
	PeerDependencies     map[string]json.RawMessage `json:"peerDependencies"`
}

func processPackageJSON(manifestPath, contents string) *pluginabi.InferredProjectMessage {
	if filepath.Base(manifestPath) != "package.json" {
		return nil
	}

	var manifest packageJSON
	if err := json.Unmarshal([]byte(contents), &manifest); err != nil {
		return nil
	}

	projectDir := filepath.Dir(manifestPath)

	name := manifest.Name
	if name == "" {
		name = filepath.Base(projectDir)
	}

	deps := gatherWorkspaceDependencies(manifest)

	return &pluginabi.InferredProjectMessage{
		Name:                  name,
		ProjectDir:            projectDir,
		DiscoveredBy:          "pnpm",
		WorkspaceDependencies: deps,
	}
}

func gatherWorkspaceDependencies(manifest packageJSON) []string {
	names := map[string]struct{}{}

	for _, group := range []map[string]json.RawMessage{
		manifest.Dependencies,
		manifest.DevDependencies,
		manifest.OptionalDependencies,
		manifest.PeerDependencies,
	} {
		for name, raw := range group {
			var value string
			if err := json.Unmarshal(raw, &value); err != nil {
				continue
			}
			if strings.HasPrefix(value, "workspace:") || strings.HasPrefix(value, "file:") {
				names[name] = struct{}{}
			}
		}
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
