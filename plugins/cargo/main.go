// Command cargo is a primary workspace-provider plugin: it recognizes
// Cargo.toml manifests and reports path-dependency siblings as workspace
// dependencies, exported over the C ABI described by internal/pluginabi
// so it can be built with `go build -buildmode=c-shared` and loaded by
// the host via internal/pluginhost. Grounded on the original Cargo
// plugin (plugins/cargo/src/lib.rs): same include/exclude globs, same
// "only a dependency table entry carrying a path is a workspace sibling"
// rule, reimplemented with github.com/pelletier/go-toml/v2 in place of
// the Rust toml crate.
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
	"unsafe"

	"github.com/pelletier/go-toml/v2"

	"github.com/marty-build/marty/internal/pluginabi"
)

//export plugin_name
func plugin_name() *C.char {
	return C.CString("Cargo Plugin")
}

//export plugin_key
func plugin_key() *C.char {
	return C.CString("cargo")
}

//export plugin_type
func plugin_type() C.uint8_t {
	return C.uint8_t(pluginabi.PluginTypePrimary)
}

//export plugin_include_globs
func plugin_include_globs() *C.char {
	return marshalOwned([]string{"**/Cargo.toml"})
}

//export plugin_exclude_globs
func plugin_exclude_globs() *C.char {
	return marshalOwned([]string{"**/target/**"})
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
	if filepath.Base(goPath) != "Cargo.toml" {
		return null()
	}

	msg := processManifest(goPath, C.GoString(contents))
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

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Dependencies map[string]any `toml:"dependencies"`
}

// cargoDependency accepts either a bare version string or a table; only
// the table form carrying a "path" key marks a workspace sibling.
type cargoDependency struct {
	Path string
}

func (d *cargoDependency) UnmarshalTOML(value any) error {
	table, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	if path, ok := table["path"].(string); ok {
		d.Path = path
	}
	return nil
}

func processManifest(manifestPath, contents string) *pluginabi.InferredProjectMessage {
	if filepath.Base(manifestPath) != "Cargo.toml" {
		return nil
	}

	var manifest cargoManifest
	if err := toml.Unmarshal([]byte(contents), &manifest); err != nil {
		return nil
	}

	projectDir := filepath.Dir(manifestPath)

	name := manifest.Package.Name
	if name == "" {
		name = filepath.Base(projectDir)
	}

	deps := map[string]struct{}{}
	for depName, raw := range manifest.Dependencies {
		var dep cargoDependency
		_ = dep.UnmarshalTOML(raw)
		if dep.Path != "" {
			deps[depName] = struct{}{}
		}
	}

	depList := make([]string, 0, len(deps))
	for d := range deps {
		depList = append(depList, d)
	}
	sort.Strings(depList)

	return &pluginabi.InferredProjectMessage{
		Name:                  name,
		ProjectDir:            projectDir,
		DiscoveredBy:          "cargo",
		WorkspaceDependencies: depList,
	}
}

func main() {
	// Required by `go build -buildmode=c-shared`; the dynamic library
	// exposes only the //export symbols above, this entry point never runs.
	_ = os.Args
}
