// Package pluginabi defines the wire types shared by the plugin host and
// every plugin dynamic library: the InferredProjectMessage JSON shape, the
// PluginType enum, and the exported C-symbol names, grounded on the
// protocol described in crates/plugin_protocol of the original
// implementation and exported by plugins/* in this module via cgo.
package pluginabi

import "github.com/invopop/jsonschema"

// PluginType classifies how a plugin participates in workspace discovery.
type PluginType uint8

const (
	// Primary plugins define a project from a manifest file (e.g. Cargo.toml).
	PluginTypePrimary PluginType = 0
	// Supplemental plugins add metadata to projects discovered elsewhere.
	PluginTypeSupplemental PluginType = 1
	// Hook plugins observe files without producing projects of their own.
	PluginTypeHook PluginType = 2
)

func (t PluginType) String() string {
	switch t {
	case PluginTypePrimary:
		return "primary"
	case PluginTypeSupplemental:
		return "supplemental"
	case PluginTypeHook:
		return "hook"
	default:
		return "unknown"
	}
}

// InferredProjectMessage is the JSON payload a plugin's plugin_on_file_found
// returns when it recognizes a project. Field names follow the wire format
// exactly; they are not renamed to Go convention because they cross the
// process/library boundary as literal JSON keys.
type InferredProjectMessage struct {
	Name                  string   `json:"name"`
	ProjectDir            string   `json:"project_dir"`
	DiscoveredBy          string   `json:"discovered_by"`
	WorkspaceDependencies []string `json:"workspace_dependencies"`
}

// Symbol names exported with C linkage by every plugin dynamic library.
const (
	SymbolPluginName    = "plugin_name"
	SymbolPluginKey     = "plugin_key"
	SymbolPluginType    = "plugin_type"
	SymbolIncludeGlobs  = "plugin_include_globs"
	SymbolExcludeGlobs  = "plugin_exclude_globs"
	SymbolConfigOptions = "plugin_config_options"
	SymbolOnFileFound   = "plugin_on_file_found"
	SymbolCleanupString = "plugin_cleanup_string"
)

// ConfigOptionsSchema reflects a Go struct into the JSON Schema document a
// plugin returns from plugin_config_options, so every plugin's accepted
// options are declared once as a typed struct rather than a hand-maintained
// map literal. additionalProperties is left at the reflector's default of
// false: an options struct is the exhaustive set a plugin understands.
func ConfigOptionsSchema(options any) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	return reflector.Reflect(options)
}
