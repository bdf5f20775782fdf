// Package pluginhost loads plugin dynamic libraries over the C ABI
// described by internal/pluginabi and invokes their exported symbols,
// using github.com/ebitengine/purego for dlopen/dlsym without cgo on the
// host side. Every plugin-owned string returned across the boundary is
// freed via plugin_cleanup_string once the host is done reading it.
package pluginhost

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/google/uuid"

	"github.com/marty-build/marty/internal/merr"
	"github.com/marty-build/marty/internal/pluginabi"
)

// Handle is a loaded plugin library. Calls into a single Handle are
// serialized by mu; calls across distinct Handles may run concurrently.
type Handle struct {
	mu   sync.Mutex
	lib  uintptr
	path string

	// tempDir is non-empty when the library was loaded from a process-private
	// copy (the "load via temp copy" path) and must be cleaned up on Close.
	tempDir string

	key  string
	name string
	kind pluginabi.PluginType

	fnName         func() uintptr
	fnKey          func() uintptr
	fnType         func() uint8
	fnIncludeGlobs func() uintptr
	fnExcludeGlobs func() uintptr
	fnConfigOpts   func() uintptr
	fnOnFileFound  func(path, contents uintptr) uintptr
	fnCleanup      func(uintptr)
}

// Load opens the dynamic library at path directly via dlopen.
func Load(path string) (*Handle, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, &merr.PluginError{Plugin: path, Reason: "failed to open library", Cause: err}
	}

	return bind(path, lib, "")
}

// LoadViaTempCopy copies the library at path into a process-private temp
// directory and loads the copy, so the original file (which may be
// concurrently locked or rewritten in the cache directory) is never held
// open by the loader. The temp directory is removed when the Handle is
// closed.
func LoadViaTempCopy(path string) (*Handle, error) {
	tempDir := filepath.Join(os.TempDir(), "marty-plugin-"+uuid.NewString())
	if err := os.Mkdir(tempDir, 0o755); err != nil {
		return nil, &merr.IOError{Path: path, Cause: err}
	}

	dest := filepath.Join(tempDir, filepath.Base(path))
	if err := copyFile(path, dest); err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	lib, err := purego.Dlopen(dest, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, &merr.PluginError{Plugin: path, Reason: "failed to open temp copy", Cause: err}
	}

	return bind(path, lib, tempDir)
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return &merr.IOError{Path: src, Cause: err}
	}

	if err := os.WriteFile(dest, data, 0o755); err != nil {
		return &merr.IOError{Path: dest, Cause: err}
	}

	return nil
}

func bind(path string, lib uintptr, tempDir string) (*Handle, error) {
	h := &Handle{lib: lib, path: path, tempDir: tempDir}

	purego.RegisterLibFunc(&h.fnName, lib, pluginabi.SymbolPluginName)
	purego.RegisterLibFunc(&h.fnKey, lib, pluginabi.SymbolPluginKey)
	purego.RegisterLibFunc(&h.fnType, lib, pluginabi.SymbolPluginType)
	purego.RegisterLibFunc(&h.fnIncludeGlobs, lib, pluginabi.SymbolIncludeGlobs)
	purego.RegisterLibFunc(&h.fnExcludeGlobs, lib, pluginabi.SymbolExcludeGlobs)
	purego.RegisterLibFunc(&h.fnConfigOpts, lib, pluginabi.SymbolConfigOptions)
	purego.RegisterLibFunc(&h.fnOnFileFound, lib, pluginabi.SymbolOnFileFound)
	purego.RegisterLibFunc(&h.fnCleanup, lib, pluginabi.SymbolCleanupString)

	h.mu.Lock()
	name, err := h.readOwnedString(h.fnName())
	h.mu.Unlock()
	if err != nil {
		return nil, &merr.PluginError{Plugin: path, Reason: "plugin_name failed", Cause: err}
	}
	h.name = name

	h.mu.Lock()
	key, err := h.readOwnedString(h.fnKey())
	h.mu.Unlock()
	if err != nil {
		return nil, &merr.PluginError{Plugin: path, Reason: "plugin_key failed", Cause: err}
	}
	h.key = key

	h.mu.Lock()
	kind := pluginabi.PluginType(h.fnType())
	h.mu.Unlock()
	h.kind = kind

	return h, nil
}

// readOwnedString converts a C string pointer returned by the plugin into a
// Go string and immediately frees the plugin's copy via plugin_cleanup_string.
// Callers must hold h.mu.
func (h *Handle) readOwnedString(ptr uintptr) (string, error) {
	if ptr == 0 {
		return "", nil
	}

	s := cStringToGo(ptr)
	h.fnCleanup(ptr)

	return s, nil
}

func cStringToGo(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}

	var length int
	for {
		b := *(*byte)(unsafe.Pointer(ptr + uintptr(length)))
		if b == 0 {
			break
		}
		length++
	}

	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length))
}

// Name returns the plugin's human-readable name.
func (h *Handle) Name() string { return h.name }

// Key returns the plugin's stable identifier.
func (h *Handle) Key() string { return h.key }

// Type returns the plugin's declared classification.
func (h *Handle) Type() pluginabi.PluginType { return h.kind }

// IncludeGlobs returns the plugin's declared include globs.
func (h *Handle) IncludeGlobs() ([]string, error) {
	return h.readGlobArray(h.fnIncludeGlobs)
}

// ExcludeGlobs returns the plugin's declared exclude globs.
func (h *Handle) ExcludeGlobs() ([]string, error) {
	return h.readGlobArray(h.fnExcludeGlobs)
}

func (h *Handle) readGlobArray(fn func() uintptr) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	raw, err := h.readOwnedString(fn())
	if err != nil {
		return nil, err
	}

	if raw == "" {
		return nil, nil
	}

	var globs []string
	if err := json.Unmarshal([]byte(raw), &globs); err != nil {
		return nil, &merr.PluginError{Plugin: h.key, Reason: "malformed glob array", Cause: err}
	}

	return globs, nil
}

// ConfigOptions returns the plugin's JSON Schema for its options, or nil if
// the plugin declares none.
func (h *Handle) ConfigOptions() (map[string]any, error) {
	h.mu.Lock()
	raw, err := h.readOwnedString(h.fnConfigOpts())
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if raw == "" || raw == "null" {
		return nil, nil
	}

	var schema map[string]any
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return nil, &merr.PluginError{Plugin: h.key, Reason: "malformed config schema", Cause: err}
	}

	return schema, nil
}

// OnFileFound invokes plugin_on_file_found for a discovered file and parses
// a non-null result into an InferredProjectMessage.
func (h *Handle) OnFileFound(path, contents string) (*pluginabi.InferredProjectMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pathPtr, freePath := goStringToC(path)
	defer freePath()
	contentsPtr, freeContents := goStringToC(contents)
	defer freeContents()

	resultPtr := h.fnOnFileFound(pathPtr, contentsPtr)

	raw, err := h.readOwnedString(resultPtr)
	if err != nil {
		return nil, err
	}

	if raw == "" || raw == "null" {
		return nil, nil
	}

	var msg pluginabi.InferredProjectMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, &merr.PluginError{Plugin: h.key, Reason: "malformed inferred project message", Cause: err}
	}

	return &msg, nil
}

// goStringToC allocates a NUL-terminated copy of s on the Go heap and
// returns a pointer the plugin may read (but must not retain past the
// call) plus a release func the caller must keep deferred across the
// plugin call: buf has no other live reference once goStringToC returns,
// so without runtime.KeepAlive the GC is free to reclaim it while the
// plugin is still reading through the raw pointer.
func goStringToC(s string) (uintptr, func()) {
	buf := make([]byte, len(s)+1)
	copy(buf, s)

	return uintptr(unsafe.Pointer(&buf[0])), func() { runtime.KeepAlive(buf) }
}

// Close releases the underlying library handle and any temp-copy directory.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lib != 0 {
		if err := purego.Dlclose(h.lib); err != nil {
			return &merr.PluginError{Plugin: h.key, Reason: "failed to close library", Cause: err}
		}
		h.lib = 0
	}

	if h.tempDir != "" {
		if err := os.RemoveAll(h.tempDir); err != nil {
			return &merr.IOError{Path: h.tempDir, Cause: err}
		}
	}

	return nil
}
