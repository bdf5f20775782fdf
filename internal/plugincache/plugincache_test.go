package plugincache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateOptionsRejectsUnknownKeyWhenAdditionalPropertiesFalse(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"properties": map[string]any{
			"verbose": map[string]any{"type": "boolean"},
			"level":   map[string]any{"type": "number"},
		},
		"additionalProperties": false,
	}

	err := ValidateOptions("demo", schema, map[string]any{"bogus": true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "demo")
	require.Contains(t, err.Error(), "bogus")
	require.Contains(t, err.Error(), "level, verbose")
}

func TestValidateOptionsAllowsUnknownKeyWithoutAdditionalPropertiesFalse(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"properties": map[string]any{
			"verbose": map[string]any{"type": "boolean"},
		},
	}

	require.NoError(t, ValidateOptions("demo", schema, map[string]any{"anything": "ok"}))
}

func TestValidateOptionsDetectsTypeMismatch(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"properties": map[string]any{
			"level": map[string]any{"type": "number"},
		},
	}

	err := ValidateOptions("demo", schema, map[string]any{"level": "high"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "expects type \"number\", got \"string\"")
}

func TestValidateOptionsNoSchemaAcceptsAnything(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateOptions("demo", map[string]any{}, map[string]any{"whatever": 1}))
}

func TestCacheListAndClear(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cache, err := New(root)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(cache.Dir(), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(cache.Dir(), "foo_aaaaaaaa.so"), []byte("lib"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cache.Dir(), "notes.txt"), []byte("x"), 0o644))

	files, err := cache.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Contains(t, files, "foo_aaaaaaaa.so")

	require.NoError(t, cache.Clear())

	_, err = os.Stat(cache.Dir())
	require.True(t, os.IsNotExist(err))
}

func TestCacheListOnMissingDirectoryReturnsEmpty(t *testing.T) {
	t.Parallel()

	cache, err := New(t.TempDir())
	require.NoError(t, err)

	files, err := cache.List()
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestLastPathSegment(t *testing.T) {
	t.Parallel()

	require.Equal(t, "plugin.so", lastPathSegment("https://example.com/dl/plugin.so"))
	require.Equal(t, "unnamed", lastPathSegment("no-slashes"))
}
