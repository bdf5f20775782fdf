package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringCacheCreation(t *testing.T) {
	t.Parallel()

	c := NewGenericCache[string]()

	assert.NotNil(t, c.Mutex)
	assert.NotNil(t, c.Cache)
	assert.Equal(t, 0, len(c.Cache))
}

func TestStringCacheOperation(t *testing.T) {
	t.Parallel()

	c := NewGenericCache[string]()

	value, found := c.Get("potato")
	assert.False(t, found)
	assert.Empty(t, value)

	c.Put("potato", "carrot")
	value, found = c.Get("potato")

	assert.True(t, found)
	assert.Equal(t, "carrot", value)
}

type structValue struct {
	Name string
}

func TestStructCacheOperation(t *testing.T) {
	t.Parallel()

	c := NewGenericCache[structValue]()

	value, found := c.Get("option1")
	assert.False(t, found)
	assert.Equal(t, structValue{}, value)

	c.Put("option1", structValue{Name: "random"})
	value, found = c.Get("option1")

	assert.True(t, found)
	assert.Equal(t, structValue{Name: "random"}, value)
}
