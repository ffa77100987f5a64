package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := newUnitCache(10)
	c.put(1, make([]byte, 4))
	c.put(2, make([]byte, 4))
	_, ok := c.get(1)
	assert.True(t, ok)

	c.put(3, make([]byte, 4))
	_, ok = c.get(2)
	assert.False(t, ok, "unit 2 was least recently used")
	_, ok = c.get(1)
	assert.True(t, ok)
	_, ok = c.get(3)
	assert.True(t, ok)
	assert.Equal(t, int64(8), c.size)
}

func TestUnitCacheSkipsOversized(t *testing.T) {
	t.Parallel()

	c := newUnitCache(4)
	c.put(1, make([]byte, 5))
	_, ok := c.get(1)
	assert.False(t, ok)

	disabled := newUnitCache(0)
	disabled.put(1, []byte{1})
	_, ok = disabled.get(1)
	assert.False(t, ok)
}
