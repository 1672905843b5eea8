package dynconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_GetOrFill_CallsOnceUntilExpiry(t *testing.T) {
	c := newTTLCache[string](50 * time.Millisecond)
	calls := 0
	fill := func() (string, error) {
		calls++
		return "v", nil
	}

	v, err := c.getOrFill("k", fill)
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	v2, err := c.getOrFill("k", fill)
	require.NoError(t, err)
	assert.Equal(t, "v", v2)
	assert.Equal(t, 1, calls)

	time.Sleep(60 * time.Millisecond)
	_, err = c.getOrFill("k", fill)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTTLCache_InvalidateAll(t *testing.T) {
	c := newTTLCache[string](time.Minute)
	_, _ = c.getOrFill("k", func() (string, error) { return "v", nil })
	c.invalidateAll()
	_, ok := c.get("k")
	assert.False(t, ok)
}

func TestTTLCache_FillErrorNotCached(t *testing.T) {
	c := newTTLCache[string](time.Minute)
	boom := errors.New("boom")
	_, err := c.getOrFill("k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	_, ok := c.get("k")
	assert.False(t, ok)
}
