package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetPut_DayValidity(t *testing.T) {
	t.Parallel()
	c, err := New(8)
	require.NoError(t, err)

	c.Put("qty:apple:3", Aggregation{Value: int32(6), ComputedAtDayID: 2})

	got, ok := c.Get("qty:apple:3", 2)
	require.True(t, ok)
	require.Equal(t, int32(6), got.Value)

	// The window shifted: the entry is stale and gets dropped.
	_, ok = c.Get("qty:apple:3", 3)
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestInvalidateProduct(t *testing.T) {
	t.Parallel()
	c, err := New(8)
	require.NoError(t, err)

	c.Put("qty:apple:3", Aggregation{Value: int32(1), ComputedAtDayID: 0})
	c.Put("rev:apple:5", Aggregation{Value: 2.0, ComputedAtDayID: 0})
	c.Put("qty:pear:3", Aggregation{Value: int32(3), ComputedAtDayID: 0})
	c.Put("common:apple:pear:2", Aggregation{Value: int32(1), ComputedAtDayID: 0})

	c.InvalidateProduct("apple")

	_, ok := c.Get("qty:apple:3", 0)
	require.False(t, ok)
	_, ok = c.Get("rev:apple:5", 0)
	require.False(t, ok)
	_, ok = c.Get("common:apple:pear:2", 0)
	require.False(t, ok)

	_, ok = c.Get("qty:pear:3", 0)
	require.True(t, ok)
}

func TestInvalidateProduct_NoSubstringFalsePositive(t *testing.T) {
	t.Parallel()
	c, err := New(8)
	require.NoError(t, err)

	// "app" is a prefix of "apple" but a different product segment.
	c.Put("qty:apple:3", Aggregation{Value: int32(1), ComputedAtDayID: 0})
	c.InvalidateProduct("app")

	_, ok := c.Get("qty:apple:3", 0)
	require.True(t, ok)
}

func TestClear(t *testing.T) {
	t.Parallel()
	c, err := New(8)
	require.NoError(t, err)

	c.Put("qty:a:1", Aggregation{Value: int32(1), ComputedAtDayID: 0})
	c.Put("qty:b:1", Aggregation{Value: int32(2), ComputedAtDayID: 0})
	c.Clear()
	require.Equal(t, 0, c.Len())
}

func TestLRUEviction(t *testing.T) {
	t.Parallel()
	c, err := New(2)
	require.NoError(t, err)

	c.Put("qty:a:1", Aggregation{Value: int32(1), ComputedAtDayID: 0})
	c.Put("qty:b:1", Aggregation{Value: int32(2), ComputedAtDayID: 0})

	// Touch a so b becomes the eviction candidate.
	_, ok := c.Get("qty:a:1", 0)
	require.True(t, ok)

	c.Put("qty:c:1", Aggregation{Value: int32(3), ComputedAtDayID: 0})

	_, ok = c.Get("qty:b:1", 0)
	require.False(t, ok)
	_, ok = c.Get("qty:a:1", 0)
	require.True(t, ok)
	_, ok = c.Get("qty:c:1", 0)
	require.True(t, ok)
}
