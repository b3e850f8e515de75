package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frag(s string) Entry { return Entry{Fragment: "<section>" + s + "</section>"} }

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)

	c.Set("A", frag("a"))
	c.Set("B", frag("b"))
	_, ok := c.Get("A")
	require.True(t, ok)
	c.Set("C", frag("c"))

	assert.False(t, c.Has("B"), "B should have been evicted")
	assert.True(t, c.Has("A"))
	assert.True(t, c.Has("C"))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"C", "A"}, c.Keys())
}

func TestCache_RetainsMostRecentKeys(t *testing.T) {
	const capacity = 5
	c := New(capacity)

	for i := 0; i < 23; i++ {
		c.Set(fmt.Sprintf("k%d", i), frag(fmt.Sprint(i)))
		require.LessOrEqual(t, c.Len(), capacity)
	}

	for i := 0; i < 23; i++ {
		key := fmt.Sprintf("k%d", i)
		assert.Equal(t, i >= 23-capacity, c.Has(key), key)
	}
	assert.Equal(t, uint64(23-capacity), c.Stats().Evictions)
}

func TestCache_GetPromotes(t *testing.T) {
	c := New(3)
	c.Set("A", frag("a"))
	c.Set("B", frag("b"))
	c.Set("C", frag("c"))

	got, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, frag("a"), got)

	c.Set("D", frag("d"))
	assert.True(t, c.Has("A"), "promoted key must survive the next eviction")
	assert.False(t, c.Has("B"))

	c.Set("E", frag("e"))
	assert.True(t, c.Has("A"))
	assert.False(t, c.Has("C"))
}

func TestCache_MissDoesNotMutate(t *testing.T) {
	c := New(2)
	c.Set("A", frag("a"))
	c.Set("B", frag("b"))
	before := c.Keys()

	_, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, before, c.Keys())
	assert.Equal(t, 2, c.Len())
}

func TestCache_SetSameValueTwice(t *testing.T) {
	c := New(3)
	v := Entry{Fragment: "<div id=\"x\"></div>", Product: map[string]any{"id": "42"}}

	c.Set("A", v)
	c.Set("A", v)

	assert.Equal(t, 1, c.Len())
	got, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestCache_OverwriteResetsPosition(t *testing.T) {
	c := New(2)
	c.Set("A", frag("a1"))
	c.Set("B", frag("b"))
	c.Set("A", frag("a2"))
	c.Set("C", frag("c"))

	assert.False(t, c.Has("B"))
	got, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, frag("a2"), got)
}

func TestCache_HasDoesNotPromote(t *testing.T) {
	c := New(2)
	c.Set("A", frag("a"))
	c.Set("B", frag("b"))

	assert.True(t, c.Has("A"))
	c.Set("C", frag("c"))

	assert.False(t, c.Has("A"))
}

func TestCache_Clear(t *testing.T) {
	c := New(4)
	c.Set("A", frag("a"))
	c.Set("B", frag("b"))
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Has("A"))

	c.Set("C", frag("c"))
	assert.Equal(t, []string{"C"}, c.Keys())
}

func TestNew_CapacityDefaults(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"zero", 0, DefaultCapacity},
		{"negative", -3, DefaultCapacity},
		{"explicit", 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.capacity).Cap())
		})
	}
}

func TestCache_Stats(t *testing.T) {
	c := New(1)
	c.Set("A", frag("a"))
	c.Get("A")
	c.Get("B")
	c.Set("B", frag("b"))

	s := c.Stats()
	assert.Equal(t, Stats{Entries: 1, Capacity: 1, Hits: 1, Misses: 1, Evictions: 1}, s)
}

func TestCache_ClearIsNotEviction(t *testing.T) {
	c := New(3)
	c.Set("A", frag("a"))
	c.Set("B", frag("b"))
	c.Clear()

	assert.Zero(t, c.Stats().Evictions)

	c.Set("C", frag("c"))
	c.Set("D", frag("d"))
	c.Set("E", frag("e"))
	c.Set("F", frag("f"))
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	assert.Equal(t, []string{"F", "E", "D"}, c.Keys())
}

func TestCache_KeepsSDKScriptURL(t *testing.T) {
	c := New(2)
	c.Set("/p/a", Entry{Fragment: "<section></section>", SDKScriptURL: "/cdn/theme-statics/product.js"})

	got, ok := c.Get("/p/a")
	require.True(t, ok)
	assert.Equal(t, "/cdn/theme-statics/product.js", got.SDKScriptURL)
}
