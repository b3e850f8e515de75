package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostMemory_Expiry(t *testing.T) {
	m := NewHostMemory(time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Set("shop.test", "rod")
	assert.Equal(t, "rod", m.Get("shop.test"))
	assert.Empty(t, m.Get("other.test"))

	now = now.Add(2 * time.Minute)
	assert.Empty(t, m.Get("shop.test"))
}

func TestDispatcher_RemembersEscalation(t *testing.T) {
	first := &fakeEngine{name: "http", err: errors.New("blocked")}
	second := &fakeEngine{name: "rod"}
	mem := NewHostMemory(time.Hour)
	d := NewDispatcher(first, second).WithMemory(mem)
	req := &FetchRequest{URL: "http://Shop.test/p/a"}

	_, err := d.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "rod", mem.Get("shop.test"))

	res, err := d.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "rod", res.EngineName)
	assert.Equal(t, 1, first.calls, "remembered host skips the failing engine")
	assert.Equal(t, 2, second.calls)
}

func TestDispatcher_FirstEngineNotRemembered(t *testing.T) {
	mem := NewHostMemory(time.Hour)
	d := NewDispatcher(&fakeEngine{name: "http"}, &fakeEngine{name: "rod"}).WithMemory(mem)

	_, err := d.Fetch(context.Background(), &FetchRequest{URL: "http://shop.test/p/a"})
	require.NoError(t, err)
	assert.Empty(t, mem.Get("shop.test"))
}

func TestDispatcher_RememberedEngineFailsRunsChain(t *testing.T) {
	first := &fakeEngine{name: "http"}
	second := &fakeEngine{name: "rod", err: errors.New("browser crashed")}
	mem := NewHostMemory(time.Hour)
	mem.Set("shop.test", "rod")
	d := NewDispatcher(first, second).WithMemory(mem)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "http://shop.test/p/a"})
	require.NoError(t, err)
	assert.Equal(t, "http", res.EngineName)
	assert.Empty(t, mem.Get("shop.test"))
}
