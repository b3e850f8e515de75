package quickview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/quickview/cache"
	"github.com/use-agent/quickview/engine"
	"github.com/use-agent/quickview/events"
	"github.com/use-agent/quickview/render"
)

func newTestRegistry(t *testing.T, baseURL string, ttl time.Duration) (*Registry, *cache.Cache) {
	t.Helper()
	c := cache.New(cache.DefaultCapacity)
	f := engine.NewHTTPEngine(engine.HTTPOptions{})
	r := NewRegistry(func(session string) *Manager {
		return New(c, f, nil, Options{Session: session, BaseURL: baseURL, HoverDelay: hoverDelay})
	}, ttl)
	t.Cleanup(r.Close)
	return r, c
}

func TestRegistry_GetCreatesOnce(t *testing.T) {
	r, _ := newTestRegistry(t, "http://shop.test", 0)

	_, ok := r.Lookup("a")
	assert.False(t, ok)

	m1 := r.Get("a")
	m2 := r.Get("a")
	m3 := r.Get("b")

	assert.Same(t, m1, m2)
	assert.NotSame(t, m1, m3)
	assert.Equal(t, 2, r.Len())

	got, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Same(t, m1, got)
}

func TestRegistry_SessionsShareCache(t *testing.T) {
	u := newUpstream(t)
	r, c := newTestRegistry(t, u.srv.URL, 0)

	v := r.Get("a").Open(context.Background(), OpenRequest{URL: "/p/shoe"})
	require.Equal(t, render.StateContent, v.State)

	v = r.Get("b").Open(context.Background(), OpenRequest{URL: "/p/shoe"})
	assert.True(t, v.FromCache)
	assert.Equal(t, 1, u.count())
	assert.Equal(t, 1, c.Len())
}

func TestRegistry_Prune(t *testing.T) {
	r, _ := newTestRegistry(t, "http://shop.test", 0)
	r.Get("old")
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	r.Get("new")

	assert.Equal(t, 1, r.Prune(cutoff))
	_, ok := r.Lookup("old")
	assert.False(t, ok)
	_, ok = r.Lookup("new")
	assert.True(t, ok)
}

func TestRegistry_IdleSessionsEvicted(t *testing.T) {
	r, _ := newTestRegistry(t, "http://shop.test", 20*time.Millisecond)
	r.Get("a")

	assert.Eventually(t, func() bool { return r.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestRegistry_ListenRoutesCartUpdated(t *testing.T) {
	u := newUpstream(t)
	r, _ := newTestRegistry(t, u.srv.URL, 0)
	bus := events.NewBus()
	unsubscribe := r.Listen(bus)
	defer unsubscribe()

	a, b := r.Get("a"), r.Get("b")
	require.Equal(t, render.StateContent, a.Open(context.Background(), OpenRequest{URL: "/p/shoe"}).State)
	require.Equal(t, render.StateContent, b.Open(context.Background(), OpenRequest{URL: "/p/shoe"}).State)

	bus.Publish(events.New(events.ContentLoaded, "a", "/p/shoe"))
	assert.Equal(t, render.StateContent, a.View().State)

	bus.Publish(events.New(events.CartUpdated, "a", ""))
	assert.Equal(t, render.StateClosed, a.View().State)
	assert.Equal(t, render.StateContent, b.View().State)

	bus.Publish(events.New(events.CartUpdated, "unknown", ""))
	assert.Equal(t, 2, r.Len(), "events for unknown sessions must not create one")

	bus.Publish(events.New(events.CartUpdated, "", ""))
	assert.Equal(t, render.StateClosed, b.View().State)
}

func TestRegistry_CloseStopsSessions(t *testing.T) {
	r, _ := newTestRegistry(t, "http://shop.test", time.Minute)
	m := r.Get("a")
	m.HoverOver(Card{ID: "c", Href: "/p/x"})

	r.Close()
	r.Close()

	assert.Zero(t, r.Len())
	m.mu.Lock()
	assert.Nil(t, m.hoverTimer)
	m.mu.Unlock()
}
