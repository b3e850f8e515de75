package engine

import (
	"math"
	"sync"
	"time"
)

// Browser tabs degrade over long runs: leaked listeners, growing heaps,
// crashed renderers. A pooled page is retired once it fails repeatedly, has
// served many navigations or gets old.
const (
	retireErrScore = 3.0
	retireUses     = 50
	retireAge      = 50 * time.Minute
)

type pageStats struct {
	errScore float64
	uses     int
	created  time.Time
}

// pageHealth scores pooled pages. A success lowers the score by 0.5, a
// failure raises it by 1.
type pageHealth[K comparable] struct {
	now func() time.Time

	mu    sync.Mutex
	pages map[K]*pageStats
}

func newPageHealth[K comparable]() *pageHealth[K] {
	return &pageHealth[K]{now: time.Now, pages: make(map[K]*pageStats)}
}

// record scores one use of page and reports whether it should be retired.
// A retired page is forgotten.
func (h *pageHealth[K]) record(page K, ok bool) (retire bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, found := h.pages[page]
	if !found {
		st = &pageStats{created: h.now()}
		h.pages[page] = st
	}
	st.uses++
	if ok {
		st.errScore = math.Max(0, st.errScore-0.5)
	} else {
		st.errScore++
	}

	retire = st.errScore >= retireErrScore ||
		st.uses >= retireUses ||
		h.now().Sub(st.created) >= retireAge
	if retire {
		delete(h.pages, page)
	}
	return retire
}

func (h *pageHealth[K]) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pages)
}
