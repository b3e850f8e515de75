package quickview

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchTotal counts upstream product page fetches by purpose
	// ("open", "prefetch") and outcome ("ok", "cancelled", "upstream_status",
	// "fetch_failed", "section_not_found").
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickview_fetch_total",
			Help: "Total number of product page fetches by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	// opensTotal counts modal opens by how they were served
	// ("cache", "network", "error").
	opensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickview_opens_total",
			Help: "Total number of quick-view opens by source",
		},
		[]string{"source"},
	)

	// sessionsActive tracks the number of live controller sessions.
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quickview_sessions_active",
			Help: "Current number of quick-view sessions",
		},
	)
)
