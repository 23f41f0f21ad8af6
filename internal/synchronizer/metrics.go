package synchronizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bansync_ticks_total",
		Help: "Poll loop ticks by outcome",
	}, []string{"platform", "strategy", "result"}) // result: ok, error

	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bansync_tick_duration_seconds",
		Help:    "Time spent querying and emitting events in one tick",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"platform"})

	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bansync_events_emitted_total",
		Help: "Change events handed to the consumer",
	}, []string{"platform", "class"})

	recordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bansync_records_skipped_total",
		Help: "Records returned by the store that did not classify",
	}, []string{"platform"})

	cursorPosition = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bansync_cursor_id",
		Help: "Highest record id seen by the cursor scan",
	}, []string{"platform"})
)
