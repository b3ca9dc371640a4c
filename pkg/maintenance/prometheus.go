package maintenance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var IndexRebuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "icingad_downtime_index_rebuild_seconds",
	Help:    "Duration of downtime index rebuilds",
	Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
})

var IndexedDowntimes = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "icingad_downtime_index_size",
	Help: "Downtimes known to the index after its last rebuild",
})

var LegacyIdCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "icingad_downtime_legacy_id_collisions_total",
	Help: "Downtime legacy ids reassigned because of collisions",
})

var DowntimesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "icingad_downtimes_total",
		Help: "Downtime lifecycle events since startup",
	},
	[]string{"event"},
)
