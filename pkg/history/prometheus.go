package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var EventsWrittenTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "icingad_history_events_written_total",
		Help: "History events written to the database",
	},
	[]string{"type"},
)

var EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "icingad_history_events_dropped_total",
	Help: "History events dropped because the buffer was full or writing failed",
})
