package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var CommandsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "icingad_external_commands_total",
		Help: "External commands processed since startup by verb and result",
	},
	[]string{"verb", "result"},
)

var MalformedCommandsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "icingad_external_commands_malformed_total",
	Help: "External command lines dropped because they could not be parsed",
})

var UnknownCommandsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "icingad_external_commands_unknown_total",
	Help: "External commands dropped because of an unknown verb",
})
