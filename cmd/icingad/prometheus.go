package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var AttributeChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "icingad_attribute_changes_total",
	Help: "Modified attributes of hosts and services",
}, []string{"attribute"})

var ReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "icingad_reloads_total",
	Help: "Successful reloads of the object definitions",
})
