package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hastycam_config_writes_total",
		Help: "Successful writes of the configuration document, by key.",
	}, []string{"key"})

	writeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hastycam_config_write_errors_total",
		Help: "Failed writes of the configuration document, by key.",
	}, []string{"key"})

	reloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hastycam_config_reloads_total",
		Help: "Reloads of the configuration file after an external change.",
	})
)
