package main

import (
	"log"

	"extimport/internal/config"
	"extimport/internal/metrics"
	"extimport/internal/metrics/datadog"
	"extimport/internal/metrics/prompush"
)

const (
	defaultPushgatewayURL = "http://localhost:9091"
	defaultDatadogAddr    = "127.0.0.1:8125"
	datadogNamespace      = "nz."
)

// setupMetrics installs the configured metrics backend and returns the
// function that flushes it at the end of the command. A backend that fails
// to initialize leaves the nop backend in place.
func setupMetrics(m config.Metrics, jobName string) (flush func()) {
	flush = func() {}
	switch m.Backend {
	case "pushgateway":
		gwURL := m.PushgatewayURL
		if gwURL == "" {
			gwURL = defaultPushgatewayURL
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return flush
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, m.Backend, jobName)
		metrics.SetBackend(b)

	case "datadog":
		addr := m.DatadogAddr
		if addr == "" {
			addr = defaultDatadogAddr
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  datadogNamespace,
			GlobalTags: []string{"service:extimport", "job:" + jobName},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return flush
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, m.Backend, jobName)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains
		return flush

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
		return flush
	}

	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}
