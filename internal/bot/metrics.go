package bot

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry         *prometheus.Registry
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	activeCommands   prometheus.Gauge
	sourceBytesTotal prometheus.Counter
	outputBytesTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgbot_bot_commands_total",
			Help: "Total handled commands by final outcome.",
		}, []string{"outcome"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imgbot_bot_command_duration_seconds",
			Help:    "Handling duration for each command by final outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		activeCommands: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imgbot_bot_active_commands",
			Help: "Current number of commands being processed.",
		}),
		sourceBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgbot_bot_source_bytes_total",
			Help: "Total source image bytes fetched for successful commands.",
		}),
		outputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgbot_bot_output_bytes_total",
			Help: "Total transformed image bytes uploaded for successful commands.",
		}),
	}

	registry.MustRegister(
		m.commandsTotal,
		m.commandDuration,
		m.activeCommands,
		m.sourceBytesTotal,
		m.outputBytesTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
