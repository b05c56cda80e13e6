package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommandCount counts commands written to a supply.
	// Labels: command (SESS, VOLT, ...), status (success, failure).
	CommandCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psu_commands_total",
		Help: "Total number of commands sent to power supplies.",
	}, []string{"command", "status"})

	// CommandDuration covers the write and the pacing interval after it.
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "psu_command_duration_seconds",
		Help:    "Time spent sending a command including the pacing interval.",
		Buckets: []float64{.01, .05, .1, .15, .2, .5, 1},
	}, []string{"command"})

	// OpenSessions is the number of sessions currently open.
	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "psu_open_sessions",
		Help: "Number of open power supply sessions.",
	})
)

// ObserveCommand records the outcome of a single command.
func ObserveCommand(command string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	CommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	CommandCount.WithLabelValues(command, status).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
