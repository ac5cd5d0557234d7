// Package metrics exposes console activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/masomo-console/core/session"
	"github.com/trezcool/masomo-console/core/theme"
)

// Recorder is everything the stores and the API client report.
type Recorder interface {
	session.Recorder
	theme.Recorder
	RecordHTTPStatus(statusCode int)
}

type Collector struct {
	transitions  *prometheus.CounterVec
	themeChanges *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector builds a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "masomo_console_session_transitions_total",
			Help: "Session store transitions, by kind.",
		}, []string{"transition"}),
		themeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "masomo_console_theme_changes_total",
			Help: "Theme preference changes, by resulting mode.",
		}, []string{"mode"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "masomo_console_api_responses_total",
			Help: "Responses received from the school API, by status code.",
		}, []string{"status_code"}),
	}
	reg.MustRegister(c.transitions, c.themeChanges, c.httpStatus)
	return c
}

func (c *Collector) RecordSessionTransition(transition string) {
	c.transitions.WithLabelValues(transition).Inc()
}

func (c *Collector) RecordThemeChange(mode string) {
	c.themeChanges.WithLabelValues(mode).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler serves the gathered metrics for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop records nothing.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordSessionTransition(string) {}
func (Nop) RecordThemeChange(string)       {}
func (Nop) RecordHTTPStatus(int)           {}
