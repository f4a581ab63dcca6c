package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
)

// Metrics methods tolerate a nil receiver so components can run unmetered
// in tests.
type Metrics struct {
	stageLatency  *prometheus.HistogramVec
	routeDecision *prometheus.CounterVec
	actionResult  *prometheus.CounterVec
	earlyExit     prometheus.Counter
}

func New(_ *do.Injector) (*Metrics, error) {
	return NewMetrics(prometheus.DefaultRegisterer), nil
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "donna_stage_duration_seconds",
			Help:    "Wall time spent in each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		routeDecision: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donna_route_decisions_total",
			Help: "Routing outcomes by type.",
		}, []string{"type"}),
		actionResult: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donna_action_results_total",
			Help: "Executed actions by domain, name and outcome.",
		}, []string{"domain", "action", "outcome"}),
		earlyExit: factory.NewCounter(prometheus.CounterOpts{
			Name: "donna_chat_early_exits_total",
			Help: "Turns answered on the chat path without planning.",
		}),
	}
}

func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}

	m.stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CountRoute(routeType string) {
	if m == nil {
		return
	}

	m.routeDecision.WithLabelValues(routeType).Inc()
}

func (m *Metrics) CountAction(domain, action string, ok bool) {
	if m == nil {
		return
	}

	outcome := "success"
	if !ok {
		outcome = "failure"
	}

	m.actionResult.WithLabelValues(domain, action, outcome).Inc()
}

func (m *Metrics) CountEarlyExit() {
	if m == nil {
		return
	}

	m.earlyExit.Inc()
}

// Handler serves the scrape endpoint, mounted on the side listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
