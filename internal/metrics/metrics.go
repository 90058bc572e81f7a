package metrics

import (
	"errors"
	"net/http"
	"time"

	"news_search/internal/fetcher"
	"news_search/internal/parser"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry     *prometheus.Registry
	loads        *prometheus.CounterVec
	errors       *prometheus.CounterVec
	items        prometheus.Counter
	loadDuration prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "news_search",
			Name:      "loads_total",
			Help:      "Completed loads by resulting state.",
		}, []string{"state"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "news_search",
			Name:      "errors_total",
			Help:      "Fetch and parse failures by kind.",
		}, []string{"kind"}),
		items: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "news_search",
			Name:      "parsed_items_total",
			Help:      "News items produced by the parser.",
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "news_search",
			Name:      "load_duration_seconds",
			Help:      "Wall time of a full fetch and parse.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.loads, m.errors, m.items, m.loadDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveLoad records one finished load.
func (m *Metrics) ObserveLoad(state string, items int, took time.Duration) {
	m.loads.WithLabelValues(state).Inc()
	m.items.Add(float64(items))
	m.loadDuration.Observe(took.Seconds())
}

// ObserveError counts err under its ErrorKind.
func (m *Metrics) ObserveError(err error) {
	m.errors.WithLabelValues(ErrorKind(err)).Inc()
}

// ErrorKind maps pipeline errors onto a small label set.
func ErrorKind(err error) string {
	var (
		netErr    *fetcher.NetworkError
		statusErr *fetcher.BadStatusError
		parseErr  *parser.ParseError
	)
	switch {
	case errors.Is(err, fetcher.ErrInvalidURL):
		return "invalid_url"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &statusErr):
		return "bad_status"
	case errors.As(err, &parseErr):
		return "parse"
	default:
		return "other"
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
