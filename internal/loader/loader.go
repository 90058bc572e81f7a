// Package loader runs the fetch and parse pipeline for a set of preferences
// and keeps the result of the most recently started load.
package loader

import (
	"context"
	"sync"
	"time"

	"news_search/internal/connectivity"
	"news_search/internal/display"
	"news_search/internal/logger"
	"news_search/internal/metrics"
	"news_search/internal/models"
	"news_search/internal/parser"
	"news_search/internal/query"
)

// State tells the display what to show in place of, or along with, the list.
type State string

const (
	StateLoading      State = "loading"
	StateLoaded       State = "loaded"
	StateNoResults    State = "no_results"
	StateNoConnection State = "no_connection"
)

// Message is the text shown instead of an empty list.
func (s State) Message() string {
	switch s {
	case StateNoConnection:
		return display.NoConnectionMessage
	case StateNoResults:
		return display.NoNewsMessage
	default:
		return ""
	}
}

// Fetcher is satisfied by *fetcher.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Endpoint is the fixed, non-user part of the search query.
type Endpoint struct {
	URL      string
	APIKey   string
	FromDate string
	PageSize int
}

// Result is always complete: either every parsed item or none.
type Result struct {
	Preferences models.Preferences
	Items       []models.NewsItem
	State       State
	Generation  uint64
}

// Loader owns at most one in-flight load.
type Loader struct {
	fetcher  Fetcher
	checker  connectivity.Checker
	endpoint Endpoint
	metrics  *metrics.Metrics

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    Result
}

// New returns a Loader; m may be nil.
func New(f Fetcher, c connectivity.Checker, e Endpoint, m *metrics.Metrics) *Loader {
	return &Loader{
		fetcher:  f,
		checker:  c,
		endpoint: e,
		metrics:  m,
		current:  Result{Items: []models.NewsItem{}, State: StateLoading},
	}
}

// Load runs one fetch and parse synchronously. Failures are logged and
// turned into an empty result; offline is reported before any request.
func (l *Loader) Load(ctx context.Context, prefs models.Preferences) Result {
	start := time.Now()
	log := logger.For("loader").WithFields(logger.Fields{
		"subject":  prefs.Subject,
		"order_by": prefs.OrderBy,
	})

	res := Result{Preferences: prefs, Items: []models.NewsItem{}, State: StateNoResults}
	superseded := false
	defer func() {
		if l.metrics != nil && !superseded {
			l.metrics.ObserveLoad(string(res.State), len(res.Items), time.Since(start))
		}
	}()

	rawURL, err := query.Build(l.endpoint.URL, query.Params{
		Subject:  prefs.Subject,
		FromDate: l.endpoint.FromDate,
		APIKey:   l.endpoint.APIKey,
		PageSize: l.endpoint.PageSize,
		OrderBy:  prefs.OrderBy,
	})
	if err != nil {
		l.fail(log, err, "Problem building the URL")
		return res
	}

	if !l.checker.Online(ctx) {
		if superseded = cancelled(ctx, log, nil); superseded {
			return res
		}
		log.Warn("No network connection")
		res.State = StateNoConnection
		return res
	}

	body, err := l.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		if superseded = cancelled(ctx, log, err); superseded {
			return res
		}
		l.fail(log, err, "Problem retrieving the search results")
		return res
	}

	items, err := parser.ParseStrict(body)
	if err != nil {
		l.fail(log, err, "Problem parsing the news JSON results")
		return res
	}

	res.Items = items
	if len(items) > 0 {
		res.State = StateLoaded
	}
	log.WithField("items_count", len(items)).Info("Load finished")
	return res
}

// cancelled reports whether a newer load or shutdown cancelled ctx. Such a
// load is logged at debug level only and left out of the metrics.
func cancelled(ctx context.Context, log *logger.Entry, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	if err != nil {
		log = log.WithError(err)
	}
	log.Debug("Load cancelled")
	return true
}

func (l *Loader) fail(log *logger.Entry, err error, msg string) {
	if l.metrics != nil {
		l.metrics.ObserveError(err)
	}
	log.WithError(err).Error(msg)
}

// Restart cancels the load in flight and starts a new one. Until it
// finishes Current reports StateLoading with no items. A load that finishes
// after a newer one was started is dropped. The returned channel is closed
// when this load is done, whether applied or dropped.
func (l *Loader) Restart(prefs models.Preferences) <-chan struct{} {
	ctx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.generation++
	gen := l.generation
	l.cancel = cancel
	l.current = Result{Preferences: prefs, Items: []models.NewsItem{}, State: StateLoading, Generation: gen}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()

		res := l.Load(ctx, prefs)
		res.Generation = gen

		l.mu.Lock()
		defer l.mu.Unlock()
		if gen != l.generation {
			logger.For("loader").WithFields(logger.Fields{
				"generation": gen,
				"latest":     l.generation,
			}).Debug("Discarding stale load")
			return
		}
		l.current = res
		l.cancel = nil
	}()
	return done
}

// Current returns the last applied result, or the loading state while a
// restart is in flight.
func (l *Loader) Current() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Stop cancels the load in flight, if any.
func (l *Loader) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}
