package loader_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"news_search/internal/connectivity"
	"news_search/internal/fetcher"
	"news_search/internal/loader"
	"news_search/internal/metrics"
	"news_search/internal/models"

	"github.com/stretchr/testify/require"
)

const oneResult = `{"response":{"results":[{"sectionName":"World","webPublicationDate":"2020-01-01T10:00:00Z","webTitle":"X | Y","webUrl":"http://x","tags":[]}]}}`

type fakeFetcher struct {
	mu    sync.Mutex
	urls  []string
	fetch func(ctx context.Context, rawURL string) (string, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	f.mu.Lock()
	f.urls = append(f.urls, rawURL)
	f.mu.Unlock()
	return f.fetch(ctx, rawURL)
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

var endpoint = loader.Endpoint{
	URL:      "https://content.guardianapis.com/search",
	APIKey:   "test",
	PageSize: 10,
}

var prefs = models.Preferences{Subject: "women", OrderBy: "newest"}

func TestLoad_States(t *testing.T) {
	testCases := []struct {
		name      string
		online    bool
		body      string
		err       error
		wantState loader.State
		wantItems int
		wantCalls int
	}{
		{name: "loaded", online: true, body: oneResult, wantState: loader.StateLoaded, wantItems: 1, wantCalls: 1},
		{name: "offline", online: false, body: oneResult, wantState: loader.StateNoConnection, wantCalls: 0},
		{name: "bad status", online: true, err: &fetcher.BadStatusError{Code: 404}, wantState: loader.StateNoResults, wantCalls: 1},
		{name: "malformed body", online: true, body: `{"response":`, wantState: loader.StateNoResults, wantCalls: 1},
		{name: "zero results", online: true, body: `{"response":{"results":[]}}`, wantState: loader.StateNoResults, wantCalls: 1},
		{name: "empty body", online: true, body: "", wantState: loader.StateNoResults, wantCalls: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeFetcher{fetch: func(context.Context, string) (string, error) { return tc.body, tc.err }}
			l := loader.New(f, connectivity.Static(tc.online), endpoint, metrics.New())

			res := l.Load(context.Background(), prefs)

			require.Equal(t, tc.wantState, res.State)
			require.Len(t, res.Items, tc.wantItems)
			require.NotNil(t, res.Items)
			require.Equal(t, tc.wantCalls, f.calls())
		})
	}
}

func TestLoad_SendsPreferences(t *testing.T) {
	f := &fakeFetcher{fetch: func(context.Context, string) (string, error) { return oneResult, nil }}
	l := loader.New(f, connectivity.Static(true), endpoint, nil)

	l.Load(context.Background(), models.Preferences{Subject: "science", OrderBy: "relevance"})

	require.Equal(t, 1, f.calls())
	u, err := url.Parse(f.urls[0])
	require.NoError(t, err)
	require.Equal(t, "science", u.Query().Get("q"))
	require.Equal(t, "relevance", u.Query().Get("order-by"))
	require.Equal(t, "10", u.Query().Get("page-size"))
}

func TestLoad_InvalidOrderIsNoResults(t *testing.T) {
	f := &fakeFetcher{fetch: func(context.Context, string) (string, error) { return oneResult, nil }}
	l := loader.New(f, connectivity.Static(true), endpoint, nil)

	res := l.Load(context.Background(), models.Preferences{Subject: "women", OrderBy: "popular"})

	require.Equal(t, loader.StateNoResults, res.State)
	require.Zero(t, f.calls())
}

func TestLoad_WithHTTPServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "women" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(oneResult))
	}))
	defer server.Close()

	checker, err := connectivity.ForEndpoint(server.URL, time.Second)
	require.NoError(t, err)
	ep := endpoint
	ep.URL = server.URL + "/search"
	l := loader.New(fetcher.New(fetcher.Options{}), checker, ep, nil)

	res := l.Load(context.Background(), prefs)

	require.Equal(t, loader.StateLoaded, res.State)
	require.Len(t, res.Items, 1)
	require.Equal(t, "X | Y", res.Items[0].Title)
}

func TestRestart_AppliesResult(t *testing.T) {
	f := &fakeFetcher{fetch: func(context.Context, string) (string, error) { return oneResult, nil }}
	l := loader.New(f, connectivity.Static(true), endpoint, nil)

	require.Equal(t, loader.StateLoading, l.Current().State)

	<-l.Restart(prefs)

	cur := l.Current()
	require.Equal(t, loader.StateLoaded, cur.State)
	require.Equal(t, uint64(1), cur.Generation)
	require.Equal(t, prefs, cur.Preferences)
	require.Len(t, cur.Items, 1)
}

func TestRestart_LastRequestWins(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	f := &fakeFetcher{fetch: func(ctx context.Context, rawURL string) (string, error) {
		u, _ := url.Parse(rawURL)
		if u.Query().Get("q") == "old" {
			close(started)
			// ignores cancellation so the stale result really arrives late
			<-release
			return oneResult, nil
		}
		return `{"response":{"results":[]}}`, nil
	}}
	l := loader.New(f, connectivity.Static(true), endpoint, nil)

	first := l.Restart(models.Preferences{Subject: "old", OrderBy: "newest"})
	<-started

	second := l.Restart(models.Preferences{Subject: "new", OrderBy: "oldest"})
	<-second

	close(release)
	<-first

	cur := l.Current()
	require.Equal(t, uint64(2), cur.Generation)
	require.Equal(t, "new", cur.Preferences.Subject)
	require.Equal(t, loader.StateNoResults, cur.State)
	require.Empty(t, cur.Items)
}

func TestRestart_CancelsInFlight(t *testing.T) {
	cancelled := make(chan struct{})
	f := &fakeFetcher{fetch: func(ctx context.Context, rawURL string) (string, error) {
		u, _ := url.Parse(rawURL)
		if u.Query().Get("q") == "old" {
			<-ctx.Done()
			close(cancelled)
			return "", &fetcher.NetworkError{Cause: ctx.Err()}
		}
		return oneResult, nil
	}}
	l := loader.New(f, connectivity.Static(true), endpoint, nil)

	first := l.Restart(models.Preferences{Subject: "old"})
	second := l.Restart(models.Preferences{Subject: "new"})

	<-second
	<-first
	<-cancelled

	cur := l.Current()
	require.Equal(t, "new", cur.Preferences.Subject)
	require.Equal(t, loader.StateLoaded, cur.State)
}

func TestRestart_ClearsListWhileLoading(t *testing.T) {
	release := make(chan struct{})
	f := &fakeFetcher{fetch: func(context.Context, string) (string, error) {
		<-release
		return oneResult, nil
	}}
	l := loader.New(f, connectivity.Static(true), endpoint, nil)

	close(release)
	<-l.Restart(prefs)
	require.Len(t, l.Current().Items, 1)

	release = make(chan struct{})
	done := l.Restart(models.Preferences{Subject: "science"})
	cur := l.Current()
	require.Equal(t, loader.StateLoading, cur.State)
	require.Empty(t, cur.Items)

	close(release)
	<-done
	require.Equal(t, loader.StateLoaded, l.Current().State)
}

func TestState_Message(t *testing.T) {
	require.Equal(t, "No internet connection.", loader.StateNoConnection.Message())
	require.Equal(t, "No news found.", loader.StateNoResults.Message())
	require.Empty(t, loader.StateLoaded.Message())
	require.Empty(t, loader.StateLoading.Message())
}

// blockingChecker reports offline once ctx is cancelled, like DialChecker does
// when its dial is aborted.
type blockingChecker struct{}

func (blockingChecker) Online(ctx context.Context) bool {
	<-ctx.Done()
	return false
}

type switchChecker struct {
	online connectivity.Checker
	first  connectivity.Checker
	calls  atomic.Int32
}

func (c *switchChecker) Online(ctx context.Context) bool {
	if c.calls.Add(1) == 1 {
		return c.first.Online(ctx)
	}
	return c.online.Online(ctx)
}

func counters(t *testing.T, m *metrics.Metrics) map[string]float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			c := metric.GetCounter()
			if c == nil {
				continue
			}
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "/" + lp.GetValue()
			}
			out[key] += c.GetValue()
		}
	}
	return out
}

func TestRestart_SupersededFetchIsNotCounted(t *testing.T) {
	f := &fakeFetcher{fetch: func(ctx context.Context, rawURL string) (string, error) {
		u, _ := url.Parse(rawURL)
		if u.Query().Get("q") == "old" {
			<-ctx.Done()
			return "", &fetcher.NetworkError{Cause: ctx.Err()}
		}
		return oneResult, nil
	}}
	m := metrics.New()
	l := loader.New(f, connectivity.Static(true), endpoint, m)

	first := l.Restart(models.Preferences{Subject: "old"})
	require.Eventually(t, func() bool { return f.calls() == 1 }, time.Second, time.Millisecond)
	second := l.Restart(models.Preferences{Subject: "new"})
	<-second
	<-first

	got := counters(t, m)
	require.Equal(t, 1.0, got["news_search_loads_total/loaded"])
	require.Zero(t, got["news_search_loads_total/no_results"])
	require.Zero(t, got["news_search_errors_total/network"])
}

func TestRestart_SupersededConnectivityCheckIsNotCounted(t *testing.T) {
	f := &fakeFetcher{fetch: func(context.Context, string) (string, error) { return oneResult, nil }}
	checker := &switchChecker{first: blockingChecker{}, online: connectivity.Static(true)}
	m := metrics.New()
	l := loader.New(f, checker, endpoint, m)

	first := l.Restart(models.Preferences{Subject: "old"})
	require.Eventually(t, func() bool { return checker.calls.Load() == 1 }, time.Second, time.Millisecond)
	second := l.Restart(models.Preferences{Subject: "new"})
	<-second
	<-first

	got := counters(t, m)
	require.Equal(t, 1.0, got["news_search_loads_total/loaded"])
	require.Zero(t, got["news_search_loads_total/no_connection"])
	require.Equal(t, loader.StateLoaded, l.Current().State)
}
