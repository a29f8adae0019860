package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailside/go-restcache/cache"
	"github.com/trailside/go-restcache/httpcache"
	"github.com/trailside/go-restcache/logger"
)

func newTestClient(t *testing.T, cfg Config) (*Client, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	if cfg.Store == nil {
		store := cache.NewInMemory(context.Background(), cache.WithSweepInterval(time.Minute))
		t.Cleanup(func() { store.Close() })
		cfg.Store = store
	}
	return New(log, cfg), log
}

func TestFreshHitSkipsTransport(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	ctx := context.Background()

	first, err := client.Get(ctx, server.URL+"/data", nil)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	// Warm store: no further transport calls.
	for i := 0; i < 2; i++ {
		resp, err := client.Get(ctx, server.URL+"/data", nil)
		require.NoError(t, err)
		assert.True(t, resp.FromCache)
		assert.Equal(t, first.Body, resp.Body)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestNoStoreNeverStored(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Cache-Control", "no-store")
		w.Write([]byte("secret"))
	}))
	defer server.Close()

	store := cache.NewInMemory(context.Background(), cache.WithSweepInterval(time.Minute))
	defer store.Close()
	client, _ := newTestClient(t, Config{
		Store: store,
		Hooks: Hooks{CacheKey: func(opts *RequestOptions) string { return "fixed-key" }},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := client.Get(ctx, server.URL+"/secret", nil)
		require.NoError(t, err)
		assert.False(t, resp.FromCache)
	}
	assert.Equal(t, int32(3), calls.Load())

	found, _, err := store.Get(ctx, "fixed-key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheKeyOverrideAliasesEndpoints(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	ctx := context.Background()
	opts := &RequestOptions{CacheKey: "alias"}

	a, err := client.Get(ctx, server.URL+"/a", opts)
	require.NoError(t, err)
	assert.Equal(t, "/a", string(a.Body))

	// Structurally different request, same key: served from A's slot.
	b, err := client.Get(ctx, server.URL+"/b", opts)
	require.NoError(t, err)
	assert.True(t, b.FromCache)
	assert.Equal(t, "/a", string(b.Body))
	assert.Equal(t, int32(1), calls.Load())
}

func TestStaleIfErrorServesStoredResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Cache-Control", "max-age=0, stale-if-error=200")
			w.Write([]byte("good"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	ctx := context.Background()

	first, err := client.Get(ctx, server.URL+"/flaky", nil)
	require.NoError(t, err)
	assert.Equal(t, "good", string(first.Body))
	assert.False(t, first.FromCache)

	// Origin now failing: the stale entry stands in, the 500 is suppressed.
	second, err := client.Get(ctx, server.URL+"/flaky", nil)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "good", string(second.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestStaleIfErrorWindowExpired(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Window of zero means no stale serving at all.
			w.Header().Set("Cache-Control", "max-age=0")
			w.Write([]byte("good"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	ctx := context.Background()

	_, err := client.Get(ctx, server.URL+"/flaky", nil)
	require.NoError(t, err)

	_, err = client.Get(ctx, server.URL+"/flaky", nil)
	require.Error(t, err)
	assert.Equal(t, KindHTTPError, KindOf(err))
	assert.Equal(t, "Response code 500 (Internal Server Error)", err.Error())
}

func TestRevalidationWith304(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "max-age=0")
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	ctx := context.Background()

	first, err := client.Get(ctx, server.URL+"/doc", nil)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	// Stale entry revalidates; the 304 serves the stored body.
	second, err := client.Get(ctx, server.URL+"/doc", nil)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "payload", string(second.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestAbortCancelsInFlightRequest(t *testing.T) {
	handlerOutcome := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			handlerOutcome <- "cancelled"
		case <-time.After(5 * time.Second):
			handlerOutcome <- "completed"
			w.Write([]byte("late"))
		}
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	ctx := context.Background()

	result := make(chan error, 1)
	go func() {
		_, err := client.Get(ctx, server.URL+"/slow", nil)
		result <- err
	}()

	time.Sleep(100 * time.Millisecond)
	client.Abort()

	err := <-result
	require.Error(t, err)
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, "request cancelled", err.Error())
	assert.Equal(t, "cancelled", <-handlerOutcome)

	// Abort is terminal: later dispatches fail immediately.
	start := time.Now()
	_, err = client.Get(ctx, server.URL+"/slow", nil)
	require.Error(t, err)
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestTimeoutCancelsNetworkCall(t *testing.T) {
	handlerOutcome := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			handlerOutcome <- "cancelled"
		case <-time.After(5 * time.Second):
			handlerOutcome <- "completed"
		}
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	_, err := client.Get(context.Background(), server.URL+"/slow", &RequestOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, "Timeout awaiting response for 50ms", err.Error())
	assert.Equal(t, "cancelled", <-handlerOutcome)
}

func TestStatusErrorCarriesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("nope"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	_, err := client.Get(context.Background(), server.URL+"/missing", nil)
	require.Error(t, err)
	assert.Equal(t, KindHTTPError, KindOf(err))
	assert.Equal(t, "Response code 404 (Not Found)", err.Error())

	var restErr *Error
	require.ErrorAs(t, err, &restErr)
	require.NotNil(t, restErr.Response)
	assert.Equal(t, "nope", string(restErr.Response.Body))
}

func TestTransportErrorKind(t *testing.T) {
	client, _ := newTestClient(t, Config{})
	// Closed port: connection refused.
	_, err := client.Get(context.Background(), "http://127.0.0.1:1/unreachable", nil)
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestOnRequestHookMutatesRequest(t *testing.T) {
	var gotHeader atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader.Store(r.Header.Get("X-Tenant"))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{
		Meta: map[string]any{"tenant": "acme"},
		Hooks: Hooks{
			OnRequest: func(ctx context.Context, opts *RequestOptions) error {
				opts.Header.Set("X-Tenant", opts.Meta["tenant"].(string))
				return nil
			},
		},
	})
	_, err := client.Get(context.Background(), server.URL+"/t", nil)
	require.NoError(t, err)
	assert.Equal(t, "acme", gotHeader.Load())
}

func TestOnRequestHookErrorAbortsCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	hookErr := assert.AnError
	var observed error
	client, _ := newTestClient(t, Config{
		Hooks: Hooks{
			OnRequest: func(ctx context.Context, opts *RequestOptions) error { return hookErr },
			OnError:   func(ctx context.Context, err error, opts *RequestOptions) { observed = err },
		},
	})
	_, err := client.Get(context.Background(), server.URL+"/x", nil)
	assert.ErrorIs(t, err, hookErr)
	assert.ErrorIs(t, observed, hookErr)
	assert.Equal(t, int32(0), calls.Load())
}

func TestOnErrorHookRunsBeforeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var observedErr error
	var observedMethod string
	client, _ := newTestClient(t, Config{
		Hooks: Hooks{
			OnError: func(ctx context.Context, err error, opts *RequestOptions) {
				observedErr = err
				observedMethod = opts.Method
			},
		},
	})
	_, err := client.Get(context.Background(), server.URL+"/admin", nil)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, err, observedErr)
	assert.Equal(t, http.MethodGet, observedMethod)
}

func TestOnErrorHookPanicContained(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client, log := newTestClient(t, Config{
		Hooks: Hooks{
			OnError: func(ctx context.Context, err error, opts *RequestOptions) { panic("observer bug") },
		},
	})
	_, err := client.Get(context.Background(), server.URL+"/x", nil)
	require.Error(t, err)
	// The original classification survives the hook panic.
	assert.Equal(t, KindBadRequest, KindOf(err))
	assert.Equal(t, "Response code 400 (Bad Request)", err.Error())

	warned := false
	for _, entry := range log.Entries() {
		if entry.Severity == "WARNING" {
			warned = true
		}
	}
	assert.True(t, warned)
}

type failingStore struct {
	getErr error
	setErr error
}

func (f *failingStore) Get(context.Context, string) (bool, []byte, error) {
	return false, nil, f.getErr
}

func (f *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return f.setErr
}

func (f *failingStore) Delete(context.Context, string) (bool, error) { return false, nil }
func (f *failingStore) Close() error                                 { return nil }

func TestStoreReadFailureTreatedAsMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, log := newTestClient(t, Config{
		Store: &failingStore{getErr: assert.AnError, setErr: assert.AnError},
	})
	resp, err := client.Get(context.Background(), server.URL+"/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.False(t, resp.FromCache)

	warnings := 0
	for _, entry := range log.Entries() {
		if entry.Severity == "WARNING" {
			warnings++
		}
	}
	// One warning for the failed read, one for the failed write.
	assert.Equal(t, 2, warnings)
}

func TestStoreWriteFailureObserved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	var observed error
	client, _ := newTestClient(t, Config{
		Store: &failingStore{setErr: assert.AnError},
		Hooks: Hooks{
			OnError: func(ctx context.Context, err error, opts *RequestOptions) { observed = err },
		},
	})
	resp, err := client.Get(context.Background(), server.URL+"/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.ErrorIs(t, observed, assert.AnError)
}

func TestNoCacheOptionSkipsStore(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	ctx := context.Background()
	opts := &RequestOptions{NoCache: true}
	for i := 0; i < 2; i++ {
		resp, err := client.Get(ctx, server.URL+"/x", opts)
		require.NoError(t, err)
		assert.False(t, resp.FromCache)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestRequestCacheControlBypasses(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	ctx := context.Background()

	// Warm the store.
	_, err := client.Get(ctx, server.URL+"/x", nil)
	require.NoError(t, err)

	// A no-cache request directive forces the network despite the warm store.
	h := http.Header{}
	h.Set("Cache-Control", "no-cache")
	resp, err := client.Get(ctx, server.URL+"/x", &RequestOptions{Header: h})
	require.NoError(t, err)
	assert.False(t, resp.FromCache)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPostSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		w.Write(buf)
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	resp, err := client.Post(context.Background(), server.URL+"/echo", &RequestOptions{Body: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(resp.Body))
}

func TestBaseURLJoining(t *testing.T) {
	var gotPath atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path + "?" + r.URL.RawQuery)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{BaseURL: server.URL + "/api"})
	_, err := client.Get(context.Background(), "/users?page=2", nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/users?page=2", gotPath.Load())
}

func TestDefaultHeadersApplied(t *testing.T) {
	var gotAccept, gotAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept.Store(r.Header.Get("Accept"))
		gotAgent.Store(r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{
		DefaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "restcache-test",
		},
	})
	h := http.Header{}
	h.Set("Accept", "text/plain")
	_, err := client.Get(context.Background(), server.URL+"/x", &RequestOptions{Header: h})
	require.NoError(t, err)
	// Per-call header wins over the default.
	assert.Equal(t, "text/plain", gotAccept.Load())
	assert.Equal(t, "restcache-test", gotAgent.Load())
}

func TestPerRequestPolicyOverride(t *testing.T) {
	var calls atomic.Int32
	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// No explicit directives: freshness is heuristic only.
		w.Header().Set("Date", now.Format(http.TimeFormat))
		w.Header().Set("Last-Modified", now.Add(-10*time.Hour).Format(http.TimeFormat))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	ctx := context.Background()
	opts := &RequestOptions{CachePolicy: &httpcache.Policy{HeuristicFraction: 0.5}}

	_, err := client.Get(ctx, server.URL+"/x", opts)
	require.NoError(t, err)
	resp, err := client.Get(ctx, server.URL+"/x", opts)
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResponseDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"widget","count":3}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, Config{})
	resp, err := client.Get(context.Background(), server.URL+"/x", nil)
	require.NoError(t, err)

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "widget", out.Name)
	assert.Equal(t, 3, out.Count)
}
