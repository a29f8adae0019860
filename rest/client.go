package rest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/trailside/go-restcache/cache"
	"github.com/trailside/go-restcache/httpcache"
	"github.com/trailside/go-restcache/logger"
)

// Client dispatches HTTP requests through the caching pipeline. One client
// may have many requests in flight; Abort cancels all of them and is
// terminal for the instance.
type Client struct {
	cfg   Config
	log   logger.Logger
	store cache.Store
	abort *controller
}

// New returns a Client for the given configuration.
func New(log logger.Logger, cfg Config) *Client {
	cfg.setDefaults()
	return &Client{
		cfg:   cfg,
		log:   log,
		store: cfg.Store,
		abort: newController(),
	}
}

// Abort cancels every request currently dispatched through this client and
// makes every subsequent dispatch fail with KindCancelled. It cannot be
// undone.
func (c *Client) Abort() {
	c.abort.abort()
	c.log.Debug("client aborted, all in-flight requests cancelled")
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, opts)
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodHead, path, opts)
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, opts)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, opts)
}

// Patch issues a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, opts)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, opts)
}

// Do is the single funnel every verb goes through: build options, run the
// request-mutation hook, consult the cache policy, execute over the network
// when required, update the store, classify failures.
func (c *Client) Do(ctx context.Context, method, reqPath string, opts *RequestOptions) (*Response, error) {
	ro, err := c.buildOptions(method, reqPath, opts)
	if err != nil {
		c.observe(ctx, err, ro)
		return nil, err
	}

	if c.abort.isAborted() {
		err := newCancelledError(ro.Method, ro.URL, context.Canceled)
		c.observe(ctx, err, ro)
		return nil, err
	}

	if c.cfg.Hooks.OnRequest != nil {
		if err := c.cfg.Hooks.OnRequest(ctx, ro); err != nil {
			c.observe(ctx, err, ro)
			return nil, err
		}
		// The hook may have rewritten the path or query.
		if err := c.resolveURL(ro); err != nil {
			c.observe(ctx, err, ro)
			return nil, err
		}
	}

	key := c.cacheKey(ro)
	policy := c.policyFor(ro)
	useStore := c.store != nil && key != "" && !ro.NoCache
	reqCC := httpcache.ParseCacheControl(ro.Header.Values("Cache-Control"))

	var entry *httpcache.Entry
	decision := httpcache.Bypass
	if useStore {
		entry = c.lookup(ctx, key)
		decision = policy.Evaluate(reqCC, entry, time.Now())
		c.log.Trace("cache %s for %s %s [%s]", decision, ro.Method, ro.URL, ro.ID)
	}

	if decision == httpcache.FreshHit {
		return responseFromEntry(entry), nil
	}

	if decision == httpcache.Revalidate && entry != nil {
		if entry.ETag != "" {
			ro.Header.Set("If-None-Match", entry.ETag)
		}
		if entry.LastModified != "" {
			ro.Header.Set("If-Modified-Since", entry.LastModified)
		}
	}

	resp, execErr := c.execute(ctx, ro)
	now := time.Now()

	if execErr != nil || resp.Status >= 500 {
		if entry != nil && decision != httpcache.Bypass &&
			staleAllowed(execErr) && entry.ServableOnError(now) {
			c.log.Debug("origin failure, serving stale entry for %s %s [%s]", ro.Method, ro.URL, ro.ID)
			return responseFromEntry(entry), nil
		}
		if execErr == nil {
			execErr = newStatusError(ro.Method, ro.URL, resp)
		}
		c.observe(ctx, execErr, ro)
		return nil, execErr
	}

	if resp.Status == http.StatusNotModified && decision == httpcache.Revalidate && entry != nil {
		entry.Freshen(resp.Header, now, policy)
		c.storeEntry(ctx, ro, key, entry)
		return responseFromEntry(entry), nil
	}

	if resp.Status >= 400 {
		err := newStatusError(ro.Method, ro.URL, resp)
		c.observe(ctx, err, ro)
		return nil, err
	}

	if useStore && decision != httpcache.Bypass && policy.Storable(reqCC, resp.Status, resp.Header) {
		c.storeEntry(ctx, ro, key, httpcache.NewEntry(resp.Status, resp.Header, resp.Body, now, policy))
	}

	return resp, nil
}

// staleAllowed reports whether the failure is one a stale entry may stand in
// for: a 5xx (nil err here), a transport failure, or a timeout. An aborted
// request always surfaces its cancellation.
func staleAllowed(err error) bool {
	if err == nil {
		return true
	}
	switch KindOf(err) {
	case KindTransport, KindTimeout:
		return true
	default:
		return false
	}
}

func (c *Client) buildOptions(method, reqPath string, opts *RequestOptions) (*RequestOptions, error) {
	ro := &RequestOptions{}
	if opts != nil {
		*ro = *opts
	}
	ro.Method = method
	ro.Path = reqPath
	if ro.Header == nil {
		ro.Header = http.Header{}
	} else {
		ro.Header = ro.Header.Clone()
	}
	for k, v := range c.cfg.DefaultHeaders {
		if ro.Header.Get(k) == "" {
			ro.Header.Set(k, v)
		}
	}
	if ro.Meta == nil {
		ro.Meta = c.cfg.Meta
	}
	ro.ID = uuid.NewString()
	if err := c.resolveURL(ro); err != nil {
		return ro, err
	}
	return ro, nil
}

// resolveURL joins the base URL and the request path into ro.URL. A path
// that is itself an absolute URL wins over the base.
func (c *Client) resolveURL(ro *RequestOptions) error {
	p := ro.Path
	var rawQuery string
	if i := strings.Index(p, "?"); i != -1 {
		rawQuery = p[i+1:]
		p = p[:i]
	}

	var u *url.URL
	var err error
	if c.cfg.BaseURL == "" || strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		u, err = url.Parse(p)
	} else {
		u, err = url.Parse(c.cfg.BaseURL)
		if err == nil && p != "" {
			if u.Path == "" || u.Path == "/" {
				u.Path = p
			} else {
				u.Path = path.Join(u.Path, p)
			}
		}
	}
	if err != nil {
		return newTransportError(ro.Method, ro.Path, errors.Wrap(err, "invalid url"))
	}
	if rawQuery != "" {
		u.RawQuery = rawQuery
	}
	if len(ro.Query) > 0 {
		q := u.Query()
		for k, vs := range ro.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	ro.URL = u.String()
	return nil
}

func (c *Client) cacheKey(ro *RequestOptions) string {
	if ro.CacheKey != "" {
		return ro.CacheKey
	}
	if c.cfg.Hooks.CacheKey != nil {
		return c.cfg.Hooks.CacheKey(ro)
	}
	return DefaultCacheKey(ro)
}

func (c *Client) policyFor(ro *RequestOptions) httpcache.Policy {
	if ro.CachePolicy != nil {
		return *ro.CachePolicy
	}
	return c.cfg.Policy
}

func (c *Client) timeoutFor(ro *RequestOptions) time.Duration {
	if ro.Timeout > 0 {
		return ro.Timeout
	}
	return c.cfg.DefaultTimeout
}

// lookup reads the stored entry for key. Store failures and corrupt entries
// degrade to a miss; they never fail the request.
func (c *Client) lookup(ctx context.Context, key string) *httpcache.Entry {
	found, data, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed for %q, treating as miss: %v", key, err)
		return nil
	}
	if !found {
		return nil
	}
	entry, err := httpcache.DecodeEntry(data)
	if err != nil {
		c.log.Warn("corrupt cache entry for %q, treating as miss: %v", key, err)
		return nil
	}
	return entry
}

// storeEntry writes the entry best-effort: a failure is logged and reported
// to the error-observation hook, never to the caller.
func (c *Client) storeEntry(ctx context.Context, ro *RequestOptions, key string, entry *httpcache.Entry) {
	data, err := entry.Encode()
	if err == nil {
		err = c.store.Set(ctx, key, data, entry.TTLHint())
	}
	if err != nil {
		c.log.Warn("cache write failed for %q: %v", key, err)
		c.observe(ctx, errors.Wrap(err, "cache write failed"), ro)
	}
}

// execute performs the network call under the cancellation controller and
// the effective timeout, and classifies transport-level failures.
func (c *Client) execute(ctx context.Context, ro *RequestOptions) (*Response, error) {
	reqCtx, release, ok := c.abort.register(ctx)
	if !ok {
		return nil, newCancelledError(ro.Method, ro.URL, context.Canceled)
	}
	defer release()

	timeout := c.timeoutFor(ro)
	reqCtx, cancel := context.WithTimeout(reqCtx, timeout)
	defer cancel()

	var body io.Reader
	if len(ro.Body) > 0 {
		body = bytes.NewReader(ro.Body)
	}
	req, err := http.NewRequestWithContext(reqCtx, ro.Method, ro.URL, body)
	if err != nil {
		return nil, newTransportError(ro.Method, ro.URL, err)
	}
	req.Header = ro.Header.Clone()

	c.log.Trace("sending request %s %s [%s]", ro.Method, ro.URL, ro.ID)
	httpResp, err := c.cfg.Transport.Do(req)
	if err != nil {
		return nil, c.classifyTransport(ro, timeout, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.classifyTransport(ro, timeout, err)
	}
	c.log.Debug("response %d for %s %s [%s]", httpResp.StatusCode, ro.Method, ro.URL, ro.ID)

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

// classifyTransport maps a failed network call to its error kind. An abort
// wins over a coinciding deadline: the caller asked for cancellation and
// that is what they see.
func (c *Client) classifyTransport(ro *RequestOptions, timeout time.Duration, err error) *Error {
	switch {
	case c.abort.isAborted():
		return newCancelledError(ro.Method, ro.URL, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newTimeoutError(ro.Method, ro.URL, timeout, err)
	case errors.Is(err, context.Canceled):
		return newCancelledError(ro.Method, ro.URL, err)
	default:
		return newTransportError(ro.Method, ro.URL, err)
	}
}

// observe routes an error through the error-observation hook before it
// surfaces. A panicking hook is contained so it cannot replace the original
// error.
func (c *Client) observe(ctx context.Context, err error, ro *RequestOptions) {
	if c.cfg.Hooks.OnError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("error observation hook panicked: %v", r)
		}
	}()
	c.cfg.Hooks.OnError(ctx, err, ro)
}

func responseFromEntry(e *httpcache.Entry) *Response {
	return &Response{
		Status:    e.Status,
		Header:    http.Header(e.Header).Clone(),
		Body:      e.Body,
		FromCache: true,
	}
}
