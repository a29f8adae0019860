package rest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/trailside/go-restcache/httpcache"
)

// RequestOptions describes one call. The dispatcher builds a fresh value per
// call from the client defaults and the caller's options, and owns it for
// the duration of that call; only the OnRequest hook may mutate it.
type RequestOptions struct {
	// Method and Path are set by the dispatcher from the verb method called.
	Method string
	Path   string

	// URL is the resolved absolute URL, set by the dispatcher after the
	// OnRequest hook has run.
	URL string

	// Header holds the request headers. Keys are canonicalized, so lookups
	// are case-insensitive.
	Header http.Header

	// Query parameters merged into the URL.
	Query url.Values

	// Body is the raw request body.
	Body []byte

	// Timeout overrides the client default for this call.
	Timeout time.Duration

	// CachePolicy overrides the client cache policy for this call.
	CachePolicy *httpcache.Policy

	// CacheKey overrides the computed cache key for this call.
	CacheKey string

	// NoCache skips the store entirely for this call.
	NoCache bool

	// Meta is the opaque per-instance context value supplied at client
	// construction, visible to hooks.
	Meta map[string]any

	// ID is a per-call identifier for log correlation.
	ID string
}

// Response is the result returned to the caller. Immutable once constructed.
type Response struct {
	Status int
	Header http.Header
	Body   []byte

	// FromCache reports whether the response was served from the cache:
	// a fresh hit, a 304-freshened revalidation, or a stale-on-error serve.
	FromCache bool
}

// Decode unmarshals the response body as JSON into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}
