package rest

import "context"

// OnRequestHook is invoked once per call, after the request options are
// assembled and before any caching decision. It may mutate headers, body,
// timeout, and cache settings in place. Returning an error aborts the call.
type OnRequestHook func(ctx context.Context, opts *RequestOptions) error

// CacheKeyFunc overrides the default cache key calculation. It must be pure
// and deterministic. Returning a constant deliberately aliases distinct
// requests into one cache slot; returning distinct values for one endpoint
// fragments its cache by variant. Collisions are the caller's responsibility,
// not an error.
type CacheKeyFunc func(opts *RequestOptions) string

// OnErrorHook observes every classified error, and best-effort store write
// failures, before the error surfaces to the caller. It runs to completion
// first, so observers can rely on it having fired before the caller sees the
// failure. It cannot alter control flow; a panic inside the hook is logged
// and never replaces the original error.
type OnErrorHook func(ctx context.Context, err error, opts *RequestOptions)

// Hooks are the client's override points. Every field is optional; a nil
// hook means the default behavior (identity mutation, default key, no
// observation).
type Hooks struct {
	OnRequest OnRequestHook
	CacheKey  CacheKeyFunc
	OnError   OnErrorHook
}
