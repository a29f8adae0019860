// Package rest is the request-execution core: it issues outbound HTTP calls
// through a caching pipeline backed by a pluggable key-value store, enforces
// per-request timeouts, supports instance-wide cancellation via
// [Client.Abort], and classifies every failure into a closed set of error
// kinds.
//
// Every verb method funnels into [Client.Do]: build request options, run the
// request-mutation hook, compute the cache key, consult the policy engine,
// execute over the network when required, update the store, classify the
// outcome. Caching is enabled by supplying a cache.Store in [Config];
// without one every call goes to the network.
//
// Failures reach callers as [*Error] values carrying a [Kind]; match with
// [KindOf] rather than on error types. Store failures never fail a request —
// a failed read is a miss, a failed write is best-effort.
package rest
