// Package httpcache implements client-side HTTP caching semantics: parsing
// Cache-Control directives, computing freshness lifetimes (explicit,
// heuristic, and immutable-minimum), deciding between serving from cache,
// revalidating, and bypassing, and serving stale entries inside a
// stale-if-error window.
//
// The package is pure policy — it performs no I/O. The rest package consults
// it on every dispatch and persists [Entry] records through a cache.Store.
package httpcache
