package httpcache

import (
	"net/http"
	"time"
)

// Default values applied when a Policy field is zero.
const (
	DefaultHeuristicFraction    = 0.1
	DefaultImmutableMinLifetime = 24 * time.Hour
)

// Policy configures how freshness is computed and which responses are
// storable. The zero value behaves as a private cache with RFC-typical
// heuristics. Per-request policies refine but never replace the caching
// rules.
type Policy struct {
	// Shared marks the cache as shared. A shared cache honors s-maxage and
	// refuses to store responses marked private. A private cache ignores
	// s-maxage entirely.
	Shared bool

	// HeuristicFraction is the fraction of the Last-Modified age used as the
	// freshness lifetime when no explicit directives are present.
	// Defaults to DefaultHeuristicFraction (0.1).
	HeuristicFraction float64

	// ImmutableMinLifetime is the minimum heuristic lifetime granted to
	// responses carrying the immutable directive.
	// Defaults to DefaultImmutableMinLifetime (24h).
	ImmutableMinLifetime time.Duration

	// IgnoreNonstandard disables extension directives (stale-if-error).
	IgnoreNonstandard bool
}

func (p Policy) withDefaults() Policy {
	if p.HeuristicFraction <= 0 {
		p.HeuristicFraction = DefaultHeuristicFraction
	}
	if p.ImmutableMinLifetime <= 0 {
		p.ImmutableMinLifetime = DefaultImmutableMinLifetime
	}
	return p
}

// Decision is the terminal state of the caching decision for one request.
type Decision int

const (
	// MissThenStore executes the network call and stores the response when
	// storable.
	MissThenStore Decision = iota
	// FreshHit serves the stored response without touching the network.
	FreshHit
	// Revalidate executes the network call with validators from the stored
	// entry.
	Revalidate
	// Bypass always hits the network and never reads or writes the store.
	Bypass
)

func (d Decision) String() string {
	switch d {
	case MissThenStore:
		return "miss"
	case FreshHit:
		return "hit"
	case Revalidate:
		return "revalidate"
	case Bypass:
		return "bypass"
	default:
		return "unknown"
	}
}

// dateOr returns the response Date header, falling back to the given time
// when absent or malformed.
func dateOr(h http.Header, fallback time.Time) time.Time {
	if raw := h.Get("Date"); raw != "" {
		if date, err := http.ParseTime(raw); err == nil {
			return date
		}
	}
	return fallback
}

// FreshnessLifetime computes the freshness lifetime of a response per the
// standard caching rules, first match wins:
//
//  1. s-maxage, when the policy is shared
//  2. max-age
//  3. Expires minus Date
//  4. heuristic: HeuristicFraction of the age implied by Last-Modified,
//     raised to ImmutableMinLifetime for immutable responses
//  5. zero — the response is immediately stale but may still be stored
//     for revalidation
func (p Policy) FreshnessLifetime(h http.Header, now time.Time) time.Duration {
	p = p.withDefaults()
	cc := ParseCacheControl(h.Values("Cache-Control"))

	if p.Shared {
		if val, ok := cc.SMaxAge(); ok {
			return val
		}
	}
	if val, ok := cc.MaxAge(); ok {
		return val
	}
	if raw := h.Get("Expires"); raw != "" {
		if expires, err := http.ParseTime(raw); err == nil {
			if d := expires.Sub(dateOr(h, now)); d > 0 {
				return d
			}
			return 0
		}
	}
	if raw := h.Get("Last-Modified"); raw != "" {
		if lastModified, err := http.ParseTime(raw); err == nil {
			heuristic := time.Duration(p.HeuristicFraction * float64(dateOr(h, now).Sub(lastModified)))
			if heuristic < 0 {
				heuristic = 0
			}
			if cc.Immutable() && heuristic < p.ImmutableMinLifetime {
				heuristic = p.ImmutableMinLifetime
			}
			return heuristic
		}
	}
	if cc.Immutable() {
		return p.ImmutableMinLifetime
	}
	return 0
}

// Evaluate decides how to satisfy a request given the stored entry, if any.
// A nil entry is a miss. Request no-store/no-cache directives force a full
// bypass; a stored response that itself forbids reuse is bypassed as well.
func (p Policy) Evaluate(reqCC CacheControl, entry *Entry, now time.Time) Decision {
	if reqCC.NoStore() || reqCC.NoCache() {
		return Bypass
	}
	if entry == nil {
		return MissThenStore
	}
	storedCC := ParseCacheControl(http.Header(entry.Header).Values("Cache-Control"))
	if storedCC.NoStore() || storedCC.NoCache() {
		return Bypass
	}
	if entry.Fresh(now) {
		return FreshHit
	}
	return Revalidate
}

// Storable reports whether a response may be written to the store. Responses
// that forbid storage, error responses, and private responses seen by a
// shared cache are never stored.
func (p Policy) Storable(reqCC CacheControl, status int, respHeader http.Header) bool {
	if reqCC.NoStore() || reqCC.NoCache() {
		return false
	}
	if status < 200 || status >= 400 || status == http.StatusNotModified {
		return false
	}
	respCC := ParseCacheControl(respHeader.Values("Cache-Control"))
	if respCC.NoStore() || respCC.NoCache() {
		return false
	}
	if p.Shared && respCC.Private() {
		return false
	}
	return true
}
