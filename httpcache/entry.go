package httpcache

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Entry is the persisted record for one cached response. It carries enough
// metadata to compute freshness without re-fetching.
type Entry struct {
	Status       int                 `msgpack:"status"`
	Header       map[string][]string `msgpack:"header"`
	Body         []byte              `msgpack:"body"`
	StoredAt     time.Time           `msgpack:"stored_at"`
	InitialAge   time.Duration       `msgpack:"initial_age"`
	Lifetime     time.Duration       `msgpack:"lifetime"`
	StaleIfError time.Duration       `msgpack:"stale_if_error"`
	ETag         string              `msgpack:"etag,omitempty"`
	LastModified string              `msgpack:"last_modified,omitempty"`
}

// ageValue returns the Age header as a duration, or zero when absent or
// malformed.
func ageValue(h http.Header) time.Duration {
	raw := h.Get("Age")
	if raw == "" {
		return 0
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func validators(h http.Header) (etag, lastModified string) {
	return h.Get("ETag"), h.Get("Last-Modified")
}

func staleIfErrorWindow(h http.Header, p Policy) time.Duration {
	if p.IgnoreNonstandard {
		return 0
	}
	cc := ParseCacheControl(h.Values("Cache-Control"))
	if window, ok := cc.StaleIfError(); ok {
		return window
	}
	return 0
}

// NewEntry builds the persisted record for a response received now.
func NewEntry(status int, header http.Header, body []byte, now time.Time, p Policy) *Entry {
	etag, lastModified := validators(header)
	return &Entry{
		Status:       status,
		Header:       map[string][]string(header),
		Body:         body,
		StoredAt:     now,
		InitialAge:   ageValue(header),
		Lifetime:     p.FreshnessLifetime(header, now),
		StaleIfError: staleIfErrorWindow(header, p),
		ETag:         etag,
		LastModified: lastModified,
	}
}

// Age is the entry's current age: the age it carried when stored plus its
// resident time.
func (e *Entry) Age(now time.Time) time.Duration {
	return e.InitialAge + now.Sub(e.StoredAt)
}

// Fresh reports whether the entry may be served without revalidation.
func (e *Entry) Fresh(now time.Time) bool {
	return e.Age(now) < e.Lifetime
}

// ServableOnError reports whether the entry may be served in place of an
// origin failure: a stale-if-error window is present and the entry's age is
// still inside it.
func (e *Entry) ServableOnError(now time.Time) bool {
	return e.StaleIfError > 0 && e.Age(now) < e.Lifetime+e.StaleIfError
}

// TTLHint is the suggested store TTL: the freshness lifetime plus the
// stale-if-error window. Zero means the store's default TTL applies, which
// keeps immediately-stale entries around for revalidation.
func (e *Entry) TTLHint() time.Duration {
	return e.Lifetime + e.StaleIfError
}

// Freshen updates the stored entry from a 304 validation response per the
// header-update rules: the 304's headers replace the stored ones, the clock
// restarts, and freshness is recomputed.
func (e *Entry) Freshen(h http.Header, now time.Time, p Policy) {
	for k, v := range h {
		if k == "Content-Length" {
			continue
		}
		e.Header[k] = v
	}
	merged := http.Header(e.Header)
	e.StoredAt = now
	e.InitialAge = ageValue(h)
	e.Lifetime = p.FreshnessLifetime(merged, now)
	e.StaleIfError = staleIfErrorWindow(merged, p)
	e.ETag, e.LastModified = validators(merged)
}

// Encode serializes the entry for storage.
func (e *Entry) Encode() ([]byte, error) {
	return msgpack.Marshal(e)
}

// DecodeEntry deserializes a stored entry.
func DecodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
