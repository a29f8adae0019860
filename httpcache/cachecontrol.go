package httpcache

import (
	"strconv"
	"strings"
	"time"
)

// CacheControl is a parsed Cache-Control header. Directive names are
// compared case-insensitively; arguments accept both token and
// quoted-string syntax.
type CacheControl struct {
	directives map[string]string
}

// ParseCacheControl takes Cache-Control header values and returns the parsed
// directive set. When a directive appears more than once, the last
// occurrence wins.
func ParseCacheControl(values []string) CacheControl {
	m := make(map[string]string)
	for _, header := range values {
		for _, directive := range strings.Split(header, ",") {
			directive = strings.TrimSpace(directive)
			if directive == "" {
				continue
			}
			parts := strings.SplitN(directive, "=", 2)
			name := strings.ToLower(parts[0])
			var arg string
			if len(parts) > 1 {
				arg = strings.Trim(parts[1], "\"")
			}
			m[name] = arg
		}
	}
	return CacheControl{directives: m}
}

// Get returns the argument of the named directive and whether it is present.
func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[directive]
	return val, ok
}

// Has reports whether the named directive is present.
func (c CacheControl) Has(directive string) bool {
	_, ok := c.directives[directive]
	return ok
}

// deltaSeconds parses a directive argument as delta-seconds. Invalid values
// are treated as absent, which callers interpret as stale.
func (c CacheControl) deltaSeconds(directive string) (time.Duration, bool) {
	val, ok := c.directives[directive]
	if !ok {
		return 0, false
	}
	secs, err := strconv.ParseInt(val, 10, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// MaxAge returns the max-age directive as a duration.
func (c CacheControl) MaxAge() (time.Duration, bool) {
	return c.deltaSeconds("max-age")
}

// SMaxAge returns the s-maxage directive as a duration. It applies to shared
// caches only.
func (c CacheControl) SMaxAge() (time.Duration, bool) {
	return c.deltaSeconds("s-maxage")
}

// StaleIfError returns the RFC 5861 stale-if-error extension window.
func (c CacheControl) StaleIfError() (time.Duration, bool) {
	return c.deltaSeconds("stale-if-error")
}

// NoStore reports the no-store directive.
func (c CacheControl) NoStore() bool { return c.Has("no-store") }

// NoCache reports the no-cache directive.
func (c CacheControl) NoCache() bool { return c.Has("no-cache") }

// Private reports the private response directive.
func (c CacheControl) Private() bool { return c.Has("private") }

// Immutable reports the immutable response directive.
func (c CacheControl) Immutable() bool { return c.Has("immutable") }
