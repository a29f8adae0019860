package rest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// maxKeyLength bounds the key size handed to the store; longer keys are
// replaced by an xxhash fingerprint.
const maxKeyLength = 200

// DefaultCacheKey derives the cache key from the request method and the
// normalized absolute URL: lowercased scheme and host, default ports
// stripped, query parameters sorted, fragment dropped. Two requests that
// normalize identically are cache-interchangeable.
func DefaultCacheKey(opts *RequestOptions) string {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return opts.Method + " " + opts.URL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	key := opts.Method + " " + u.String()
	if len(key) > maxKeyLength {
		return fmt.Sprintf("%s xxh64:%016x", opts.Method, xxhash.Sum64String(key))
	}
	return key
}
