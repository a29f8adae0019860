package rest

import (
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/trailside/go-restcache/cache"
	"github.com/trailside/go-restcache/httpcache"
)

// DefaultTimeout is the system default applied when neither the client nor
// the request specifies one.
const DefaultTimeout = 30 * time.Second

// Doer executes one HTTP request. *http.Client satisfies it; tests and hosts
// may substitute their own transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client. Hooks are optional function values; the zero
// value of every field has a usable default.
type Config struct {
	// BaseURL is joined with per-call paths. When empty, paths must be
	// absolute URLs.
	BaseURL string

	// DefaultTimeout applies to calls without a per-request override.
	// Defaults to DefaultTimeout.
	DefaultTimeout time.Duration

	// DefaultHeaders are applied to every request unless the call sets the
	// same header itself.
	DefaultHeaders map[string]string

	// Store is the persistent response cache. Nil disables caching.
	Store cache.Store

	// Policy is the instance-wide cache policy; per-request policies
	// override it.
	Policy httpcache.Policy

	// Transport executes the network calls. Defaults to http.DefaultClient.
	Transport Doer

	// Hooks are the override points invoked during dispatch.
	Hooks Hooks

	// Meta is an opaque context value supplied by the host, surfaced to
	// hooks on every request.
	Meta map[string]any
}

func (c *Config) setDefaults() {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.Transport == nil {
		c.Transport = http.DefaultClient
	}
}

type fileConfig struct {
	BaseURL string            `yaml:"base_url"`
	Timeout string            `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
	Cache   struct {
		Shared               bool    `yaml:"shared"`
		HeuristicFraction    float64 `yaml:"heuristic_fraction"`
		ImmutableMinLifetime string  `yaml:"immutable_min_lifetime"`
		IgnoreNonstandard    bool    `yaml:"ignore_nonstandard"`
	} `yaml:"cache"`
}

// LoadConfig reads a YAML configuration file. Durations accept extended
// syntax such as "1d12h".
func LoadConfig(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	var fc fileConfig
	if err := yaml.Unmarshal(buf, &fc); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	cfg := Config{
		BaseURL:        fc.BaseURL,
		DefaultHeaders: fc.Headers,
		Policy: httpcache.Policy{
			Shared:            fc.Cache.Shared,
			HeuristicFraction: fc.Cache.HeuristicFraction,
			IgnoreNonstandard: fc.Cache.IgnoreNonstandard,
		},
	}
	if fc.Timeout != "" {
		d, err := str2duration.ParseDuration(fc.Timeout)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid timeout %q", fc.Timeout)
		}
		cfg.DefaultTimeout = d
	}
	if fc.Cache.ImmutableMinLifetime != "" {
		d, err := str2duration.ParseDuration(fc.Cache.ImmutableMinLifetime)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid immutable_min_lifetime %q", fc.Cache.ImmutableMinLifetime)
		}
		cfg.Policy.ImmutableMinLifetime = d
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables on the config:
// RESTCACHE_BASE_URL and RESTCACHE_TIMEOUT.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("RESTCACHE_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("RESTCACHE_TIMEOUT"); v != "" {
		d, err := str2duration.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid RESTCACHE_TIMEOUT %q", v)
		}
		c.DefaultTimeout = d
	}
	return nil
}
