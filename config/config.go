package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"go.yaml.in/yaml/v2"
)

const (
	DefaultUserAgent   = "rawview/1.0 (markdown viewer; +https://github.com/joeychilson/rawview)"
	DefaultMaxBodySize = 10 << 20
)

// Config is the top-level rawview configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Render  RenderConfig  `yaml:"render"`
	Default DefaultConfig `yaml:"default"`
	Sites   []SiteConfig  `yaml:"sites"`
}

// New returns a Config with the defaults used when no file is given.
func New() *Config {
	return &Config{
		Render: RenderConfig{
			HardWraps:         true,
			Sanitize:          true,
			OpenLinksInNewTab: true,
			LazyImages:        true,
		},
		Default: DefaultConfig{
			Cache: CacheConfig{
				TTL:       5 * time.Minute,
				StaleTime: time.Hour,
			},
			Fetch: FetchConfig{
				FollowRedirects:      true,
				EnableSSRFProtection: true,
			},
		},
		Sites: []SiteConfig{},
	}
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	RateLimitRequests int           `yaml:"rate_limit_requests,omitempty"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window,omitempty"`
}

// GetRateLimitRequests returns requests allowed per window, default 100.
func (s *ServerConfig) GetRateLimitRequests() int {
	if s.RateLimitRequests > 0 {
		return s.RateLimitRequests
	}
	return 100
}

// GetRateLimitWindow returns the API rate limit window, default one minute.
func (s *ServerConfig) GetRateLimitWindow() time.Duration {
	if s.RateLimitWindow > 0 {
		return s.RateLimitWindow
	}
	return time.Minute
}

// RenderConfig controls Markdown to HTML rendering.
type RenderConfig struct {
	HardWraps         bool `yaml:"hard_wraps"`
	Sanitize          bool `yaml:"sanitize"`
	OpenLinksInNewTab bool `yaml:"open_links_in_new_tab"`
	LazyImages        bool `yaml:"lazy_images"`
}

// DefaultConfig applies to every URL unless a site overrides it.
type DefaultConfig struct {
	Cache     CacheConfig     `yaml:"cache"`
	Fetch     FetchConfig     `yaml:"fetch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
}

// SiteConfig overrides the defaults for URLs matching Pattern.
type SiteConfig struct {
	Pattern   string           `yaml:"pattern"`
	Cache     *CacheConfig     `yaml:"cache,omitempty"`
	Fetch     *FetchConfig     `yaml:"fetch,omitempty"`
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
	Retry     *RetryConfig     `yaml:"retry,omitempty"`
}

// ResolvedConfig is the merged configuration for one URL.
type ResolvedConfig struct {
	Cache     CacheConfig
	Fetch     FetchConfig
	RateLimit RateLimitConfig
	Retry     RetryConfig
}

// GetConfigForURL merges every matching site, in file order, over the defaults.
func (c *Config) GetConfigForURL(url string) ResolvedConfig {
	resolved := ResolvedConfig{
		Cache:     c.Default.Cache,
		Fetch:     c.Default.Fetch,
		RateLimit: c.Default.RateLimit,
		Retry:     c.Default.Retry,
	}
	for _, site := range c.Sites {
		if !matchPattern(url, site.Pattern) {
			continue
		}
		if site.Cache != nil {
			resolved.Cache = mergeCache(resolved.Cache, *site.Cache)
		}
		if site.Fetch != nil {
			resolved.Fetch = mergeFetch(resolved.Fetch, *site.Fetch)
		}
		if site.RateLimit != nil {
			resolved.RateLimit = mergeRateLimit(resolved.RateLimit, *site.RateLimit)
		}
		if site.Retry != nil {
			resolved.Retry = mergeRetry(resolved.Retry, *site.Retry)
		}
	}
	return resolved
}

// CacheConfig controls how long fetched documents are kept.
type CacheConfig struct {
	TTL       time.Duration `yaml:"ttl,omitempty"`
	StaleTime time.Duration `yaml:"stale_time,omitempty"`
}

// IsEnabled reports whether documents are cached at all.
func (c *CacheConfig) IsEnabled() bool {
	return c.TTL > 0
}

// FetchConfig controls the outbound HTTP request for a document.
type FetchConfig struct {
	Timeout              time.Duration     `yaml:"timeout,omitempty"`
	UserAgent            string            `yaml:"user_agent,omitempty"`
	Headers              map[string]string `yaml:"headers,omitempty"`
	URLRewrites          []URLRewrite      `yaml:"url_rewrites,omitempty"`
	FollowRedirects      bool              `yaml:"follow_redirects,omitempty"`
	MaxRedirects         int               `yaml:"max_redirects,omitempty"`
	MaxBodySize          int64             `yaml:"max_body_size,omitempty"`
	EnableSSRFProtection bool              `yaml:"enable_ssrf_protection,omitempty"`
}

// GetHeaders returns request headers with the user agent filled in.
func (f *FetchConfig) GetHeaders() map[string]string {
	headers := map[string]string{"User-Agent": DefaultUserAgent}
	if f.UserAgent != "" {
		headers["User-Agent"] = f.UserAgent
	}
	maps.Copy(headers, f.Headers)
	return headers
}

// GetTimeout returns the request timeout, default 30 seconds.
func (f *FetchConfig) GetTimeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return 30 * time.Second
}

// GetMaxRedirects returns the redirect limit: MaxRedirects if set, 10 when
// following redirects, otherwise 0.
func (f *FetchConfig) GetMaxRedirects() int {
	if f.MaxRedirects > 0 {
		return f.MaxRedirects
	}
	if !f.FollowRedirects {
		return 0
	}
	return 10
}

// GetMaxBodySize returns the largest accepted document body in bytes.
func (f *FetchConfig) GetMaxBodySize() int64 {
	if f.MaxBodySize > 0 {
		return f.MaxBodySize
	}
	return DefaultMaxBodySize
}

// URLRewrite is a literal or regex substitution applied to a URL before fetching.
type URLRewrite struct {
	Type        string `yaml:"type"`
	Pattern     string `yaml:"pattern,omitempty"`
	Replacement string `yaml:"replacement,omitempty"`
}

// RateLimitConfig throttles outbound requests per host.
type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	Burst             int           `yaml:"burst,omitempty"`
	Delay             time.Duration `yaml:"delay,omitempty"`
	MaxConcurrent     int           `yaml:"max_concurrent,omitempty"`
	RespectRetryAfter bool          `yaml:"respect_retry_after,omitempty"`
}

// GetDelay returns the minimum spacing between requests.
func (r *RateLimitConfig) GetDelay() time.Duration {
	if r.Delay > 0 {
		return r.Delay
	}
	if r.RequestsPerSecond > 0 {
		return time.Duration(float64(time.Second) / r.RequestsPerSecond)
	}
	return 0
}

// IsEnabled reports whether any throttling applies.
func (r *RateLimitConfig) IsEnabled() bool {
	return r.RequestsPerSecond > 0 || r.Delay > 0 || r.MaxConcurrent > 0 || r.RespectRetryAfter
}

// RetryConfig controls backoff for failed fetches.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
	Multiplier   float64       `yaml:"multiplier,omitempty"`
	RetryOn      []int         `yaml:"retry_on,omitempty"`
}

// GetMaxRetries returns the retry count, never negative.
func (r *RetryConfig) GetMaxRetries() int {
	return max(r.MaxRetries, 0)
}

// GetInitialDelay returns the first backoff, default one second.
func (r *RetryConfig) GetInitialDelay() time.Duration {
	if r.InitialDelay > 0 {
		return r.InitialDelay
	}
	return time.Second
}

// GetMaxDelay returns the backoff ceiling, default 30 seconds.
func (r *RetryConfig) GetMaxDelay() time.Duration {
	if r.MaxDelay > 0 {
		return r.MaxDelay
	}
	return 30 * time.Second
}

// GetMultiplier returns the backoff growth factor, default 2.
func (r *RetryConfig) GetMultiplier() float64 {
	if r.Multiplier > 0 {
		return r.Multiplier
	}
	return 2.0
}

// ShouldRetry reports whether statusCode is retryable.
// Defaults to 429, 500, 502, 503 and 504.
func (r *RetryConfig) ShouldRetry(statusCode int) bool {
	retryOn := r.RetryOn
	if len(retryOn) == 0 {
		retryOn = []int{429, 500, 502, 503, 504}
	}
	return slices.Contains(retryOn, statusCode)
}

// LoadConfig reads, parses and validates a YAML config file.
// Fields missing from the file keep the values from New.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks for values that cannot work together.
func (c *Config) Validate() error {
	if c.Server.RateLimitRequests < 0 {
		return fmt.Errorf("server: 'rate_limit_requests' must be >= 0")
	}
	if c.Server.RateLimitWindow < 0 {
		return fmt.Errorf("server: 'rate_limit_window' must be >= 0")
	}

	if err := validateSection("default", &c.Default.Fetch, &c.Default.RateLimit, &c.Default.Retry, &c.Default.Cache); err != nil {
		return err
	}

	for i, site := range c.Sites {
		if site.Pattern == "" {
			return fmt.Errorf("sites[%d]: pattern cannot be empty", i)
		}
		if err := validateSection(fmt.Sprintf("sites[%d](%s)", i, site.Pattern), site.Fetch, site.RateLimit, site.Retry, site.Cache); err != nil {
			return err
		}
	}
	return nil
}

func validateSection(ctx string, f *FetchConfig, rl *RateLimitConfig, r *RetryConfig, cc *CacheConfig) error {
	if f != nil {
		if f.Timeout < 0 {
			return fmt.Errorf("%s.fetch: 'timeout' must be >= 0", ctx)
		}
		if f.MaxRedirects < 0 {
			return fmt.Errorf("%s.fetch: 'max_redirects' must be >= 0", ctx)
		}
		if f.MaxBodySize < 0 {
			return fmt.Errorf("%s.fetch: 'max_body_size' must be >= 0", ctx)
		}
		for i, rewrite := range f.URLRewrites {
			if rewrite.Pattern == "" {
				return fmt.Errorf("%s.fetch.url_rewrites[%d]: 'pattern' cannot be empty", ctx, i)
			}
			if rewrite.Type != "" && rewrite.Type != "regex" && rewrite.Type != "literal" {
				return fmt.Errorf("%s.fetch.url_rewrites[%d]: 'type' must be 'regex' or 'literal'", ctx, i)
			}
		}
	}

	if rl != nil {
		if rl.Delay > 0 && rl.RequestsPerSecond > 0 {
			return fmt.Errorf("%s.rate_limit: cannot specify both 'delay' and 'requests_per_second'", ctx)
		}
		if rl.Burst > 0 && rl.RequestsPerSecond == 0 && rl.Delay == 0 {
			return fmt.Errorf("%s.rate_limit: 'burst' requires either 'requests_per_second' or 'delay'", ctx)
		}
		if rl.MaxConcurrent < 0 {
			return fmt.Errorf("%s.rate_limit: 'max_concurrent' must be >= 0", ctx)
		}
	}

	if r != nil {
		if r.MaxRetries < 0 {
			return fmt.Errorf("%s.retry: 'max_retries' must be >= 0", ctx)
		}
		if r.Multiplier > 0 && r.Multiplier < 1.0 {
			return fmt.Errorf("%s.retry: 'multiplier' must be >= 1.0 (got %.2f)", ctx, r.Multiplier)
		}
		if r.MaxDelay > 0 && r.InitialDelay > r.MaxDelay {
			return fmt.Errorf("%s.retry: 'initial_delay' (%s) cannot be greater than 'max_delay' (%s)", ctx, r.InitialDelay, r.MaxDelay)
		}
		for _, code := range r.RetryOn {
			if code < 100 || code > 599 {
				return fmt.Errorf("%s.retry: invalid HTTP status code %d in 'retry_on'", ctx, code)
			}
		}
	}

	if cc != nil && (cc.TTL < 0 || cc.StaleTime < 0) {
		return fmt.Errorf("%s.cache: 'ttl' and 'stale_time' must be >= 0", ctx)
	}
	return nil
}
