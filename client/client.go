package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/joeychilson/rawview/cache"
	"github.com/joeychilson/rawview/config"
	"github.com/joeychilson/rawview/fetcher"
	"github.com/joeychilson/rawview/logger"
	"github.com/joeychilson/rawview/metrics"
	"github.com/joeychilson/rawview/outline"
	"github.com/joeychilson/rawview/parser"
	htmlparser "github.com/joeychilson/rawview/parser/html"
	"github.com/joeychilson/rawview/ratelimit"
	"github.com/joeychilson/rawview/render"
	"github.com/joeychilson/rawview/resolve"
	"github.com/joeychilson/rawview/retry"
	urlutil "github.com/joeychilson/rawview/url"
)

// Cache states reported on responses.
const (
	CacheHit   = "hit"
	CacheStale = "stale"
	CacheMiss  = "miss"
)

const refreshTimeout = 30 * time.Second

// ErrNotFound is returned when the upstream document does not exist.
var ErrNotFound = errors.New("document not found")

// StatusError is returned for upstream responses that carry no document.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d for %s", e.StatusCode, e.URL)
}

// Client fetches markdown documents and renders them with their references
// resolved against the repository they came from.
type Client struct {
	config   *config.Config
	parser   *parser.Registry
	renderer *render.Renderer
	cache    cache.Cache
	logger   logger.Logger
	recorder metrics.Recorder

	mu       sync.Mutex
	limiters map[config.RateLimitConfig]*ratelimit.Limiter

	refreshing sync.Map
}

// Response is a fetched document, converted to markdown when it arrived as HTML.
type Response struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	ContentType  string
	LastModified string
	CacheState   string
	CachedAt     time.Time
}

// Page is a rendered document.
type Page struct {
	URL          string
	SourceURL    string
	FinalURL     string
	StatusCode   int
	ContentType  string
	LastModified string
	Title        string
	Markdown     string
	HTML         string
	Origin       *resolve.Origin
	Outline      *outline.Outline
	References   []resolve.Resolution
	CacheState   string
	CachedAt     time.Time
}

// New creates a Client. A nil cfg uses config.New.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	registry := parser.New()
	registry.Register(htmlparser.ContentTypes, htmlparser.New())

	return &Client{
		config:   cfg,
		parser:   registry,
		renderer: render.New(cfg.Render),
		cache:    cache.NewMemoryCache(cache.DefaultConfig()),
		logger:   logger.Noop(),
		recorder: metrics.NoopRecorder{},
		limiters: make(map[config.RateLimitConfig]*ratelimit.Limiter),
	}, nil
}

// NewFromFile creates a Client from a YAML config file.
func NewFromFile(path string) (*Client, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return New(cfg)
}

// WithCache replaces the document cache. The previous cache is closed.
func (c *Client) WithCache(docCache cache.Cache) *Client {
	if c.cache != nil {
		_ = c.cache.Close()
	}
	c.cache = docCache
	return c
}

func (c *Client) WithLogger(log logger.Logger) *Client {
	c.logger = log
	return c
}

func (c *Client) WithRecorder(rec metrics.Recorder) *Client {
	c.recorder = rec
	return c
}

// Config returns the client's configuration.
func (c *Client) Config() *config.Config {
	return c.config
}

// Fetch returns the document at urlStr. GitHub viewer URLs are fetched from
// the raw mirror. Cached documents are served fresh, or stale while a single
// background refresh runs.
func (c *Client) Fetch(ctx context.Context, urlStr string) (*Response, error) {
	sourceURL := urlutil.Transform(urlStr)
	if sourceURL != urlStr {
		c.logger.Debug("url transformed", "url", urlStr, "source_url", sourceURL)
	}
	resolved := c.config.GetConfigForURL(sourceURL)

	if c.cache == nil || !resolved.Cache.IsEnabled() {
		entry, err := c.fetchEntry(ctx, sourceURL, resolved, nil)
		if err != nil {
			return nil, err
		}
		return toResponse(entry, CacheMiss), nil
	}

	cached, err := c.cache.Get(ctx, sourceURL)
	if err != nil {
		c.logger.Warn("cache get failed", "url", sourceURL, "error", err)
		cached = nil
	}

	if cached != nil {
		if cached.IsFresh() {
			c.logger.Debug("cache hit", "url", sourceURL)
			c.recorder.IncCacheResult(CacheHit)
			return toResponse(cached, CacheHit), nil
		}
		if cached.IsStale() {
			c.logger.Debug("cache hit (stale, refreshing in background)", "url", sourceURL)
			c.recorder.IncCacheResult(CacheStale)
			c.refreshInBackground(sourceURL, resolved, cached)
			return toResponse(cached, CacheStale), nil
		}
	}

	c.logger.Debug("cache miss", "url", sourceURL)
	c.recorder.IncCacheResult(CacheMiss)

	entry, err := c.fetchEntry(ctx, sourceURL, resolved, cached)
	if err != nil {
		return nil, err
	}
	c.store(ctx, entry)

	c.logger.Info("fetch completed", "url", sourceURL, "status_code", entry.StatusCode, "body_size", len(entry.Body))
	return toResponse(entry, CacheMiss), nil
}

// Render fetches urlStr, classifies its source URL and renders it.
func (c *Client) Render(ctx context.Context, urlStr string) (*Page, error) {
	resp, err := c.Fetch(ctx, urlStr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.recorder.IncRender(metrics.OutcomeNotFound)
		} else {
			c.recorder.IncRender(metrics.OutcomeFetchError)
		}
		return nil, err
	}

	origin := resolve.Classify(resp.URL)
	c.recorder.IncClassification(origin != nil)
	if origin == nil {
		c.logger.Debug("source url not recognized, references left as written", "url", resp.URL)
	}

	result, err := c.renderer.Render(resp.Body, origin)
	if err != nil {
		c.recorder.IncRender(metrics.OutcomeRenderError)
		return nil, fmt.Errorf("failed to render %s: %w", resp.URL, err)
	}
	for _, ref := range result.References {
		c.recorder.IncReference(ref.Kind.String(), string(ref.Rule))
	}
	c.recorder.IncRender(metrics.OutcomeSuccess)

	title := result.Outline.Title
	if title == "" {
		title = path.Base(resp.URL)
	}

	return &Page{
		URL:          urlStr,
		SourceURL:    resp.URL,
		FinalURL:     resp.FinalURL,
		StatusCode:   resp.StatusCode,
		ContentType:  resp.ContentType,
		LastModified: resp.LastModified,
		Title:        title,
		Markdown:     string(resp.Body),
		HTML:         result.HTML,
		Origin:       origin,
		Outline:      result.Outline,
		References:   result.References,
		CacheState:   resp.CacheState,
		CachedAt:     resp.CachedAt,
	}, nil
}

// Close releases the cache and every rate limiter.
func (c *Client) Close() error {
	c.mu.Lock()
	for _, l := range c.limiters {
		l.Close()
	}
	c.limiters = make(map[config.RateLimitConfig]*ratelimit.Limiter)
	c.mu.Unlock()

	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

func (c *Client) refreshInBackground(sourceURL string, resolved config.ResolvedConfig, previous *cache.Entry) {
	if _, loaded := c.refreshing.LoadOrStore(sourceURL, struct{}{}); loaded {
		c.logger.Debug("background refresh already in progress", "url", sourceURL)
		return
	}

	go func() {
		defer c.refreshing.Delete(sourceURL)

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		entry, err := c.fetchEntry(ctx, sourceURL, resolved, previous)
		if err != nil {
			c.logger.Error("background refresh failed", "url", sourceURL, "error", err)
			return
		}
		c.store(ctx, entry)
		c.logger.Debug("background refresh completed", "url", sourceURL)
	}()
}

func (c *Client) store(ctx context.Context, entry *cache.Entry) {
	if err := c.cache.Set(ctx, entry); err != nil {
		c.logger.Warn("cache set failed", "url", entry.URL, "error", err)
	}
}

// fetchEntry fetches sourceURL through the limiter and retrier. previous, when
// set, makes the request conditional and is reused on 304.
func (c *Client) fetchEntry(ctx context.Context, sourceURL string, resolved config.ResolvedConfig, previous *cache.Entry) (*cache.Entry, error) {
	f, err := fetcher.New(resolved.Fetch)
	if err != nil {
		return nil, fmt.Errorf("invalid fetch config: %w", err)
	}
	r := retry.New(f, c.limiterFor(resolved.RateLimit), resolved.Retry)

	var opts *fetcher.FetchOptions
	if previous != nil && previous.LastModified != "" {
		opts = &fetcher.FetchOptions{IfModifiedSince: previous.LastModified}
	}

	start := time.Now()
	resp, err := r.Fetch(ctx, sourceURL, opts)
	c.recorder.ObserveFetchDuration(time.Since(start), err == nil && resp != nil && fetcher.IsSuccess(resp.StatusCode))
	if err != nil {
		c.logger.Error("fetch failed", "url", sourceURL, "error", err)
		return nil, fmt.Errorf("failed to fetch %s: %w", sourceURL, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && previous != nil:
		c.logger.Debug("document not modified", "url", sourceURL)
		entry := previous.Touched()
		entry.TTL = resolved.Cache.TTL
		entry.StaleTime = resolved.Cache.StaleTime
		return entry, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
	case !fetcher.IsSuccess(resp.StatusCode):
		return nil, &StatusError{URL: sourceURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.ContentType()
	body, err := c.parser.Parse(ctx, contentType, resp.Body)
	if err != nil {
		c.logger.Error("failed to parse content", "url", sourceURL, "content_type", contentType, "error", err)
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	return &cache.Entry{
		URL:          sourceURL,
		FinalURL:     resp.URL,
		StatusCode:   resp.StatusCode,
		Headers:      resp.Headers,
		Body:         body,
		ContentType:  contentType,
		LastModified: resp.Headers.Get("Last-Modified"),
		StoredAt:     time.Now(),
		TTL:          resolved.Cache.TTL,
		StaleTime:    resolved.Cache.StaleTime,
	}, nil
}

// limiterFor shares one limiter between every URL with the same throttling
// settings, so per-host state survives across requests.
func (c *Client) limiterFor(cfg config.RateLimitConfig) *ratelimit.Limiter {
	cfg.RespectRetryAfter = true

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[cfg]; ok {
		return l
	}
	l := ratelimit.New(cfg)
	c.limiters[cfg] = l
	return l
}

func toResponse(entry *cache.Entry, state string) *Response {
	resp := &Response{
		URL:          entry.URL,
		FinalURL:     entry.FinalURL,
		StatusCode:   entry.StatusCode,
		Headers:      entry.Headers,
		Body:         entry.Body,
		ContentType:  entry.ContentType,
		LastModified: entry.LastModified,
		CacheState:   state,
	}
	if state != CacheMiss {
		resp.CachedAt = entry.StoredAt
	}
	return resp
}
