package cache

import (
	"context"
	"time"
)

// Cache stores fetched documents keyed by source URL.
// Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, url string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, url string) error
	Clear(ctx context.Context) error
	Close() error
}

// Entry is a fetched document as it was stored. URL is the cache key;
// FinalURL is where the document was served from after redirects.
type Entry struct {
	URL          string              `json:"url"`
	FinalURL     string              `json:"final_url,omitempty"`
	StatusCode   int                 `json:"status_code"`
	Headers      map[string][]string `json:"headers,omitempty"`
	Body         []byte              `json:"body"`
	ContentType  string              `json:"content_type,omitempty"`
	LastModified string              `json:"last_modified,omitempty"`
	StoredAt     time.Time           `json:"stored_at"`
	TTL          time.Duration       `json:"ttl"`
	StaleTime    time.Duration       `json:"stale_time"`
}

// IsFresh reports whether the entry is within its TTL.
func (e *Entry) IsFresh() bool {
	return time.Since(e.StoredAt) < e.TTL
}

// IsStale reports whether the entry is past its TTL but still servable
// while a refresh runs.
func (e *Entry) IsStale() bool {
	age := time.Since(e.StoredAt)
	return age >= e.TTL && age < e.TTL+e.StaleTime
}

// IsTooOld reports whether the entry must not be served.
func (e *Entry) IsTooOld() bool {
	return time.Since(e.StoredAt) >= e.TTL+e.StaleTime
}

// Touched returns a copy of the entry stored now, used after a 304.
func (e *Entry) Touched() *Entry {
	updated := *e
	updated.StoredAt = time.Now()
	return &updated
}

// Config holds cache defaults applied to entries that carry none.
type Config struct {
	Prefix          string
	TTL             time.Duration
	StaleTime       time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns the cache defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:          "rawview:",
		TTL:             5 * time.Minute,
		StaleTime:       time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Prefix == "" {
		cfg.Prefix = defaults.Prefix
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.StaleTime == 0 {
		cfg.StaleTime = defaults.StaleTime
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	return cfg
}

func (c Config) stamp(entry *Entry) {
	if entry.TTL == 0 {
		entry.TTL = c.TTL
	}
	if entry.StaleTime == 0 {
		entry.StaleTime = c.StaleTime
	}
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now()
	}
}
