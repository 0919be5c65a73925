package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryCache keeps entries in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	config  Config

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewMemoryCache creates a MemoryCache and starts its expiry sweeper.
func NewMemoryCache(cfg Config) *MemoryCache {
	mc := &MemoryCache{
		entries: make(map[string]*Entry),
		config:  applyDefaults(cfg),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go mc.cleanup()
	return mc
}

// Get returns a copy of the entry for url.
func (mc *MemoryCache) Get(ctx context.Context, url string) (*Entry, error) {
	mc.mu.RLock()
	entry, ok := mc.entries[url]
	mc.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if entry.IsTooOld() {
		mc.mu.Lock()
		delete(mc.entries, url)
		mc.mu.Unlock()
		return nil, nil
	}
	return clone(entry), nil
}

// Set stores a copy of entry.
func (mc *MemoryCache) Set(ctx context.Context, entry *Entry) error {
	mc.config.stamp(entry)

	mc.mu.Lock()
	mc.entries[entry.URL] = clone(entry)
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Delete(ctx context.Context, url string) error {
	mc.mu.Lock()
	delete(mc.entries, url)
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.mu.Lock()
	mc.entries = make(map[string]*Entry)
	mc.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.entries)
}

// Close stops the sweeper. It is safe to call more than once.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		close(mc.stopCh)
		<-mc.doneCh
	})
	return nil
}

func (mc *MemoryCache) cleanup() {
	ticker := time.NewTicker(mc.config.CleanupInterval)
	defer ticker.Stop()
	defer close(mc.doneCh)

	for {
		select {
		case <-ticker.C:
			mc.removeExpired()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MemoryCache) removeExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for url, entry := range mc.entries {
		if entry.IsTooOld() {
			delete(mc.entries, url)
		}
	}
}

func clone(e *Entry) *Entry {
	c := *e
	c.Body = slices.Clone(e.Body)
	if e.Headers != nil {
		c.Headers = make(map[string][]string, len(e.Headers))
		for k, v := range e.Headers {
			c.Headers[k] = slices.Clone(v)
		}
	}
	return &c
}
