package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/joeychilson/rawview/config"
	urlutil "github.com/joeychilson/rawview/url"
	"golang.org/x/time/rate"
)

const (
	cleanupInterval = 10 * time.Minute
	idleHostTTL     = 30 * time.Minute
)

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("limiter is closed")

// Limiter throttles outbound document fetches per host.
type Limiter struct {
	config config.RateLimitConfig

	mu     sync.RWMutex
	hosts  map[string]*hostLimiter
	closed bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

type hostLimiter struct {
	limiter   *rate.Limiter
	semaphore chan struct{}

	mu         sync.Mutex
	retryAfter time.Time
	lastAccess time.Time
}

// New creates a Limiter and starts its idle-host sweeper.
func New(cfg config.RateLimitConfig) *Limiter {
	l := &Limiter{
		config: cfg,
		hosts:  make(map[string]*hostLimiter),
		stopCh: make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Wait blocks until a request to urlStr may proceed. Every successful Wait
// must be paired with a Release.
func (l *Limiter) Wait(ctx context.Context, urlStr string) error {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	if !l.config.IsEnabled() {
		return nil
	}

	host, err := urlutil.ExtractHost(urlStr)
	if err != nil {
		return fmt.Errorf("failed to extract host: %w", err)
	}
	return l.hostFor(host).wait(ctx)
}

// Release frees the concurrency slot taken by Wait.
func (l *Limiter) Release(urlStr string) {
	if !l.config.IsEnabled() {
		return
	}
	host, err := urlutil.ExtractHost(urlStr)
	if err != nil {
		return
	}
	l.hostFor(host).release()
}

// UpdateRetryAfter records a server's Retry-After for the host of urlStr.
func (l *Limiter) UpdateRetryAfter(urlStr string, headers http.Header) {
	if !l.config.RespectRetryAfter {
		return
	}
	host, err := urlutil.ExtractHost(urlStr)
	if err != nil {
		return
	}
	until := parseRetryAfter(headers.Get("Retry-After"))
	if until.IsZero() {
		return
	}
	l.hostFor(host).setRetryAfter(until)
}

// Close stops the sweeper. It is safe to call more than once.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.stopCh)
	})
}

func (l *Limiter) hostFor(host string) *hostLimiter {
	l.mu.RLock()
	hl, ok := l.hosts[host]
	l.mu.RUnlock()
	if ok {
		return hl
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if hl, ok = l.hosts[host]; ok {
		return hl
	}
	hl = newHostLimiter(l.config)
	l.hosts[host] = hl
	return hl
}

func newHostLimiter(cfg config.RateLimitConfig) *hostLimiter {
	hl := &hostLimiter{lastAccess: time.Now()}

	if delay := cfg.GetDelay(); delay > 0 {
		burst := cfg.Burst
		if burst == 0 {
			burst = 1
		}
		hl.limiter = rate.NewLimiter(rate.Every(delay), burst)
	}
	if cfg.MaxConcurrent > 0 {
		hl.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return hl
}

func (hl *hostLimiter) wait(ctx context.Context) error {
	hl.mu.Lock()
	hl.lastAccess = time.Now()
	retryAfter := hl.retryAfter
	hl.mu.Unlock()

	if d := time.Until(retryAfter); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if hl.semaphore != nil {
		select {
		case hl.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if hl.limiter != nil {
		if err := hl.limiter.Wait(ctx); err != nil {
			hl.release()
			return err
		}
	}
	return nil
}

func (hl *hostLimiter) release() {
	if hl.semaphore == nil {
		return
	}
	select {
	case <-hl.semaphore:
	default:
	}
}

func (hl *hostLimiter) setRetryAfter(until time.Time) {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	if until.After(hl.retryAfter) {
		hl.retryAfter = until
	}
}

func (hl *hostLimiter) idleSince(now time.Time) time.Duration {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return now.Sub(hl.lastAccess)
}

// parseRetryAfter accepts delta-seconds or an HTTP-date.
func parseRetryAfter(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Now().Add(time.Duration(seconds) * time.Second)
	}
	if t, err := http.ParseTime(value); err == nil {
		return t
	}
	return time.Time{}
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for host, hl := range l.hosts {
				if hl.idleSince(now) > idleHostTTL {
					delete(l.hosts, host)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}
