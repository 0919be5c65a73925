package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/joeychilson/rawview/config"
	urlutil "github.com/joeychilson/rawview/url"
)

// ErrBodyTooLarge is returned when a document exceeds the configured size cap.
var ErrBodyTooLarge = errors.New("response body exceeds maximum size")

// Response is a fetched document.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// ContentType returns the Content-Type header.
func (r *Response) ContentType() string {
	return r.Headers.Get("Content-Type")
}

// FetchOptions carries per-request conditions.
type FetchOptions struct {
	IfModifiedSince string
}

// Fetcher retrieves documents over HTTP according to a FetchConfig.
type Fetcher struct {
	config   config.FetchConfig
	client   *http.Client
	rewrites []compiledRewrite
}

type compiledRewrite struct {
	regex       *regexp.Regexp
	literal     string
	replacement string
}

// ssrfProtectedTransport refuses connections to private destinations,
// including redirect targets.
type ssrfProtectedTransport struct {
	base http.RoundTripper
}

func (t *ssrfProtectedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := urlutil.ValidateNotPrivate(req.URL.Host); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// New builds a Fetcher. It fails only when a regex rewrite does not compile.
func New(cfg config.FetchConfig) (*Fetcher, error) {
	maxRedirects := cfg.GetMaxRedirects()

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.EnableSSRFProtection {
		transport = &ssrfProtectedTransport{base: http.DefaultTransport}
	}

	client := &http.Client{
		Timeout:   cfg.GetTimeout(),
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if maxRedirects == 0 {
				return http.ErrUseLastResponse
			}
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	rewrites := make([]compiledRewrite, 0, len(cfg.URLRewrites))
	for _, rewrite := range cfg.URLRewrites {
		cr := compiledRewrite{literal: rewrite.Pattern, replacement: rewrite.Replacement}
		if rewrite.Type == "regex" {
			re, err := regexp.Compile(rewrite.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid regex pattern %q in URL rewrite: %w", rewrite.Pattern, err)
			}
			cr.regex = re
		}
		rewrites = append(rewrites, cr)
	}

	return &Fetcher{config: cfg, client: client, rewrites: rewrites}, nil
}

// Fetch issues a GET for urlStr after applying URL rewrites. Non-2xx responses
// are returned without error; callers decide what a status means.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string, opts *FetchOptions) (*Response, error) {
	urlStr = f.Rewrite(urlStr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range f.config.GetHeaders() {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/markdown, text/plain;q=0.9, text/html;q=0.8, */*;q=0.5")
	}
	if opts != nil && opts.IfModifiedSince != "" {
		req.Header.Set("If-Modified-Since", opts.IfModifiedSince)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	limit := f.config.GetMaxBodySize()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// Rewrite applies the configured URL rewrites in order.
func (f *Fetcher) Rewrite(urlStr string) string {
	for _, rw := range f.rewrites {
		if rw.regex != nil {
			urlStr = rw.regex.ReplaceAllString(urlStr, rw.replacement)
			continue
		}
		urlStr = strings.ReplaceAll(urlStr, rw.literal, rw.replacement)
	}
	return urlStr
}

// IsSuccess reports whether statusCode carries a usable document.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
