package config

import (
	"maps"
	"net/url"
	"strings"
)

// matchPattern reports whether urlStr falls under a site pattern:
//
//	raw.githubusercontent.com        exact host
//	*.githubusercontent.com          host or any subdomain
//	github.com/octo/*                host plus path prefix
//	*.github.com/docs/*              wildcard domain plus path prefix
//	*github*, api-*, *.io            substring / prefix / suffix host
func matchPattern(urlStr, pattern string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Host == "" {
		return urlStr == pattern
	}
	host := parsedURL.Hostname()

	hostPattern, pathPattern, hasPath := strings.Cut(pattern, "/")
	if hasPath && !matchPath(parsedURL.Path, "/"+pathPattern) {
		return false
	}

	if domain, ok := strings.CutPrefix(hostPattern, "*."); ok {
		return host == domain || strings.HasSuffix(host, "."+domain)
	}
	return matchHost(host, hostPattern)
}

func matchHost(host, pattern string) bool {
	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*") && len(pattern) > 1
	core := strings.Trim(pattern, "*")

	switch {
	case leading && trailing:
		return strings.Contains(host, core)
	case leading:
		return strings.HasSuffix(host, core)
	case trailing:
		return strings.HasPrefix(host, core)
	default:
		return host == pattern
	}
}

func matchPath(path, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}
	return path == pattern
}

func mergeCache(base, override CacheConfig) CacheConfig {
	if override.TTL != 0 {
		base.TTL = override.TTL
	}
	if override.StaleTime != 0 {
		base.StaleTime = override.StaleTime
	}
	return base
}

// mergeFetch layers a site's fetch settings over base. Boolean switches can only
// be turned on by a site.
func mergeFetch(base, override FetchConfig) FetchConfig {
	if override.Timeout != 0 {
		base.Timeout = override.Timeout
	}
	if override.UserAgent != "" {
		base.UserAgent = override.UserAgent
	}
	headers := make(map[string]string, len(base.Headers)+len(override.Headers))
	maps.Copy(headers, base.Headers)
	maps.Copy(headers, override.Headers)
	base.Headers = headers

	if len(override.URLRewrites) > 0 {
		base.URLRewrites = override.URLRewrites
	}
	if override.MaxRedirects > 0 {
		base.MaxRedirects = override.MaxRedirects
	}
	if override.MaxBodySize > 0 {
		base.MaxBodySize = override.MaxBodySize
	}
	base.FollowRedirects = base.FollowRedirects || override.FollowRedirects
	base.EnableSSRFProtection = base.EnableSSRFProtection || override.EnableSSRFProtection
	return base
}

func mergeRateLimit(base, override RateLimitConfig) RateLimitConfig {
	if override.RequestsPerSecond > 0 {
		base.RequestsPerSecond = override.RequestsPerSecond
		base.Delay = 0
	}
	if override.Delay > 0 {
		base.Delay = override.Delay
		base.RequestsPerSecond = 0
	}
	if override.Burst > 0 {
		base.Burst = override.Burst
	}
	if override.MaxConcurrent > 0 {
		base.MaxConcurrent = override.MaxConcurrent
	}
	base.RespectRetryAfter = base.RespectRetryAfter || override.RespectRetryAfter
	return base
}

func mergeRetry(base, override RetryConfig) RetryConfig {
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	if override.InitialDelay > 0 {
		base.InitialDelay = override.InitialDelay
	}
	if override.MaxDelay > 0 {
		base.MaxDelay = override.MaxDelay
	}
	if override.Multiplier > 0 {
		base.Multiplier = override.Multiplier
	}
	if len(override.RetryOn) > 0 {
		base.RetryOn = override.RetryOn
	}
	return base
}
