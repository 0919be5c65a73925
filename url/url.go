package url

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ParseAndValidate parses a document URL and requires an absolute http(s) form.
func ParseAndValidate(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	if parsedURL.Host == "" {
		return nil, fmt.Errorf("url must be absolute with scheme (http/https) and host")
	}

	switch strings.ToLower(parsedURL.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("url scheme must be http or https")
	}

	return parsedURL, nil
}

// ValidateNotPrivate rejects loopback, private and link-local destinations.
// Hostnames are resolved; lookup failures are left for the HTTP client to report.
func ValidateNotPrivate(host string) error {
	hostname, _, err := net.SplitHostPort(host)
	if err != nil {
		hostname = host
	}
	hostname = strings.Trim(hostname, "[]")

	if ip := net.ParseIP(hostname); ip != nil {
		return checkIP(hostname, ip)
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if err := checkIP(hostname, ip); err != nil {
			return err
		}
	}
	return nil
}

func checkIP(hostname string, ip net.IP) error {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified():
		return fmt.Errorf("requests to private addresses are not allowed: %s -> %s", hostname, ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		// 169.254.0.0/16 hosts cloud metadata endpoints.
		return fmt.Errorf("requests to link-local addresses are not allowed: %s -> %s", hostname, ip)
	}
	return nil
}

// ExtractHost returns host[:port] of urlStr.
func ExtractHost(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("url has no host: %s", urlStr)
	}

	return parsedURL.Host, nil
}
