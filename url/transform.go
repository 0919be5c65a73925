package url

import (
	"net/url"
	"strings"
)

// Transform converts a URL into the form worth fetching.
// GitHub viewer pages are swapped for their raw-mirror equivalent so the document
// body arrives unrendered and its source URL can be classified.
func Transform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	switch strings.ToLower(u.Host) {
	case "github.com", "www.github.com":
		return transformGitHub(u, rawURL)
	}

	return rawURL
}

// transformGitHub rewrites github.com/owner/repo/blob/branch/path to
// raw.githubusercontent.com/owner/repo/branch/path. Anything else is returned as is.
func transformGitHub(u *url.URL, rawURL string) string {
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(segments) < 5 || segments[2] != "blob" {
		return rawURL
	}

	u.Host = "raw.githubusercontent.com"
	u.Path = "/" + strings.Join(append(segments[:2], segments[3:]...), "/")
	u.RawPath = ""
	u.Fragment = ""
	u.RawQuery = dropPlainQuery(u.Query())
	return u.String()
}

// dropPlainQuery removes viewer-only parameters such as ?plain=1.
func dropPlainQuery(q url.Values) string {
	q.Del("plain")
	return q.Encode()
}
