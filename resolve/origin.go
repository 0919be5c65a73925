package resolve

import (
	"regexp"
	"strings"
)

const (
	// CanonicalHost serves the rendered, human-viewable pages of a repository.
	CanonicalHost = "github.com"
	// RawHost serves the unprocessed bytes of repository files.
	RawHost = "raw.githubusercontent.com"
	// refPrefix is an optional token some raw URLs carry in front of the branch.
	refPrefix = "refs/heads/"
)

// The scheme is matched case-insensitively; everything after it is case-sensitive.
// Shape A: raw.githubusercontent.com/{owner}/{repo}/[refs/heads/]{branch}/{rest}
// Shape B: github.com/{owner}/{repo}/raw/[refs/heads/]{branch}/{rest}
var (
	schemePrefix = `^(?:(?i:[a-z][a-z0-9+.-]*):)?(?://)?`
	refGrammar   = `/(?:` + regexp.QuoteMeta(refPrefix) + `)?([^/]+)/(.*)$`

	rawPattern = regexp.MustCompile(
		schemePrefix + regexp.QuoteMeta(RawHost) + `/([^/]+)/([^/]+)` + refGrammar,
	)
	canonicalRawPattern = regexp.MustCompile(
		schemePrefix + `(?:www\.)?` + regexp.QuoteMeta(CanonicalHost) + `/([^/]+)/([^/]+)/raw` + refGrammar,
	)
)

// Origin describes the repository location a document was fetched from.
// BasePath is the directory containing the document, never the file itself.
type Origin struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch"`
	BasePath string `json:"base_path"`
}

// Classify recognizes raw file URLs served from the raw-content mirror or the
// canonical host's /raw/ endpoint. It returns nil for anything else, in which case
// references must be left as they are.
func Classify(sourceURL string) *Origin {
	for _, pattern := range []*regexp.Regexp{rawPattern, canonicalRawPattern} {
		if match := pattern.FindStringSubmatch(sourceURL); match != nil {
			return &Origin{
				Owner:    match[1],
				Repo:     match[2],
				Branch:   match[3],
				BasePath: parentDir(match[4]),
			}
		}
	}
	return nil
}

// parentDir drops the final segment of a repository path.
func parentDir(rest string) string {
	segments := strings.Split(rest, "/")
	return strings.Join(segments[:len(segments)-1], "/")
}

// Page resolves ref as a navigable link. A nil origin returns ref unchanged.
func (o *Origin) Page(ref string) string {
	return Resolve(ref, o, KindPage)
}

// Raw resolves ref as an embedded asset. A nil origin returns ref unchanged.
func (o *Origin) Raw(ref string) string {
	return Resolve(ref, o, KindRaw)
}

// Repository returns "owner/repo".
func (o *Origin) Repository() string {
	if o == nil {
		return ""
	}
	return o.Owner + "/" + o.Repo
}
