package resolve

import (
	"fmt"
	"strings"
)

// Kind selects the output template used for a resolved reference.
type Kind int

const (
	// KindPage marks link targets; they resolve to the canonical viewer.
	KindPage Kind = iota
	// KindRaw marks embedded assets such as images; they resolve to the raw mirror.
	KindRaw
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// ParseKind converts a wire name into a Kind. An empty name means KindPage.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "page", "link":
		return KindPage, nil
	case "raw", "image":
		return KindRaw, nil
	default:
		return KindPage, fmt.Errorf("unknown reference kind %q (want page or raw)", s)
	}
}

// MarshalText encodes the kind by its wire name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts any name ParseKind accepts.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Rule names the resolution rule that produced a result.
type Rule string

const (
	RuleNoOrigin Rule = "no_origin"
	RuleAbsolute Rule = "absolute"
	RuleAnchor   Rule = "anchor"
	RuleCurrent  Rule = "current_dir"
	RuleParent   Rule = "parent_dir"
	RuleRelative Rule = "relative"
	RuleRooted   Rule = "rooted"
)

// Resolution is the outcome of resolving a single reference.
type Resolution struct {
	Ref  string `json:"ref"`
	Kind Kind   `json:"kind"`
	Rule Rule   `json:"rule"`
	URL  string `json:"resolved"`
}

// Resolve returns the absolute URL for ref as seen from a document at origin.
// It never fails: without an origin, or for absolute references and in-page
// anchors on links, ref comes back unchanged.
func Resolve(ref string, origin *Origin, kind Kind) string {
	return Explain(ref, origin, kind).URL
}

// Explain is Resolve with the applied rule attached.
func Explain(ref string, origin *Origin, kind Kind) Resolution {
	res := Resolution{Ref: ref, Kind: kind, URL: ref}

	switch {
	case origin == nil:
		res.Rule = RuleNoOrigin
		return res
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		res.Rule = RuleAbsolute
		return res
	case kind == KindPage && strings.HasPrefix(ref, "#"):
		res.Rule = RuleAnchor
		return res
	}

	var resolvedPath string
	resolvedPath, res.Rule = joinPath(origin.BasePath, ref)

	switch kind {
	case KindRaw:
		res.URL = fmt.Sprintf("https://%s/%s/%s/%s/%s", RawHost, origin.Owner, origin.Repo, origin.Branch, resolvedPath)
	default:
		res.URL = fmt.Sprintf("https://%s/%s/%s/blob/%s/%s", CanonicalHost, origin.Owner, origin.Repo, origin.Branch, resolvedPath)
	}
	return res
}

// joinPath applies ref to the directory basePath. Leading ".." segments pop
// basePath and stop silently at the repository root; ".." elsewhere is kept.
func joinPath(basePath, ref string) (string, Rule) {
	switch {
	case strings.HasPrefix(ref, "./"):
		return prefixBase(basePath, ref[2:]), RuleCurrent

	case strings.HasPrefix(ref, "../"):
		parts := strings.Split(basePath, "/")
		refParts := strings.Split(ref, "/")
		for len(refParts) > 0 && refParts[0] == ".." {
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
			refParts = refParts[1:]
		}
		return strings.Join(append(parts, refParts...), "/"), RuleParent

	case !strings.HasPrefix(ref, "/"):
		return prefixBase(basePath, ref), RuleRelative

	default:
		return ref[1:], RuleRooted
	}
}

func prefixBase(basePath, rest string) string {
	if basePath == "" {
		return rest
	}
	return basePath + "/" + rest
}
