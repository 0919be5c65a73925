package html

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// ContentTypes are the media types this parser accepts.
var ContentTypes = []string{"text/html", "application/xhtml+xml"}

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	voidElements    = map[string]bool{
		"img": true, "br": true, "hr": true, "input": true,
		"meta": true, "link": true, "area": true, "base": true,
		"col": true, "embed": true, "param": true, "source": true,
		"track": true, "wbr": true,
	}
)

// Parser turns an HTML document into markdown. Link and image targets are
// left exactly as written so relative references can be resolved later
// against the document's origin.
type Parser struct {
	policy    *bluemonday.Policy
	converter *converter.Converter
}

// New creates an HTML parser.
func New() *Parser {
	return &Parser{
		policy: sanitizationPolicy(),
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Parse sanitizes content and converts it to markdown.
func (p *Parser) Parse(ctx context.Context, content []byte) ([]byte, error) {
	if len(content) == 0 {
		return content, nil
	}

	sanitized := p.policy.SanitizeBytes(content)

	doc, err := html.Parse(strings.NewReader(string(sanitized)))
	if err != nil {
		return nil, err
	}
	optimizeHTML(doc)

	return p.converter.ConvertNode(doc)
}

// sanitizationPolicy keeps document structure, links and images.
func sanitizationPolicy() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()

	policy.AllowElements("div", "p", "h1", "h2", "h3", "h4", "h5", "h6",
		"main", "article", "section",
		"ul", "ol", "li",
		"table", "thead", "tbody", "tr", "td", "th",
		"pre", "code", "blockquote", "em", "strong", "del",
		"a", "img", "br", "hr")

	policy.AllowAttrs("href", "title").OnElements("a")
	policy.AllowAttrs("src", "alt", "title").OnElements("img")
	policy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	policy.AllowRelativeURLs(true)
	policy.AllowURLSchemes("http", "https", "mailto")

	return policy
}

// optimizeHTML collapses whitespace, drops empty elements and unwraps divs
// in one traversal.
func optimizeHTML(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		optimizeHTML(c)
		c = next
	}

	if n.Type == html.TextNode && !insidePre(n) {
		n.Data = normalizeText(n.Data)
	}

	if n.Type == html.ElementNode && len(n.Attr) > 0 {
		filtered := n.Attr[:0]
		for _, attr := range n.Attr {
			if attr.Val != "" {
				filtered = append(filtered, attr)
			}
		}
		n.Attr = filtered
	}

	if n.Type == html.ElementNode && isEmptyNode(n) && n.Parent != nil {
		n.Parent.RemoveChild(n)
		return
	}

	if n.Type == html.ElementNode && n.Data == "div" && n.Parent != nil {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			n.Parent.InsertBefore(c, n)
			c = next
		}
		n.Parent.RemoveChild(n)
	}
}

func normalizeText(data string) string {
	normalized := whitespaceRegex.ReplaceAllString(data, " ")
	if normalized == " " {
		return normalized
	}
	trimmed := strings.TrimSpace(normalized)
	if trimmed == "" {
		return normalized
	}
	if unicode.IsSpace(rune(data[0])) {
		trimmed = " " + trimmed
	}
	if unicode.IsSpace(rune(data[len(data)-1])) {
		trimmed += " "
	}
	return trimmed
}

func insidePre(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "pre" {
			return true
		}
	}
	return false
}

// isEmptyNode reports whether n has no text and no non-empty children.
func isEmptyNode(n *html.Node) bool {
	if voidElements[n.Data] {
		return false
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		case html.ElementNode:
			if !isEmptyNode(c) {
				return false
			}
		}
	}
	return true
}
