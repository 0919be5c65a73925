package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/joeychilson/rawview/config"
	"github.com/joeychilson/rawview/outline"
	"github.com/joeychilson/rawview/resolve"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Result is a rendered document.
type Result struct {
	HTML       string
	References []resolve.Resolution
	Outline    *outline.Outline
}

// Renderer turns markdown into HTML with every relative reference resolved
// against the document's origin. It is safe for concurrent use.
type Renderer struct {
	config config.RenderConfig
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New creates a Renderer.
func New(cfg config.RenderConfig) *Renderer {
	rendererOpts := []renderer.Option{gmhtml.WithUnsafe()}
	if cfg.HardWraps {
		rendererOpts = append(rendererOpts, gmhtml.WithHardWraps())
	}

	r := &Renderer{
		config: cfg,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
				parser.WithASTTransformers(util.Prioritized(referenceTransformer{}, 100)),
			),
			goldmark.WithRendererOptions(rendererOpts...),
		),
	}
	if cfg.Sanitize {
		r.policy = sanitizationPolicy()
	}
	return r
}

// Render converts source to HTML. A nil origin leaves every reference as
// written.
func (r *Renderer) Render(source []byte, origin *resolve.Origin) (*Result, error) {
	st := &state{origin: origin}
	pc := parser.NewContext()
	pc.Set(stateKey, st)

	doc := r.md.Parser().Parse(text.NewReader(source), parser.WithContext(pc))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	out := buf.Bytes()
	if r.policy != nil {
		out = r.policy.SanitizeBytes(out)
	}

	out, err := r.decorate(out)
	if err != nil {
		return nil, fmt.Errorf("failed to decorate html: %w", err)
	}

	return &Result{
		HTML:       string(out),
		References: st.refs,
		Outline:    outline.Extract(doc, source),
	}, nil
}

// decorate opens links in a new tab and lazy-loads images.
func (r *Renderer) decorate(fragment []byte) ([]byte, error) {
	if !r.config.OpenLinksInNewTab && !r.config.LazyImages {
		return fragment, nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(fragment), body)
	if err != nil {
		return nil, err
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.A:
				if href, ok := getAttr(n, "href"); ok && r.config.OpenLinksInNewTab && !strings.HasPrefix(href, "#") {
					setAttr(n, "target", "_blank")
					setAttr(n, "rel", "noopener noreferrer")
				}
			case atom.Img:
				if r.config.LazyImages {
					setAttr(n, "loading", "lazy")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	var out bytes.Buffer
	for _, n := range nodes {
		walk(n)
		if err := html.Render(&out, n); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// sanitizationPolicy is bluemonday's user-generated-content policy extended
// for what GitHub READMEs commonly contain.
func sanitizationPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AllowAttrs("align").OnElements("p", "div", "img", "h1", "h2", "h3", "td", "th")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+-]+$`)).OnElements("code")
	return p
}
