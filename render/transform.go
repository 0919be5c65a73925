package render

import (
	"bytes"

	"github.com/joeychilson/rawview/resolve"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

var stateKey = parser.NewContextKey()

// state is the per-document input and output of the reference transformer.
type state struct {
	origin *resolve.Origin
	refs   []resolve.Resolution
}

func (s *state) resolve(ref string, kind resolve.Kind) string {
	res := resolve.Explain(ref, s.origin, kind)
	s.refs = append(s.refs, res)
	return res.URL
}

// referenceTransformer rewrites link destinations as page references and
// image destinations as raw references. Inline and block HTML is tokenized so
// <a href> and <img src> written by hand resolve the same way.
type referenceTransformer struct{}

func (referenceTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	st, _ := pc.Get(stateKey).(*state)
	if st == nil {
		return
	}
	source := reader.Source()

	type replacement struct {
		node  ast.Node
		value []byte
	}
	var replacements []replacement

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Link:
			node.Destination = []byte(st.resolve(string(node.Destination), resolve.KindPage))
		case *ast.Image:
			node.Destination = []byte(st.resolve(string(node.Destination), resolve.KindRaw))
		case *ast.RawHTML:
			raw := segmentsValue(node.Segments, source)
			if rewritten, changed := st.rewriteHTML(raw); changed {
				replacements = append(replacements, replacement{node, rewritten})
			}
		case *ast.HTMLBlock:
			raw := segmentsValue(node.Lines(), source)
			if node.HasClosure() {
				raw = append(raw, node.ClosureLine.Value(source)...)
			}
			if rewritten, changed := st.rewriteHTML(raw); changed {
				replacements = append(replacements, replacement{node, rewritten})
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, r := range replacements {
		s := ast.NewString(r.value)
		s.SetCode(true)
		parent := r.node.Parent()
		parent.ReplaceChild(parent, r.node, s)
	}
}

// rewriteHTML resolves href on <a> and src on <img> in a fragment of raw
// HTML. Everything else is copied byte for byte.
func (s *state) rewriteHTML(raw []byte) ([]byte, bool) {
	z := html.NewTokenizer(bytes.NewReader(raw))
	var out bytes.Buffer
	changed := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		original := append([]byte(nil), z.Raw()...)

		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			tok := z.Token()
			if key, kind, ok := referenceAttr(tok.Data); ok {
				for i, attr := range tok.Attr {
					if attr.Namespace != "" || attr.Key != key {
						continue
					}
					if resolved := s.resolve(attr.Val, kind); resolved != attr.Val {
						tok.Attr[i].Val = resolved
						changed = true
					}
				}
				out.WriteString(tok.String())
				continue
			}
		}
		out.Write(original)
	}

	if !changed {
		return raw, false
	}
	return out.Bytes(), true
}

func referenceAttr(tag string) (string, resolve.Kind, bool) {
	switch tag {
	case "a":
		return "href", resolve.KindPage, true
	case "img":
		return "src", resolve.KindRaw, true
	default:
		return "", 0, false
	}
}

func segmentsValue(segments *text.Segments, source []byte) []byte {
	var buf []byte
	for i := 0; i < segments.Len(); i++ {
		seg := segments.At(i)
		buf = append(buf, seg.Value(source)...)
	}
	return buf
}
