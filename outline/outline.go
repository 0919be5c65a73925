package outline

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// maxListItems caps the items sampled per list.
const maxListItems = 5

// Outline is a structural summary of a markdown document.
type Outline struct {
	Title    string    `json:"title,omitempty"`
	Headings []Heading `json:"headings,omitempty"`
	Tables   []Table   `json:"tables,omitempty"`
	Lists    []List    `json:"lists,omitempty"`
}

// Heading is a section heading. CharStart and CharEnd bound the section in
// the markdown source.
type Heading struct {
	Level     int    `json:"level"`
	Text      string `json:"text"`
	ID        string `json:"id,omitempty"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
}

type Table struct {
	Headers  []string `json:"headers"`
	RowCount int      `json:"row_count"`
}

type List struct {
	Type      string   `json:"type"`
	Items     []string `json:"items,omitempty"`
	ItemCount int      `json:"item_count"`
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// ExtractBytes parses source as GitHub-flavored markdown and outlines it.
func ExtractBytes(source []byte) *Outline {
	doc := md.Parser().Parse(text.NewReader(source))
	return Extract(doc, source)
}

// Extract outlines an already parsed document. The title is the text of the
// first level-one heading.
func Extract(doc ast.Node, source []byte) *Outline {
	o := &Outline{}

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			h := Heading{
				Level:     node.Level,
				Text:      plainText(node, source),
				CharStart: lineStart(node, source),
			}
			if id, ok := node.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					h.ID = string(b)
				}
			}
			if o.Title == "" && h.Level == 1 {
				o.Title = h.Text
			}
			o.Headings = append(o.Headings, h)
			return ast.WalkSkipChildren, nil

		case *east.Table:
			o.Tables = append(o.Tables, table(node, source))
			return ast.WalkSkipChildren, nil

		case *ast.List:
			o.Lists = append(o.Lists, list(node, source))
		}
		return ast.WalkContinue, nil
	})

	for i := range o.Headings {
		if i < len(o.Headings)-1 {
			o.Headings[i].CharEnd = o.Headings[i+1].CharStart
		} else {
			o.Headings[i].CharEnd = len(source)
		}
	}
	return o
}

func table(node *east.Table, source []byte) Table {
	t := Table{}
	for row := node.FirstChild(); row != nil; row = row.NextSibling() {
		switch row.(type) {
		case *east.TableHeader:
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				t.Headers = append(t.Headers, plainText(cell, source))
			}
		case *east.TableRow:
			t.RowCount++
		}
	}
	return t
}

func list(node *ast.List, source []byte) List {
	l := List{Type: "unordered"}
	if node.IsOrdered() {
		l.Type = "ordered"
	}
	for item := node.FirstChild(); item != nil; item = item.NextSibling() {
		l.ItemCount++
		if len(l.Items) < maxListItems {
			if first := item.FirstChild(); first != nil && first.Kind() != ast.KindList {
				l.Items = append(l.Items, plainText(first, source))
			}
		}
	}
	return l
}

// plainText concatenates the text under n.
func plainText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			// Code strings carry raw HTML.
			if !t.IsCode() {
				buf.Write(t.Value)
			}
		case *ast.CodeSpan:
			for s := t.FirstChild(); s != nil; s = s.NextSibling() {
				if tx, ok := s.(*ast.Text); ok {
					buf.Write(tx.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// lineStart returns the offset of the source line where a block begins.
func lineStart(n ast.Node, source []byte) int {
	lines := n.Lines()
	if lines.Len() == 0 {
		return 0
	}
	start := lines.At(0).Start
	if idx := bytes.LastIndexByte(source[:start], '\n'); idx >= 0 {
		return idx + 1
	}
	return 0
}
