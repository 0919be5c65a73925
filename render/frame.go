package render

import (
	"html"
	"net/url"
	"strings"
)

const pdfViewer = "https://docs.google.com/viewer"

// PDFViewerURL returns an embeddable viewer address for a PDF document.
func PDFViewerURL(documentURL string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(documentURL), "+", "%20")
	return pdfViewer + "?url=" + escaped + "&embedded=true"
}

// EmbedHTML wraps src in a full-size iframe.
func EmbedHTML(src, title string) string {
	return `<div class="frame"><iframe src="` + html.EscapeString(src) +
		`" title="` + html.EscapeString(title) +
		`" style="width:100%;height:100%;border:0" referrerpolicy="no-referrer"></iframe></div>`
}
