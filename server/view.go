package server

import (
	"html/template"
	"net/http"

	"github.com/joeychilson/rawview/render"
	urlpkg "github.com/joeychilson/rawview/url"
)

var viewTemplate = template.Must(template.New("view").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
html, body { margin: 0; height: 100%; }
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; line-height: 1.5; color: #1f2328; }
.frame { position: fixed; inset: 0; }
.markdown-body { box-sizing: border-box; max-width: 980px; margin: 0 auto; padding: 32px; }
.markdown-body img { max-width: 100%; }
.markdown-body pre { background: #f6f8fa; padding: 16px; overflow: auto; }
.source { font-size: 12px; color: #59636e; }
.error { max-width: 640px; margin: 64px auto; }
</style>
</head>
<body>
{{- if .Error}}
<div class="error"><h1>{{.Title}}</h1><p>{{.Error}}</p></div>
{{- else if .Source}}
<article class="markdown-body">
<p class="source"><a href="{{.Source}}" target="_blank" rel="noopener noreferrer">{{.Source}}</a></p>
{{.Body}}
</article>
{{- else}}
{{.Body}}
{{- end}}
</body>
</html>
`))

type viewData struct {
	Title  string
	Source string
	Body   template.HTML
	Error  string
}

// handleView handles GET /view. The document named by ?url= is rendered into
// a standalone page, or framed directly with embed=1, or framed through the
// PDF viewer with pdf=1.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if _, err := urlpkg.ParseAndValidate(target); err != nil {
		s.sendPage(w, viewData{Title: "Invalid URL", Error: err.Error()}, http.StatusBadRequest)
		return
	}

	switch {
	case r.URL.Query().Get("pdf") == "1":
		s.sendPage(w, viewData{
			Title: target,
			Body:  template.HTML(render.EmbedHTML(render.PDFViewerURL(target), target)),
		}, http.StatusOK)
		return
	case r.URL.Query().Get("embed") == "1":
		s.sendPage(w, viewData{
			Title: target,
			Body:  template.HTML(render.EmbedHTML(target, target)),
		}, http.StatusOK)
		return
	}

	page, err := s.client.Render(r.Context(), target)
	if err != nil {
		s.logger.Error("view failed", "url", target, "error", err)
		status := statusForError(err)
		s.sendPage(w, viewData{Title: http.StatusText(status), Error: err.Error()}, status)
		return
	}

	s.sendPage(w, viewData{
		Title:  page.Title,
		Source: page.URL,
		// Rendered output is sanitized by the renderer when configured to.
		Body: template.HTML(page.HTML),
	}, http.StatusOK)
}

func (s *Server) sendPage(w http.ResponseWriter, data viewData, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := viewTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render view", "error", err)
	}
}
