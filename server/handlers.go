package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joeychilson/rawview/client"
	"github.com/joeychilson/rawview/outline"
	"github.com/joeychilson/rawview/resolve"
	urlpkg "github.com/joeychilson/rawview/url"
)

// ClassifyRequest asks whether a URL is a recognized raw file URL.
type ClassifyRequest struct {
	URL string `json:"url"`
}

// ClassifyResponse reports the origin of a classified URL.
type ClassifyResponse struct {
	URL        string          `json:"url"`
	Recognized bool            `json:"recognized"`
	Origin     *resolve.Origin `json:"origin,omitempty"`
}

// Reference is a single href or src to resolve.
type Reference struct {
	Ref  string `json:"ref"`
	Kind string `json:"kind,omitempty"`
}

// ResolveRequest resolves references against the document at SourceURL.
type ResolveRequest struct {
	SourceURL  string      `json:"source_url"`
	References []Reference `json:"references"`
}

// ResolveResponse carries one result per requested reference, in order.
type ResolveResponse struct {
	Origin  *resolve.Origin      `json:"origin,omitempty"`
	Results []resolve.Resolution `json:"results"`
}

// RenderRequest asks for a document to be fetched and rendered.
type RenderRequest struct {
	URL string `json:"url"`
}

// Metadata describes a rendered document.
type Metadata struct {
	URL          string `json:"url"`
	SourceURL    string `json:"source_url"`
	StatusCode   int    `json:"status_code"`
	ContentType  string `json:"content_type"`
	Title        string `json:"title,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	CacheState   string `json:"cache_state,omitempty"`
	CachedAt     string `json:"cached_at,omitempty"`
}

// RenderResponse is a rendered document with its resolved references.
type RenderResponse struct {
	Metadata   Metadata             `json:"metadata"`
	Origin     *resolve.Origin      `json:"origin,omitempty"`
	HTML       string               `json:"html"`
	Markdown   string               `json:"markdown"`
	Outline    *outline.Outline     `json:"outline,omitempty"`
	References []resolve.Resolution `json:"references"`
}

// ErrorResponse represents an error.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	s.sendJSON(w, health, http.StatusOK)
}

// handleClassify handles POST /v1/classify requests.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error("failed to decode request", "error", err)
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		s.sendError(w, "url cannot be empty", http.StatusBadRequest)
		return
	}

	origin := resolve.Classify(req.URL)
	s.sendJSON(w, ClassifyResponse{
		URL:        req.URL,
		Recognized: origin != nil,
		Origin:     origin,
	}, http.StatusOK)
}

// handleResolve handles POST /v1/resolve requests. An unrecognized source URL
// is not an error; every reference comes back unchanged.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error("failed to decode request", "error", err)
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	kinds := make([]resolve.Kind, len(req.References))
	for i, ref := range req.References {
		kind, err := resolve.ParseKind(ref.Kind)
		if err != nil {
			s.sendError(w, fmt.Sprintf("references[%d]: %v", i, err), http.StatusBadRequest)
			return
		}
		kinds[i] = kind
	}

	origin := resolve.Classify(req.SourceURL)
	results := make([]resolve.Resolution, len(req.References))
	for i, ref := range req.References {
		results[i] = resolve.Explain(ref.Ref, origin, kinds[i])
	}

	s.logger.Debug("references resolved", "source_url", req.SourceURL, "count", len(results), "recognized", origin != nil)
	s.sendJSON(w, ResolveResponse{Origin: origin, Results: results}, http.StatusOK)
}

// handleRender handles POST /v1/render requests.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error("failed to decode request", "error", err)
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if _, err := urlpkg.ParseAndValidate(req.URL); err != nil {
		s.logger.Error("invalid request", "error", err)
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("render request", "url", req.URL)

	page, err := s.client.Render(r.Context(), req.URL)
	if err != nil {
		s.logger.Error("render failed", "url", req.URL, "error", err)
		s.sendError(w, err.Error(), statusForError(err))
		return
	}

	s.logger.Info("render completed",
		"url", page.URL,
		"source_url", page.SourceURL,
		"references", len(page.References),
		"cache_state", page.CacheState)

	s.sendJSON(w, buildRenderResponse(page), http.StatusOK)
}

func buildRenderResponse(page *client.Page) RenderResponse {
	metadata := Metadata{
		URL:          page.URL,
		SourceURL:    page.SourceURL,
		StatusCode:   page.StatusCode,
		ContentType:  page.ContentType,
		Title:        page.Title,
		LastModified: page.LastModified,
		CacheState:   page.CacheState,
	}
	if !page.CachedAt.IsZero() {
		metadata.CachedAt = page.CachedAt.Format(time.RFC3339Nano)
	}

	references := page.References
	if references == nil {
		references = []resolve.Resolution{}
	}

	return RenderResponse{
		Metadata:   metadata,
		Origin:     page.Origin,
		HTML:       page.HTML,
		Markdown:   page.Markdown,
		Outline:    page.Outline,
		References: references,
	}
}

// statusForError maps client errors onto API status codes. Anything other
// than a missing document is an upstream failure.
func statusForError(err error) int {
	if errors.Is(err, client.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func (s *Server) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	s.sendJSON(w, ErrorResponse{Error: message, StatusCode: statusCode}, statusCode)
}
