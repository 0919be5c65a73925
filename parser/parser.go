package parser

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Parser converts a fetched document into markdown.
type Parser interface {
	Parse(ctx context.Context, content []byte) ([]byte, error)
}

// Registry routes documents to a Parser by content type.
type Registry struct {
	parsers map[string]Parser
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register binds parser to each content type. Types are matched
// case-insensitively without parameters.
func (r *Registry) Register(contentTypes []string, parser Parser) {
	for _, ct := range contentTypes {
		r.parsers[NormalizeContentType(ct)] = parser
	}
}

// Parse converts content with the parser registered for contentType.
// Content with no registered parser is assumed to be markdown already and is
// returned unchanged.
func (r *Registry) Parse(ctx context.Context, contentType string, content []byte) ([]byte, error) {
	if contentType == "" || len(content) == 0 {
		return content, nil
	}

	baseType := NormalizeContentType(contentType)
	parser, ok := r.parsers[baseType]
	if !ok {
		return content, nil
	}

	parsed, err := parser.Parse(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", baseType, err)
	}
	return parsed, nil
}

// HasParser reports whether contentType has a registered parser.
func (r *Registry) HasParser(contentType string) bool {
	_, ok := r.parsers[NormalizeContentType(contentType)]
	return ok
}

// Types lists the registered content types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.parsers))
	for ct := range r.parsers {
		types = append(types, ct)
	}
	slices.Sort(types)
	return types
}

// NormalizeContentType strips parameters and lowercases a content type:
//
//	"text/html; charset=utf-8" -> "text/html"
//	"TEXT/Markdown"            -> "text/markdown"
func NormalizeContentType(contentType string) string {
	if idx := strings.IndexByte(contentType, ';'); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
