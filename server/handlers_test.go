package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/joeychilson/rawview/client"
	"github.com/joeychilson/rawview/config"
	"github.com/joeychilson/rawview/metrics"
	"github.com/joeychilson/rawview/resolve"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readme = "https://raw.githubusercontent.com/octo/docs/main/guide/README.md"

const guide = `# Guide

Read [setup](setup.md), then [the FAQ](../FAQ.md).

![logo](/assets/logo.png)
`

// newTestServer serves docs from a local upstream that stands in for the raw mirror.
func newTestServer(t *testing.T, docs map[string]string, tune func(*config.Config), cfg *ServerConfig) *Server {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(upstream.Close)

	clientCfg := config.New()
	clientCfg.Default.Fetch.EnableSSRFProtection = false
	clientCfg.Default.Fetch.URLRewrites = []config.URLRewrite{
		{Type: "literal", Pattern: "https://raw.githubusercontent.com", Replacement: upstream.URL},
	}
	clientCfg.Default.Retry = config.RetryConfig{MaxRetries: 0}
	if tune != nil {
		tune(clientCfg)
	}

	c, err := client.New(clientCfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	s, err := New(c, nil, cfg)
	require.NoError(t, err)
	return s
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	return errResp
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var health map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, health["time"])
}

func TestServer_Metrics(t *testing.T) {
	reg := metrics.NewRegistry()
	metrics.NewPrometheusRecorder(reg)
	s := newTestServer(t, nil, nil, &ServerConfig{Metrics: metrics.HTTPHandler(reg)})

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	without := newTestServer(t, nil, nil, nil)
	w = httptest.NewRecorder()
	without.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Classify(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	t.Run("recognized", func(t *testing.T) {
		w := postJSON(t, s, "/v1/classify", ClassifyRequest{URL: readme})
		require.Equal(t, http.StatusOK, w.Code)

		var resp ClassifyResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Recognized)
		assert.Equal(t, &resolve.Origin{Owner: "octo", Repo: "docs", Branch: "main", BasePath: "guide"}, resp.Origin)
	})

	t.Run("unrecognized", func(t *testing.T) {
		w := postJSON(t, s, "/v1/classify", ClassifyRequest{URL: "https://example.com/README.md"})
		require.Equal(t, http.StatusOK, w.Code)

		var raw map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&raw))
		assert.Equal(t, false, raw["recognized"])
		assert.NotContains(t, raw, "origin")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, http.StatusBadRequest, decodeError(t, w).StatusCode)
	})

	t.Run("empty url", func(t *testing.T) {
		w := postJSON(t, s, "/v1/classify", ClassifyRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_Resolve(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)

	t.Run("resolves in order", func(t *testing.T) {
		w := postJSON(t, s, "/v1/resolve", ResolveRequest{
			SourceURL: readme,
			References: []Reference{
				{Ref: "setup.md"},
				{Ref: "../img/a.png", Kind: "raw"},
				{Ref: "#install", Kind: "page"},
				{Ref: "https://example.com/x"},
			},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp ResolveResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Results, 4)
		assert.NotNil(t, resp.Origin)

		assert.Equal(t, "https://github.com/octo/docs/blob/main/guide/setup.md", resp.Results[0].URL)
		assert.Equal(t, resolve.KindPage, resp.Results[0].Kind)
		assert.Equal(t, "https://raw.githubusercontent.com/octo/docs/main/img/a.png", resp.Results[1].URL)
		assert.Equal(t, resolve.KindRaw, resp.Results[1].Kind)
		assert.Equal(t, "#install", resp.Results[2].URL)
		assert.Equal(t, resolve.RuleAnchor, resp.Results[2].Rule)
		assert.Equal(t, "https://example.com/x", resp.Results[3].URL)
	})

	t.Run("unrecognized source leaves references unchanged", func(t *testing.T) {
		w := postJSON(t, s, "/v1/resolve", ResolveRequest{
			SourceURL:  "https://example.com/docs/README.md",
			References: []Reference{{Ref: "setup.md"}, {Ref: "/logo.png", Kind: "raw"}},
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp ResolveResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Nil(t, resp.Origin)
		assert.Equal(t, "setup.md", resp.Results[0].URL)
		assert.Equal(t, "/logo.png", resp.Results[1].URL)
		assert.Equal(t, resolve.RuleNoOrigin, resp.Results[1].Rule)
	})

	t.Run("unknown kind", func(t *testing.T) {
		w := postJSON(t, s, "/v1/resolve", ResolveRequest{
			SourceURL:  readme,
			References: []Reference{{Ref: "a.md"}, {Ref: "b.md", Kind: "video"}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Error, "references[1]")
	})
}

func TestServer_Render(t *testing.T) {
	docs := map[string]string{
		"/octo/docs/main/guide/README.md": guide,
		"/octo/docs/main/broken.md":       "",
	}
	s := newTestServer(t, docs, nil, nil)

	t.Run("renders with resolved references", func(t *testing.T) {
		w := postJSON(t, s, "/v1/render", RenderRequest{URL: readme})
		require.Equal(t, http.StatusOK, w.Code)

		var resp RenderResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, readme, resp.Metadata.URL)
		assert.Equal(t, readme, resp.Metadata.SourceURL)
		assert.Equal(t, http.StatusOK, resp.Metadata.StatusCode)
		assert.Equal(t, "Guide", resp.Metadata.Title)
		assert.Equal(t, client.CacheMiss, resp.Metadata.CacheState)
		assert.Equal(t, guide, resp.Markdown)
		require.NotNil(t, resp.Origin)
		assert.Equal(t, "guide", resp.Origin.BasePath)

		assert.Contains(t, resp.HTML, `href="https://github.com/octo/docs/blob/main/guide/setup.md"`)
		assert.Contains(t, resp.HTML, `href="https://github.com/octo/docs/blob/main/FAQ.md"`)
		assert.Contains(t, resp.HTML, `src="https://raw.githubusercontent.com/octo/docs/main/assets/logo.png"`)
		assert.Len(t, resp.References, 3)
		require.NotNil(t, resp.Outline)
		assert.Equal(t, "Guide", resp.Outline.Title)
	})

	t.Run("second render is cached", func(t *testing.T) {
		w := postJSON(t, s, "/v1/render", RenderRequest{URL: readme})
		require.Equal(t, http.StatusOK, w.Code)

		var resp RenderResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, client.CacheHit, resp.Metadata.CacheState)
		assert.NotEmpty(t, resp.Metadata.CachedAt)
	})

	t.Run("invalid url", func(t *testing.T) {
		for _, u := range []string{"", "not-a-url", "ftp://example.com/a.md"} {
			w := postJSON(t, s, "/v1/render", RenderRequest{URL: u})
			assert.Equal(t, http.StatusBadRequest, w.Code, "url %q", u)
		}
	})

	t.Run("missing document", func(t *testing.T) {
		w := postJSON(t, s, "/v1/render", RenderRequest{URL: "https://raw.githubusercontent.com/octo/docs/main/missing.md"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, http.StatusNotFound, decodeError(t, w).StatusCode)
	})

	t.Run("upstream failure", func(t *testing.T) {
		w := postJSON(t, s, "/v1/render", RenderRequest{URL: "https://raw.githubusercontent.com/octo/docs/main/broken.md"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestServer_View(t *testing.T) {
	docs := map[string]string{"/octo/docs/main/guide/README.md": guide}
	s := newTestServer(t, docs, nil, nil)

	get := func(query url.Values) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/view?"+query.Encode(), nil))
		return w
	}

	t.Run("rendered page", func(t *testing.T) {
		w := get(url.Values{"url": {readme}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

		body := w.Body.String()
		assert.Contains(t, body, "<title>Guide</title>")
		assert.Contains(t, body, `href="https://github.com/octo/docs/blob/main/guide/setup.md"`)
		assert.Contains(t, body, `class="markdown-body"`)
	})

	t.Run("embed", func(t *testing.T) {
		w := get(url.Values{"url": {"https://example.com/page"}, "embed": {"1"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `<iframe src="https://example.com/page"`)
	})

	t.Run("pdf", func(t *testing.T) {
		w := get(url.Values{"url": {"https://example.com/doc.pdf"}, "pdf": {"1"}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "https://docs.google.com/viewer?url=https%3A%2F%2Fexample.com%2Fdoc.pdf&amp;embedded=true")
	})

	t.Run("invalid url", func(t *testing.T) {
		w := get(url.Values{"url": {"javascript:alert(1)"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `class="error"`)
	})

	t.Run("missing document", func(t *testing.T) {
		w := get(url.Values{"url": {"https://raw.githubusercontent.com/octo/docs/main/nope.md"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "<title>Not Found</title>")
	})
}

func TestServer_RateLimit(t *testing.T) {
	limited := func(cfg *config.Config) {
		cfg.Server.RateLimitRequests = 2
	}

	exhaust := func(t *testing.T, s *Server) {
		t.Helper()
		for i := 0; i < 2; i++ {
			w := postJSON(t, s, "/v1/classify", ClassifyRequest{URL: readme})
			require.Equal(t, http.StatusOK, w.Code)
		}
		w := postJSON(t, s, "/v1/classify", ClassifyRequest{URL: readme})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, http.StatusTooManyRequests, decodeError(t, w).StatusCode)

		health := httptest.NewRecorder()
		s.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, health.Code)
	}

	t.Run("memory", func(t *testing.T) {
		exhaust(t, newTestServer(t, nil, limited, nil))
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })

		exhaust(t, newTestServer(t, nil, limited, &ServerConfig{RedisClient: rdb}))
		keys := mr.Keys()
		require.NotEmpty(t, keys)
		assert.Contains(t, keys[0], "rawview:ratelimit")
	})
}
