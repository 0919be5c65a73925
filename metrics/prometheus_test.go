package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncRender(OutcomeSuccess)
	pr.IncRender(OutcomeSuccess)
	pr.IncRender(OutcomeNotFound)
	pr.IncClassification(true)
	pr.IncClassification(false)
	pr.IncReference("raw", "relative")
	pr.IncCacheResult("hit")
	pr.ObserveFetchDuration(150*time.Millisecond, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.renders.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.renders.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.classifications.WithLabelValues("recognized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.classifications.WithLabelValues("unrecognized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.references.WithLabelValues("raw", "relative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.cacheResults.WithLabelValues("hit")))
	assert.Equal(t, 1, testutil.CollectAndCount(pr.fetchDuration))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestHTTPHandler(t *testing.T) {
	reg := NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncRender(OutcomeSuccess)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `rawview_documents_rendered_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncRender(OutcomeFetchError)
	r.IncClassification(true)
	r.IncReference("page", "anchor")
	r.IncCacheResult("miss")
	r.ObserveFetchDuration(time.Second, false)
}
