package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestServerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Searches.Inc()
	m.CacheHits.WithLabelValues("memory", "metadata").Inc()

	s := NewServer(0, reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "subvault_engine_searches_total 1")
	assert.Contains(t, body, `subvault_cache_hits_total{class="metadata",tier="memory"} 1`)
}

func TestServerUnknownPathIs404(t *testing.T) {
	s := NewServer(0, prometheus.NewRegistry())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
