package stats

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	r := New(0)
	r.CacheHits.WithLabelValues("none").Inc()
	r.RateAdmitted.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "edgeward_cache_hits_total") {
		t.Fatal("response missing edgeward_cache_hits_total")
	}
	if !strings.Contains(body, "edgeward_ratelimit_admitted_total") {
		t.Fatal("response missing edgeward_ratelimit_admitted_total")
	}
}
