package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Offers.WithLabelValues("ok").Add(3)
	r.Offers.WithLabelValues("failed").Inc()
	r.CacheHits.Inc()

	if got := testutil.ToFloat64(r.Offers.WithLabelValues("ok")); got != 3 {
		t.Fatalf("ok offers = %v", got)
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{`calc_offers_total{outcome="failed"} 1`, "calc_cache_hits_total 1"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition misses %q", want)
		}
	}
}
