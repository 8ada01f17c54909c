package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/quadkey-index/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer(), true)

	observability.ObserveHTTP("GET", "/v1/neighbors", 200, 0.0004)
	observability.ObserveCodec("encode", nil)
	observability.ObserveCodec("neighbors", errors.New("invalid quadkey"))
	observability.IncNeighborCacheMiss()
	observability.ObserveCacheOp("sadd", nil, 0.002)
	observability.ObserveIngest("upsert", nil)
	observability.IncKafkaConsumerError("decode")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`http_request_duration_seconds_bucket`,
		`redis_operation_duration_seconds_count`,
		`neighbor_cache_results_total{outcome="miss"} `,
		`ingest_events_total{op="upsert",outcome="ok"} `,
		`kafka_consumer_errors_total{kind="decode"} `,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "codec_operations_total", `op="encode"`, `outcome="ok"`)
	assertHasMetricLine(t, body, "codec_operations_total", `op="neighbors"`, `outcome="error"`)
	assertHasMetricLine(t, body, "app_build_info", `version="test"`)
}
