package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/authcore"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) ActivityDropped() uint64                   { return f.dropped }

func scrape(t *testing.T, src Source) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(src).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, string(body)
}

func TestScrapeEmptyWhenMetricsDisabled(t *testing.T) {
	_, body := scrape(t, fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{},
		Histograms: map[authcore.MetricID][]uint64{},
	}})
	if strings.Contains(body, "authcore_") {
		t.Fatalf("expected no authcore series for disabled metrics, got:\n%s", body)
	}
}

func TestScrapeIncludesCountersAndHistogram(t *testing.T) {
	res, body := scrape(t, fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess:  7,
				authcore.MetricAccountBanned: 2,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	for _, want := range []string{
		"authcore_login_success_total 7",
		"authcore_account_banned_total 2",
		"authcore_register_success_total 0",
		`authcore_validate_latency_seconds_bucket{le="0.005"} 1`,
		`authcore_validate_latency_seconds_bucket{le="0.5"} 28`,
		`authcore_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"authcore_validate_latency_seconds_count 36",
		"authcore_activity_dropped_total 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}

func BenchmarkScrape(b *testing.B) {
	h := Handler(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:   1000,
			authcore.MetricLoginFailure:   40,
			authcore.MetricRefreshSuccess: 800,
		},
		Histograms: map[authcore.MetricID][]uint64{
			authcore.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
		},
	}})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}
