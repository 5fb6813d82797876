package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goWA "github.com/MrEthical07/goWA"
)

type fakeSource struct {
	snapshot goWA.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goWA.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                  { return f.dropped }

type fakeStatusSource struct {
	fakeSource
	statuses []goWA.SessionStatus
}

func (f fakeStatusSource) ListStatuses() []goWA.SessionStatus { return f.statuses }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goWA.MetricsSnapshot{
			Counters:   map[goWA.MetricID]uint64{},
			Histograms: map[goWA.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goWA.MetricsSnapshot{
			Counters: map[goWA.MetricID]uint64{
				goWA.MetricSendSuccess: 7,
			},
			Histograms: map[goWA.MetricID][]uint64{
				goWA.MetricSendLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "wagw_send_success_total 7") {
		t.Fatalf("expected send_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "wagw_send_failure_total 0") {
		t.Fatalf("expected zero-valued counters to render, got:\n%s", out)
	}
	if !strings.Contains(out, "wagw_send_latency_seconds_bucket{le=\"0.05\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "wagw_send_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "wagw_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
	if strings.Contains(out, "wagw_sessions{") {
		t.Fatalf("session gauge requires a status source, got:\n%s", out)
	}
}

func TestRenderSessionGauge(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeStatusSource{
		fakeSource: fakeSource{snapshot: goWA.MetricsSnapshot{
			Counters: map[goWA.MetricID]uint64{goWA.MetricSessionCreated: 3},
		}},
		statuses: []goWA.SessionStatus{
			{ID: "a", State: goWA.StateReady},
			{ID: "b", State: goWA.StateReady},
			{ID: "c", State: goWA.StateAwaitingScan},
		},
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE wagw_sessions gauge",
		`wagw_sessions{state="ready"} 2`,
		`wagw_sessions{state="awaiting_scan"} 1`,
		`wagw_sessions{state="created"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goWA.MetricsSnapshot{
			Counters:   map[goWA.MetricID]uint64{goWA.MetricSendSuccess: 1},
			Histograms: map[goWA.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goWA.MetricsSnapshot{
			Counters: map[goWA.MetricID]uint64{
				goWA.MetricSessionCreated:  40,
				goWA.MetricSessionReady:    38,
				goWA.MetricSendSuccess:     1000,
				goWA.MetricSendFailure:     12,
				goWA.MetricSendTimeout:     3,
				goWA.MetricBroadcast:       80,
				goWA.MetricChallengeIssued: 55,
			},
			Histograms: map[goWA.MetricID][]uint64{
				goWA.MetricSendLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
