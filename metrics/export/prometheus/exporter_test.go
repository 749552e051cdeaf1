package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goVPS "github.com/MrEthical07/goVPS"
)

type fakeSource struct {
	snapshot   goVPS.MetricsSnapshot
	audit      uint64
	hypervisor uint64
}

func (f fakeSource) MetricsSnapshot() goVPS.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                   { return f.audit }
func (f fakeSource) HypervisorDropped() uint64              { return f.hypervisor }

func emptySnapshot() goVPS.MetricsSnapshot {
	return goVPS.MetricsSnapshot{
		Counters:   map[goVPS.MetricID]uint64{},
		Histograms: map[goVPS.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenDisabled(t *testing.T) {
	if got := New(fakeSource{snapshot: emptySnapshot()}).Render(); got != "" {
		t.Fatalf("expected no output, got:\n%s", got)
	}
	var nilExporter *Exporter
	if got := nilExporter.Render(); got != "" {
		t.Fatalf("nil exporter rendered %q", got)
	}
}

func TestRenderDroppedCountersWithoutMetrics(t *testing.T) {
	out := New(fakeSource{snapshot: emptySnapshot(), hypervisor: 3}).Render()
	if !strings.Contains(out, "govps_hypervisor_dropped_total 3") {
		t.Fatalf("missing hypervisor dropped counter:\n%s", out)
	}
	if strings.Contains(out, "_bucket") {
		t.Fatalf("histograms rendered without data:\n%s", out)
	}
}

func TestRenderCountersAndHistograms(t *testing.T) {
	out := New(fakeSource{
		snapshot: goVPS.MetricsSnapshot{
			Counters: map[goVPS.MetricID]uint64{
				goVPS.MetricLoginSuccess:          7,
				goVPS.MetricVPSTransitionRejected: 2,
			},
			Histograms: map[goVPS.MetricID][]uint64{
				goVPS.MetricHypervisorLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		audit: 2,
	}).Render()

	for _, want := range []string{
		"# TYPE govps_login_success_total counter",
		"govps_login_success_total 7",
		"govps_vps_transition_rejected_total 2",
		"govps_forbidden_total 0",
		`govps_hypervisor_latency_seconds_bucket{le="0.005"} 1`,
		`govps_hypervisor_latency_seconds_bucket{le="+Inf"} 36`,
		"govps_hypervisor_latency_seconds_count 36",
		"govps_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "govps_validate_latency_seconds") {
		t.Fatalf("validate histogram rendered without data:\n%s", out)
	}
}

func TestHandlerContentType(t *testing.T) {
	snap := emptySnapshot()
	snap.Counters[goVPS.MetricVPSCreated] = 1
	rec := httptest.NewRecorder()
	New(fakeSource{snapshot: snap}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "govps_vps_created_total 1") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestEscapeHelp(t *testing.T) {
	if got := escapeHelp("a\\b\nc"); got != `a\\b\nc` {
		t.Fatalf("escapeHelp = %q", got)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{
		snapshot: goVPS.MetricsSnapshot{
			Counters: map[goVPS.MetricID]uint64{
				goVPS.MetricLoginSuccess:     1000,
				goVPS.MetricLoginFailure:     40,
				goVPS.MetricVPSTransition:    800,
				goVPS.MetricHypervisorFailed: 3,
			},
			Histograms: map[goVPS.MetricID][]uint64{
				goVPS.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})
	b.ReportAllocs()
	for b.Loop() {
		_ = exp.Render()
	}
}
