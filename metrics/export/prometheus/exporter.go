package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goVPS "github.com/MrEthical07/goVPS"
	"github.com/MrEthical07/goVPS/metrics/export/internaldefs"
)

// Source is what the exporter reads on every scrape. *goVPS.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() goVPS.MetricsSnapshot
	AuditDropped() uint64
	HypervisorDropped() uint64
}

const (
	auditDroppedName      = "govps_audit_dropped_total"
	hypervisorDroppedName = "govps_hypervisor_dropped_total"
)

// Exporter serves engine metrics as a scrape target.
type Exporter struct {
	source Source
}

func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render at whatever path it is mounted on.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render returns the exposition text, or "" when metrics are disabled and
// nothing was dropped.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snap := e.source.MetricsSnapshot()
	auditDropped := e.source.AuditDropped()
	hvDropped := e.source.HypervisorDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && auditDropped == 0 && hvDropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		writeCounter(&b, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snap.Histograms[def.ID]
		if !ok {
			continue
		}
		writeHistogram(&b, def.Name, def.Help, internaldefs.CumulativeBuckets(raw))
	}
	writeCounter(&b, auditDroppedName, "Audit events dropped because the dispatcher was full.", auditDropped)
	writeCounter(&b, hypervisorDroppedName, "Hypervisor commands dropped because the dispatcher was full.", hvDropped)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	writeHeader(b, name, help, "counter")
	writeSample(b, name, "", value)
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		writeSample(b, name+"_bucket", `le="`+le+`"`, cumulative[i])
	}
	writeSample(b, name+"_count", "", cumulative[len(cumulative)-1])
	// Snapshots carry bucket counts only.
	writeSample(b, name+"_sum", "", 0)
}

func writeSample(b *strings.Builder, name, labels string, value uint64) {
	b.WriteString(name)
	if labels != "" {
		b.WriteByte('{')
		b.WriteString(labels)
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}
