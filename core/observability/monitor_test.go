package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMonitor(t *testing.T) {
	m := NewMonitor()

	m.RecordRequest("template", 10*time.Millisecond, false)
	m.RecordRequest("template", 20*time.Millisecond, false)
	m.RecordRequest("template", 30*time.Millisecond, false)
	m.RecordRequest("file", time.Millisecond, false)

	if m.Total() != 4 {
		t.Errorf("Total = %d, want 4", m.Total())
	}

	sums := m.Summaries()
	if len(sums) != 2 || sums[0].Name != "file" || sums[1].Name != "template" {
		t.Fatalf("Summaries = %+v", sums)
	}

	tmpl := sums[1]
	if tmpl.Count != 3 {
		t.Errorf("Count = %d, want 3", tmpl.Count)
	}
	if tmpl.Avg != 20*time.Millisecond {
		t.Errorf("Avg = %v, want 20ms", tmpl.Avg)
	}
	if tmpl.Min != 10*time.Millisecond || tmpl.Max != 30*time.Millisecond {
		t.Errorf("Min/Max = %v/%v, want 10ms/30ms", tmpl.Min, tmpl.Max)
	}
}

func TestBottleneckDetection(t *testing.T) {
	m := NewMonitor()

	for i := 0; i < 100; i++ {
		m.RecordRequest("template", 150*time.Millisecond, false)
		m.RecordRequest("render_error", time.Millisecond, true)
	}
	m.RecordRequest("file", time.Millisecond, false)

	found := m.Bottlenecks(100 * time.Millisecond)
	if len(found) != 2 {
		t.Fatalf("got %d bottlenecks, want 2: %+v", len(found), found)
	}
	if found[0].Type != "errors" || found[0].Location != "render_error" {
		t.Errorf("first bottleneck = %+v", found[0])
	}
	if found[1].Type != "latency" || found[1].Location != "template" {
		t.Errorf("second bottleneck = %+v", found[1])
	}
}

func TestMetrics(t *testing.T) {
	free := 3
	m := NewMetrics(func() int { return free })

	m.Accepted.Inc()
	m.Accepted.Inc()
	m.Dropped.Inc()
	m.ObserveRequest("file", time.Millisecond)
	m.ObserveRequest("file", time.Millisecond)
	m.ObserveRequest("not_found", time.Millisecond)

	if got := testutil.ToFloat64(m.Accepted); got != 2 {
		t.Errorf("accepted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Dropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("file")); got != 2 {
		t.Errorf("requests{file} = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(m.Duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}

	count, err := testutil.GatherAndCount(m.Registry, "tmplserve_scheduler_free_slots")
	if err != nil || count != 1 {
		t.Errorf("free_slots gathered %d, %v", count, err)
	}
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("file", time.Millisecond)
}

func BenchmarkRecordRequest(b *testing.B) {
	m := NewMonitor()
	d := 10 * time.Millisecond

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordRequest("template", d, false)
	}
}
