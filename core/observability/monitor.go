package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor keeps in-process request statistics per dispatch outcome for
// the /stats endpoint.
type Monitor struct {
	outcomes sync.Map // outcome -> *OutcomeMetrics
	total    atomic.Uint64
}

// OutcomeMetrics stores per-outcome counters
type OutcomeMetrics struct {
	Name          string
	Count         atomic.Uint64
	Errors        atomic.Uint64
	TotalDuration atomic.Uint64
	MinDuration   atomic.Uint64
	MaxDuration   atomic.Uint64
}

// OutcomeSummary is a point-in-time copy of OutcomeMetrics.
type OutcomeSummary struct {
	Name   string        `json:"name"`
	Count  uint64        `json:"count"`
	Errors uint64        `json:"errors"`
	Avg    time.Duration `json:"avg_ns"`
	Min    time.Duration `json:"min_ns"`
	Max    time.Duration `json:"max_ns"`
}

// Bottleneck represents a performance issue
type Bottleneck struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Details  string `json:"details"`
}

// NewMonitor creates a monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// RecordRequest records a request
func (m *Monitor) RecordRequest(outcome string, duration time.Duration, isError bool) {
	val, _ := m.outcomes.LoadOrStore(outcome, &OutcomeMetrics{Name: outcome})
	om := val.(*OutcomeMetrics)

	om.Count.Add(1)
	if isError {
		om.Errors.Add(1)
	}

	d := uint64(duration.Nanoseconds())
	om.TotalDuration.Add(d)
	updateMinMax(om, d)

	m.total.Add(1)
}

func updateMinMax(m *OutcomeMetrics, d uint64) {
	for {
		min := m.MinDuration.Load()
		if min != 0 && d >= min {
			break
		}
		if m.MinDuration.CompareAndSwap(min, d) {
			break
		}
	}
	for {
		max := m.MaxDuration.Load()
		if d <= max {
			break
		}
		if m.MaxDuration.CompareAndSwap(max, d) {
			break
		}
	}
}

// Total returns the number of recorded requests.
func (m *Monitor) Total() uint64 {
	return m.total.Load()
}

// Summaries returns one summary per outcome, sorted by name.
func (m *Monitor) Summaries() []OutcomeSummary {
	var out []OutcomeSummary
	m.outcomes.Range(func(_, value any) bool {
		om := value.(*OutcomeMetrics)
		s := OutcomeSummary{
			Name:   om.Name,
			Count:  om.Count.Load(),
			Errors: om.Errors.Load(),
			Min:    time.Duration(om.MinDuration.Load()),
			Max:    time.Duration(om.MaxDuration.Load()),
		}
		if s.Count > 0 {
			s.Avg = time.Duration(om.TotalDuration.Load() / s.Count)
		}
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Bottlenecks flags outcomes with a high average latency or error rate.
func (m *Monitor) Bottlenecks(slow time.Duration) []Bottleneck {
	var found []Bottleneck
	for _, s := range m.Summaries() {
		if s.Count == 0 {
			continue
		}
		if s.Avg > slow {
			found = append(found, Bottleneck{
				Type:     "latency",
				Location: s.Name,
				Details:  fmt.Sprintf("High latency (%v avg)", s.Avg),
			})
		}
		if s.Errors > 0 && float64(s.Errors)/float64(s.Count) > 0.05 {
			found = append(found, Bottleneck{
				Type:     "errors",
				Location: s.Name,
				Details:  fmt.Sprintf("%.1f%% error rate", float64(s.Errors)/float64(s.Count)*100),
			})
		}
	}
	return found
}
