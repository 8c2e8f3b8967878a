package core

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/searchktools/tmplserve/core/observability"
	"github.com/searchktools/tmplserve/core/pools"
)

// Stats is a snapshot of the server's slot pool and request counters.
type Stats struct {
	Addr   string        `json:"addr"`
	TLS    bool          `json:"tls"`
	Uptime time.Duration `json:"uptime_ns"`

	Slots  int `json:"slots"`
	Active int `json:"active"`
	Free   int `json:"free"`

	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
	Requests uint64 `json:"requests"`

	ArenaSize      int `json:"arena_size"`
	ArenaHighWater int `json:"arena_high_water"`

	Outcomes []observability.OutcomeSummary `json:"outcomes"`
	GC       pools.GCStats                  `json:"gc"`
}

// Stats returns a snapshot of the server state.
func (s *Server) Stats() Stats {
	st := Stats{
		TLS:            s.tls,
		Slots:          s.pool.Len(),
		Active:         s.pool.ActiveCount(),
		Free:           s.pool.Free(),
		Accepted:       s.accepted.Load(),
		Dropped:        s.dropped.Load(),
		Requests:       s.requests.Load(),
		ArenaSize:      s.opts.ArenaSize,
		ArenaHighWater: s.pool.ArenaHighWater(),
		Outcomes:       s.monitor.Summaries(),
		GC:             pools.GetGCStats(),
	}
	if addr := s.Addr(); addr != nil {
		st.Addr = addr.String()
	}
	if !s.start.IsZero() {
		st.Uptime = time.Since(s.start)
	}
	return st
}

// StatsJSON returns Stats encoded as indented JSON.
func (s *Server) StatsJSON() ([]byte, error) {
	return json.MarshalIndent(s.Stats(), "", "  ")
}

// Monitor returns the per-outcome request monitor.
func (s *Server) Monitor() *observability.Monitor {
	return s.monitor
}

func (st Stats) String() string {
	return fmt.Sprintf("%d open connections, %d total, %d requests", st.Active, st.Accepted, st.Requests)
}
