package pools

import (
	"log"
	"runtime"
	"runtime/debug"
	"time"
)

// GCConfig holds GC tuning parameters
type GCConfig struct {
	// GOGC sets the garbage collection target percentage; 0 keeps the runtime default.
	GOGC int

	// MemoryLimit sets a soft memory limit in bytes; 0 means no limit.
	MemoryLimit int64
}

// DefaultGCConfig suits a server whose per-request memory lives in
// preallocated arenas: the heap is mostly static, so GC can run rarely.
func DefaultGCConfig() GCConfig {
	return GCConfig{GOGC: 200}
}

// ApplyGCConfig applies cfg and returns the previous GOGC value.
func ApplyGCConfig(cfg GCConfig) int {
	prev := debug.SetGCPercent(debug.SetGCPercent(-1))
	if cfg.GOGC > 0 {
		debug.SetGCPercent(cfg.GOGC)
		log.Printf("GC: GOGC=%d (was %d)", cfg.GOGC, prev)
	}
	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
		log.Printf("GC: memory limit %d bytes", cfg.MemoryLimit)
	}
	return prev
}

// GCStats holds garbage collection statistics
type GCStats struct {
	NumGC        uint32        `json:"num_gc"`
	PauseTotal   time.Duration `json:"pause_total_ns"`
	LastPause    time.Duration `json:"last_pause_ns"`
	AllocBytes   uint64        `json:"alloc_bytes"`
	Sys          uint64        `json:"sys_bytes"`
	NumGoroutine int           `json:"goroutines"`
}

// GetGCStats returns current GC statistics
func GetGCStats() GCStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := GCStats{
		NumGC:        ms.NumGC,
		PauseTotal:   time.Duration(ms.PauseTotalNs),
		AllocBytes:   ms.Alloc,
		Sys:          ms.Sys,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if ms.NumGC > 0 {
		stats.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
	}
	return stats
}
