// Package optimization provides runtime tuning for high load.
// Buffer and pool sizing derived from observed metrics.
package optimization

import (
	"runtime"
)

// Config holds tuned parameters for high-load scenarios.
type Config struct {
	// Frame pool sizing
	PoolSlots int

	// Channel buffer sizes
	BroadcastChannelBuffer int
	ClientSendBuffer       int

	// Persistence
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Viewer limits
	MaxViewers int
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		// One slot for the producer, one published, one for a slow reader
		PoolSlots: 3,

		BroadcastChannelBuffer: 8,  // Frames, not messages; newer supersedes older
		ClientSendBuffer:       16, // Per WebSocket

		DBMaxOpenConns: numCPU * 4,
		DBMaxIdleConns: numCPU * 2,

		MaxViewers: 200,
	}
}

// StressTestConfig returns aggressive settings for load testing.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		PoolSlots:              6,
		BroadcastChannelBuffer: 32,
		ClientSendBuffer:       64,

		DBMaxOpenConns: numCPU * 8,
		DBMaxIdleConns: numCPU * 4,

		MaxViewers: 500,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		PoolSlots:              2,
		BroadcastChannelBuffer: 4,
		ClientSendBuffer:       8,

		DBMaxOpenConns: 5,
		DBMaxIdleConns: 2,

		MaxViewers: 20,
	}
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreasePoolSlots     bool
	IncreaseSendBuffers   bool
	IncreaseDBConnections bool
	RelaxTickInterval     bool
	Notes                 []string
}

// Analyze examines a metrics snapshot and returns tuning recommendations.
func Analyze(metrics map[string]interface{}) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	// Pool exhaustion means consumers hold handles longer than the pool
	// can absorb; more slots is the direct remedy.
	if pool, ok := metrics["pool"].(map[string]interface{}); ok {
		if exhausted, ok := pool["exhausted"].(int64); ok && exhausted > 0 {
			rec.IncreasePoolSlots = true
			rec.Notes = append(rec.Notes, "Pool exhaustion detected - add slots or shorten handle lifetimes")
		}
	}

	// Tick latency near or above the interval leaves no headroom.
	if tick, ok := metrics["tick"].(map[string]interface{}); ok {
		if maxLat, ok := tick["max_latency_ms"].(float64); ok && maxLat > 33 {
			rec.RelaxTickInterval = true
			rec.Notes = append(rec.Notes, "Tick latency exceeds 33ms - relax the tick interval")
		}
		if errors, ok := tick["errors"].(int64); ok && errors > 0 {
			rec.Notes = append(rec.Notes, "Tick errors detected - inspect the failure log at /api/history?failures_only=true")
		}
	}

	// WebSocket errors count dropped frames and dropped viewers.
	if ws, ok := metrics["websocket"].(map[string]interface{}); ok {
		if errors, ok := ws["errors"].(int64); ok && errors > 0 {
			rec.IncreaseSendBuffers = true
			rec.Notes = append(rec.Notes, "Viewer frame drops detected - increase send buffers")
		}
	}

	return rec
}

// ApplyRecommendations modifies config based on recommendations.
func ApplyRecommendations(config *Config, rec *Recommendations) *Config {
	if rec.IncreasePoolSlots {
		config.PoolSlots++
	}
	if rec.IncreaseSendBuffers {
		config.BroadcastChannelBuffer *= 2
		config.ClientSendBuffer *= 2
	}
	if rec.IncreaseDBConnections {
		config.DBMaxOpenConns = int(float64(config.DBMaxOpenConns) * 1.5)
		config.DBMaxIdleConns = int(float64(config.DBMaxIdleConns) * 1.5)
	}
	return config
}
