// Package metrics provides observability for the renderer runtime.
// Pool exhaustion counters are the back-pressure signal for pool sizing.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickErrors     int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Frame pool metrics
	FramesPublished int64
	BytesCopied     int64
	PoolExhausted   int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSFramesOut         int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion or failure.
func (c *Collector) RecordTick(latency time.Duration, err error) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.TickErrors, 1)
	}

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordPublish records a successful frame publish.
func (c *Collector) RecordPublish(bytes int) {
	atomic.AddInt64(&c.FramesPublished, 1)
	atomic.AddInt64(&c.BytesCopied, int64(bytes))
}

// RecordPoolExhausted counts a failed free-slot acquisition. A rising value
// means consumers are holding handles longer than the pool can absorb.
func (c *Collector) RecordPoolExhausted() {
	atomic.AddInt64(&c.PoolExhausted, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSFrame records a frame sent to a viewer client.
func (c *Collector) RecordWSFrame() {
	atomic.AddInt64(&c.WSFramesOut, 1)
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"errors":         atomic.LoadInt64(&c.TickErrors),
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
		},

		"pool": map[string]interface{}{
			"frames_published": atomic.LoadInt64(&c.FramesPublished),
			"bytes_copied":     atomic.LoadInt64(&c.BytesCopied),
			"exhausted":        atomic.LoadInt64(&c.PoolExhausted),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"frames_out":         atomic.LoadInt64(&c.WSFramesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP renderer_tick_count Total tick cycles\n")
		fmt.Fprintf(w, "# TYPE renderer_tick_count counter\n")
		fmt.Fprintf(w, "renderer_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP renderer_tick_errors Total failed ticks\n")
		fmt.Fprintf(w, "# TYPE renderer_tick_errors counter\n")
		fmt.Fprintf(w, "renderer_tick_errors %d\n\n", atomic.LoadInt64(&c.TickErrors))

		fmt.Fprintf(w, "# HELP renderer_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE renderer_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "renderer_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP renderer_frames_published Total frames published\n")
		fmt.Fprintf(w, "# TYPE renderer_frames_published counter\n")
		fmt.Fprintf(w, "renderer_frames_published %d\n\n", atomic.LoadInt64(&c.FramesPublished))

		fmt.Fprintf(w, "# HELP renderer_pool_exhausted Total failed free-slot acquisitions\n")
		fmt.Fprintf(w, "# TYPE renderer_pool_exhausted counter\n")
		fmt.Fprintf(w, "renderer_pool_exhausted %d\n\n", atomic.LoadInt64(&c.PoolExhausted))

		fmt.Fprintf(w, "# HELP renderer_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE renderer_ws_connections gauge\n")
		fmt.Fprintf(w, "renderer_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP renderer_ws_frames_out Total frames sent to viewers\n")
		fmt.Fprintf(w, "# TYPE renderer_ws_frames_out counter\n")
		fmt.Fprintf(w, "renderer_ws_frames_out %d\n", atomic.LoadInt64(&c.WSFramesOut))
	}
}
