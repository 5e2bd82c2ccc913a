// Package driver orchestrates the tick cadence: it steps the execution
// engine, keeps its memory sized, and drives the pool's acquire/copy/publish
// sequence. Ticks execute strictly sequentially; a failed tick publishes
// nothing and leaves the previously published frame visible.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/waynr/wasm-renderer/internal/engine"
	"github.com/waynr/wasm-renderer/internal/events"
	"github.com/waynr/wasm-renderer/internal/frame"
	"github.com/waynr/wasm-renderer/internal/platform/logger"
	"github.com/waynr/wasm-renderer/internal/platform/metrics"
)

// StepEngine is the execution-engine surface the driver consumes. The wasm
// implementation lives in internal/engine; tests substitute a fake.
type StepEngine interface {
	// Step runs one synchronous execution step.
	Step(ctx context.Context) error
	// MemorySize returns the current byte length of the engine's memory.
	MemorySize() uint32
	// PageSize returns the engine's growth granularity in bytes.
	PageSize() uint32
	// Grow requests deltaPages additional pages of memory.
	Grow(deltaPages uint32) error
	// ReadMemory reads length bytes at offset through a view bound to the
	// memory's current size.
	ReadMemory(offset, length uint32) ([]byte, error)
}

// Driver runs the produce/publish loop against a frame pool.
// Not safe for concurrent Tick calls; Start guarantees sequential ticks.
type Driver struct {
	engine  StepEngine
	pool    *frame.Pool
	log     *logger.Logger
	tickLog *events.Log

	width    int
	height   int
	interval time.Duration

	mu         sync.Mutex
	running    bool
	stopChan   chan struct{}
	tickNumber int64
}

// New creates a driver producing width x height RGBA8 frames into pool every
// interval. tickLog may be nil to disable event recording.
func New(eng StepEngine, pool *frame.Pool, width, height int, interval time.Duration, log *logger.Logger, tickLog *events.Log) *Driver {
	return &Driver{
		engine:   eng,
		pool:     pool,
		log:      log,
		tickLog:  tickLog,
		width:    width,
		height:   height,
		interval: interval,
	}
}

// SetTickNumber overrides the tick counter, used at startup to continue a
// numbering restored from storage.
func (d *Driver) SetTickNumber(n int64) {
	d.mu.Lock()
	d.tickNumber = n
	d.mu.Unlock()
}

// Prepare sizes the engine memory for the configured frame dimensions
// before the first tick. Unlike steady-state ticks, a failure here means the
// configuration can never produce a frame and must abort startup.
func (d *Driver) Prepare() error {
	required := uint32(d.width * d.height * 4)
	if err := d.ensureMemory(required); err != nil {
		return fmt.Errorf("initial memory sizing for %dx%d: %w", d.width, d.height, err)
	}
	return nil
}

// Start moves the driver from Idle to Running and begins ticking. Call in a
// goroutine. Returns an error when already running.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return errors.New("driver already running")
	}
	d.running = true
	d.stopChan = make(chan struct{})
	stop := d.stopChan
	d.mu.Unlock()

	d.log.Info("driver started")
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("driver stopped by context")
			return nil
		case <-stop:
			d.log.Info("driver stopped")
			return nil
		case <-ticker.C:
			// Tick failures are reported, never fatal: consumers keep
			// the last published frame.
			if err := d.Tick(ctx); err != nil {
				d.log.Error("tick failed", err)
			}
		}
	}
}

// Stop moves the driver back to Idle. Safe to call once per Start.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running && d.stopChan != nil {
		close(d.stopChan)
		d.stopChan = nil
	}
}

// Running reports whether the tick loop is active.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// TickNumber returns the number of the most recent tick attempt.
func (d *Driver) TickNumber() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tickNumber
}

// Tick runs one full production cycle: step the engine, size its memory,
// copy the pixels into a free frame and publish it. Any failure aborts the
// tick with no partial publish.
func (d *Driver) Tick(ctx context.Context) error {
	d.mu.Lock()
	d.tickNumber++
	number := d.tickNumber
	d.mu.Unlock()

	start := time.Now()
	copied, err := d.produce(ctx)
	elapsed := time.Since(start)

	metrics.Get().RecordTick(elapsed, err)
	if errors.Is(err, frame.ErrPoolExhausted) {
		metrics.Get().RecordPoolExhausted()
	}
	if err == nil {
		metrics.Get().RecordPublish(copied)
	}

	d.record(number, elapsed, copied, err)
	if err != nil {
		return fmt.Errorf("tick %d: %w", number, err)
	}
	return nil
}

// produce is the fallible body of a tick.
func (d *Driver) produce(ctx context.Context) (int, error) {
	if err := d.engine.Step(ctx); err != nil {
		return 0, err
	}

	required := uint32(d.width * d.height * 4)
	if err := d.ensureMemory(required); err != nil {
		return 0, err
	}

	// Views are invalidated by growth, so re-obtain one every tick.
	src, err := d.engine.ReadMemory(0, required)
	if err != nil {
		return 0, err
	}

	f, err := d.pool.AcquireFree()
	if err != nil {
		return 0, err
	}
	f.CopyFrom(src)
	d.pool.Publish(f)

	return int(required), nil
}

// ensureMemory grows the engine memory to at least required bytes, rounding
// the request up to whole pages of the engine's native granularity.
func (d *Driver) ensureMemory(required uint32) error {
	size := d.engine.MemorySize()
	if size >= required {
		return nil
	}
	pageSize := d.engine.PageSize()
	deltaPages := (required - size + pageSize - 1) / pageSize
	return d.engine.Grow(deltaPages)
}

// record appends a tick event and emits the debug log line.
func (d *Driver) record(number int64, elapsed time.Duration, copied int, err error) {
	status := classify(err)
	if d.tickLog != nil {
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		d.tickLog.Append(events.TickEvent{
			ID:        events.GenerateEventID(),
			Number:    number,
			Timestamp: time.Now(),
			Duration:  elapsed,
			Status:    status,
			Detail:    detail,
			Bytes:     copied,
		})
	}
	d.log.Tick(number, string(status), float64(elapsed)/1e6)
}

// classify maps a tick error to its event status.
func classify(err error) events.Status {
	switch {
	case err == nil:
		return events.StatusOK
	case errors.Is(err, frame.ErrPoolExhausted):
		return events.StatusPoolExhausted
	case errors.Is(err, engine.ErrMemoryFault):
		return events.StatusMemoryFault
	case errors.Is(err, engine.ErrViewFault):
		return events.StatusViewFault
	default:
		return events.StatusEngineFault
	}
}
