// Package engine wraps the sandboxed wasm program that produces pixel data.
// The program must export a niladic "step" function and a linear memory
// named "memory"; one Step call is synchronous and single-threaded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// PageSize is the wasm linear memory growth granularity in bytes.
const PageSize = 65536

// Error kinds. Startup failures are fatal; during steady state each kind is
// tick-local and aborts only the current tick.
var (
	// ErrEngineFault covers an unloadable program, missing exports and
	// traps raised while stepping.
	ErrEngineFault = errors.New("engine fault")
	// ErrMemoryFault covers rejected memory growth requests.
	ErrMemoryFault = errors.New("memory fault")
	// ErrViewFault covers reads beyond the memory view's bounds.
	ErrViewFault = errors.New("memory view fault")
)

// Engine is an instantiated wasm program. Step and Grow must stay confined
// to the driver's goroutine; they are not reentrant.
type Engine struct {
	runtime wazero.Runtime
	module  api.Module
	step    api.Function
	memory  api.Memory
}

// New compiles and instantiates the given wasm program and resolves the
// "step" and "memory" exports. Failures here wrap ErrEngineFault and should
// abort startup.
func New(ctx context.Context, wasmBytes []byte) (*Engine, error) {
	runtime := wazero.NewRuntime(ctx)

	module, err := runtime.InstantiateWithConfig(ctx, wasmBytes, wazero.NewModuleConfig())
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("%w: instantiation failed: %v", ErrEngineFault, err)
	}

	step := module.ExportedFunction("step")
	if step == nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("%w: program exports no step function", ErrEngineFault)
	}

	memory := module.ExportedMemory("memory")
	if memory == nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("%w: program exports no memory", ErrEngineFault)
	}

	return &Engine{
		runtime: runtime,
		module:  module,
		step:    step,
		memory:  memory,
	}, nil
}

// LoadFile reads a wasm program from disk and instantiates it.
func LoadFile(ctx context.Context, path string) (*Engine, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading program %s: %v", ErrEngineFault, path, err)
	}
	return New(ctx, wasmBytes)
}

// Step runs one synchronous execution step. A trap inside the program is
// reported as an EngineFault and leaves the previously published frame the
// visible state.
func (e *Engine) Step(ctx context.Context) error {
	if _, err := e.step.Call(ctx); err != nil {
		return fmt.Errorf("%w: step trapped: %v", ErrEngineFault, err)
	}
	return nil
}

// MemorySize returns the current byte length of the exported memory.
func (e *Engine) MemorySize() uint32 {
	return e.memory.Size()
}

// PageSize returns the engine's native growth granularity.
func (e *Engine) PageSize() uint32 {
	return PageSize
}

// Grow requests deltaPages additional pages of linear memory. A rejected
// request (for example past the addressable limit) is a MemoryFault.
func (e *Engine) Grow(deltaPages uint32) error {
	if _, ok := e.memory.Grow(deltaPages); !ok {
		return fmt.Errorf("%w: grow by %d pages rejected", ErrMemoryFault, deltaPages)
	}
	return nil
}

// View returns a read accessor bound to the memory's current size. A view
// is invalidated by growth and must be re-obtained afterwards, which the
// driver does on every tick.
func (e *Engine) View() MemoryView {
	return MemoryView{memory: e.memory, size: e.memory.Size()}
}

// ReadMemory reads length bytes at offset through a fresh view.
func (e *Engine) ReadMemory(offset, length uint32) ([]byte, error) {
	return e.View().Read(offset, length)
}

// Close tears down the wasm runtime.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// MemoryView is a read-only accessor into the engine's memory, valid only
// against the size it was obtained at.
type MemoryView struct {
	memory api.Memory
	size   uint32
}

// Len returns the view's byte length.
func (v MemoryView) Len() uint32 { return v.size }

// Read returns length bytes starting at offset. Requests beyond the view's
// bounds fail with a ViewFault.
func (v MemoryView) Read(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(v.size) {
		return nil, fmt.Errorf("%w: read [%d, %d) beyond view of %d bytes",
			ErrViewFault, offset, offset+length, v.size)
	}
	b, ok := v.memory.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("%w: read [%d, %d) rejected by memory", ErrViewFault, offset, offset+length)
	}
	return b, nil
}
