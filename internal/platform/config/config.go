// Package config holds the construction-time configuration for the renderer
// runtime. Values are fixed for the process lifetime; there is no hot reload.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full runtime configuration, loadable from a TOML file.
type Config struct {
	Image   ImageConfig   `toml:"image"`
	Pool    PoolConfig    `toml:"pool"`
	Engine  EngineConfig  `toml:"engine"`
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
}

// ImageConfig fixes the dimensions of every produced frame.
type ImageConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// PoolConfig sizes the frame pool. Slots must exceed the maximum number of
// simultaneously outstanding consumer handles or acquisition starves.
type PoolConfig struct {
	Slots int `toml:"slots"`
}

// EngineConfig locates the wasm program and sets the tick cadence.
type EngineConfig struct {
	ModulePath   string   `toml:"module_path"`
	TickInterval Duration `toml:"tick_interval"`
}

// ServerConfig configures the HTTP/WebSocket viewer surface.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StorageConfig locates the sqlite tick log.
type StorageConfig struct {
	Path string `toml:"path"`
}

// Duration wraps time.Duration so TOML files can say "33ms" or "1s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for toml decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is given: a small
// 64x64 canvas at ~30 ticks per second with a three-slot pool.
func Default() Config {
	return Config{
		Image:   ImageConfig{Width: 64, Height: 64},
		Pool:    PoolConfig{Slots: 3},
		Engine:  EngineConfig{ModulePath: "demo.wasm", TickInterval: Duration{33 * time.Millisecond}},
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{Path: "renderer.db"},
	}
}

// Load reads a TOML config file, fills in defaults for omitted fields and
// validates the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce frames.
func Validate(cfg Config) error {
	if cfg.Image.Width <= 0 || cfg.Image.Height <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%d", cfg.Image.Width, cfg.Image.Height)
	}
	if cfg.Pool.Slots < 1 {
		return fmt.Errorf("pool needs at least one slot, got %d", cfg.Pool.Slots)
	}
	if cfg.Engine.ModulePath == "" {
		return fmt.Errorf("engine module_path is required")
	}
	if cfg.Engine.TickInterval.Duration <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", cfg.Engine.TickInterval)
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	return nil
}

// FrameBytes is the byte length of one RGBA8 frame at the configured size.
func (c ImageConfig) FrameBytes() int {
	return c.Width * c.Height * 4
}
