// Package main is the entry point for the wasm renderer server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/waynr/wasm-renderer/internal/driver"
	"github.com/waynr/wasm-renderer/internal/engine"
	"github.com/waynr/wasm-renderer/internal/events"
	"github.com/waynr/wasm-renderer/internal/frame"
	"github.com/waynr/wasm-renderer/internal/infra/storage"
	"github.com/waynr/wasm-renderer/internal/network"
	"github.com/waynr/wasm-renderer/internal/platform/config"
	"github.com/waynr/wasm-renderer/internal/platform/logger"
	"github.com/waynr/wasm-renderer/internal/platform/metrics"
	"github.com/waynr/wasm-renderer/internal/platform/optimization"
)

// sqlitePersisterAdapter translates tick events to storage records.
type sqlitePersisterAdapter struct {
	repo  storage.TickRepository
	runID string
}

func (a *sqlitePersisterAdapter) Append(event events.TickEvent) error {
	record := storage.TickRecord{
		ID:         event.ID,
		RunID:      a.runID,
		Number:     event.Number,
		Timestamp:  event.Timestamp,
		DurationNS: event.Duration.Nanoseconds(),
		Status:     string(event.Status),
		Detail:     event.Detail,
		Bytes:      event.Bytes,
	}
	return a.repo.Append(context.Background(), record)
}

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	runID := flag.String("run", "default", "Run identifier for the tick ledger")
	flag.Parse()

	appLogger := logger.NewLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.Error("Failed to load configuration", err)
		os.Exit(1)
	}

	width := cfg.Image.Width
	height := cfg.Image.Height
	interval := cfg.Engine.TickInterval.Duration

	appLogger.Info("Initializing SQLite tick ledger " + cfg.Storage.Path)
	db, err := storage.InitSQLite(cfg.Storage.Path)
	if err != nil {
		appLogger.Error("Failed to initialize SQLite", err)
		os.Exit(1)
	}
	defer db.Close()

	tickRepo := storage.NewSQLiteTickRepository(db)
	tickLog := events.NewLog(&sqlitePersisterAdapter{repo: tickRepo, runID: *runID})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("Instantiating wasm module " + cfg.Engine.ModulePath)
	eng, err := engine.LoadFile(ctx, cfg.Engine.ModulePath)
	if err != nil {
		appLogger.Error("Failed to instantiate wasm module", err)
		os.Exit(1)
	}
	defer eng.Close(ctx)

	pool := frame.NewPool(cfg.Pool.Slots, width, height)
	defer pool.Close()

	drv := driver.New(eng, pool, width, height, interval, appLogger, tickLog)

	// An image that cannot fit in engine memory is a fatal configuration
	// error, not a tick-local one.
	if err := drv.Prepare(); err != nil {
		appLogger.Error("Failed to size engine memory", err)
		os.Exit(1)
	}

	// Resume the tick counter where the previous run left off.
	lastTick, err := tickRepo.LastTickNumber(ctx, *runID)
	if err != nil {
		appLogger.Error("Failed to query tick ledger", err)
		os.Exit(1)
	}
	if lastTick > 0 {
		drv.SetTickNumber(lastTick)
		appLogger.Info("Restored tick counter from ledger")
	}

	// Start blocks in the tick loop until Stop or context cancellation.
	go func() {
		if err := drv.Start(ctx); err != nil {
			appLogger.Error("Driver exited", err)
		}
	}()
	defer drv.Stop()

	appLogger.Info("Bootstrapping viewer hub")
	hub := network.NewHub(appLogger, width, height)
	go hub.Run(ctx)
	hub.StartFramePoller(ctx, pool, interval/2)

	summarizer := storage.NewSummarizer(tickRepo)
	historyHandler := network.NewHistoryHandler(tickLog, summarizer, *runID, appLogger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r, appLogger)
	})
	mux.HandleFunc("/frame.png", network.ServeFramePNG(pool))
	mux.HandleFunc("/metrics", metrics.Handler())
	mux.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())
	mux.HandleFunc("/api/tuning", optimization.Handler())
	historyHandler.RegisterRoutes(mux)

	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		appLogger.Info("HTTP API & WS server listening on " + cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", err)
			os.Exit(1)
		}
	}()

	appLogger.Info("Renderer running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down")
	server.Shutdown(ctx)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow cross-origin requests for the dev viewer
	},
}

// serveWs handles websocket requests from the peer.
func serveWs(hub *network.Hub, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade websocket connection", err)
		return
	}

	client := network.NewClient(hub, conn)
	client.Register()

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}
