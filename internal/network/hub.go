// Package network streams published frames to viewer clients over
// WebSocket. The hub's frame poller is an ordinary pool consumer on its own
// goroutine: it clones the published handle, snapshots the bytes and
// releases, the same discipline any external renderer would follow.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/waynr/wasm-renderer/internal/frame"
	"github.com/waynr/wasm-renderer/internal/platform/logger"
	"github.com/waynr/wasm-renderer/internal/platform/metrics"
)

// Hub maintains the set of active viewer clients and broadcasts frames to
// them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	logger     *logger.Logger

	width  int
	height int
}

// NewHub initializes a new viewer hub for frames of the given dimensions.
func NewHub(log *logger.Logger, width, height int) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 8),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     log,
		width:      width,
		height:     height,
	}
}

// Run starts the hub's main loop to handle client connections and
// broadcasts. Call in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("viewer hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("viewer connected: " + client.id)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("viewer disconnected: " + client.id)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.Get().RecordWSFrame()
				default:
					// A viewer that cannot keep up is dropped, never
					// waited on; the producer side is unaffected. The
					// gauge is settled here because the client's own
					// unregister will find it already gone.
					metrics.Get().RecordWSError()
					metrics.Get().RecordWSConnection(-1)
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastFrame queues raw RGBA bytes for delivery to every client. The
// slice must not be mutated after the call.
func (h *Hub) BroadcastFrame(pixels []byte) {
	select {
	case h.broadcast <- pixels:
	default:
		// Broadcast backlog: drop the frame, a newer one is coming.
		metrics.Get().RecordWSError()
	}
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// StartFramePoller spawns a goroutine that watches the pool for newly
// published frames and broadcasts each one once. It holds a handle only for
// the duration of the snapshot copy, so it never starves the producer.
func (h *Hub) StartFramePoller(ctx context.Context, pool *frame.Pool, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastSeen uint64

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				gen := pool.Generation()
				if gen == lastSeen {
					continue
				}
				handle := pool.LastPublished()
				if handle == nil {
					continue
				}
				// Snapshot before release: queued messages must not
				// alias a buffer the producer may reclaim.
				pixels := append([]byte(nil), handle.Bytes()...)
				handle.Release()
				lastSeen = gen

				h.BroadcastFrame(pixels)
			}
		}
	}()
}
