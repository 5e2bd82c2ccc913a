package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/waynr/wasm-renderer/internal/frame"
	"github.com/waynr/wasm-renderer/internal/platform/logger"
	"github.com/waynr/wasm-renderer/internal/platform/metrics"
)

func startTestServer(t *testing.T, hub *Hub) (*httptest.Server, string) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		client := NewClient(hub, conn)
		client.Register()
		go client.WritePump()
		go client.ReadPump()
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func TestViewerReceivesHello(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.NewNopLogger(), 64, 48)
	go hub.Run(ctx)

	srv, wsURL := startTestServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading hello: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("hello message type = %d, want text", msgType)
	}

	var hello helloMessage
	if err := json.Unmarshal(payload, &hello); err != nil {
		t.Fatalf("hello is not valid JSON: %v", err)
	}
	if hello.Type != "hello" {
		t.Errorf("hello.Type = %q, want \"hello\"", hello.Type)
	}
	if hello.Width != 64 || hello.Height != 48 {
		t.Errorf("hello geometry = %dx%d, want 64x48", hello.Width, hello.Height)
	}
}

func TestBroadcastReachesViewer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.NewNopLogger(), 2, 2)
	go hub.Run(ctx)

	srv, wsURL := startTestServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("reading hello: %v", err)
	}

	// Wait for the registration to land before broadcasting.
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	pixels := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	hub.BroadcastFrame(pixels)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("frame message type = %d, want binary", msgType)
	}
	if len(payload) != len(pixels) {
		t.Fatalf("frame length = %d, want %d", len(payload), len(pixels))
	}
	for i := range pixels {
		if payload[i] != pixels[i] {
			t.Fatalf("frame byte %d = %d, want %d", i, payload[i], pixels[i])
		}
	}
}

func TestFramePollerBroadcastsPublishedFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.NewNopLogger(), 2, 2)
	go hub.Run(ctx)

	srv, wsURL := startTestServer(t, hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("reading hello: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	pool := frame.NewPool(3, 2, 2)
	defer pool.Close()
	hub.StartFramePoller(ctx, pool, 5*time.Millisecond)

	src := make([]byte, 16)
	for i := range src {
		src[i] = 0xAB
	}
	f, err := pool.AcquireFree()
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	f.CopyFrom(src)
	pool.Publish(f)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading polled frame: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("frame message type = %d, want binary", msgType)
	}
	for i, b := range payload {
		if b != 0xAB {
			t.Fatalf("frame byte %d = %#x, want 0xAB", i, b)
		}
	}
}

func TestDroppedViewerSettlesConnectionGauge(t *testing.T) {
	// A viewer whose send buffer never drains gets dropped by the
	// broadcast loop; the active-connections gauge must not leak, even
	// though the client's own unregister arrives afterwards and finds it
	// already gone.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.NewNopLogger(), 2, 2)
	go hub.Run(ctx)

	// Let straggler disconnects from earlier tests settle before taking
	// the baseline.
	before := atomic.LoadInt64(&metrics.Get().WSConnectionsActive)
	for settle := time.Now().Add(time.Second); time.Now().Before(settle); {
		time.Sleep(50 * time.Millisecond)
		cur := atomic.LoadInt64(&metrics.Get().WSConnectionsActive)
		if cur == before {
			break
		}
		before = cur
	}

	slow := &Client{hub: hub, send: make(chan []byte)} // nobody reads
	hub.register <- slow

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	hub.BroadcastFrame([]byte{1})
	deadline = time.Now().Add(time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was never dropped")
		}
		time.Sleep(time.Millisecond)
	}

	// The late unregister a real ReadPump would issue. Use a sentinel
	// register afterwards to know the hub has processed it.
	hub.unregister <- slow
	sentinel := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- sentinel
	deadline = time.Now().Add(time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("sentinel never registered")
		}
		time.Sleep(time.Millisecond)
	}

	if got := atomic.LoadInt64(&metrics.Get().WSConnectionsActive); got != before+1 {
		t.Errorf("active connections = %d after drop+unregister, want %d (sentinel only)", got, before+1)
	}
}

func TestUnregisterReturnsAfterHubShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.NewNopLogger(), 2, 2)
	go hub.Run(ctx)

	c := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- c

	cancel()
	select {
	case <-hub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub never shut down")
	}

	finished := make(chan struct{})
	go func() {
		c.unregister()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("unregister blocked after hub shutdown")
	}
}

func TestFramePollerBroadcastsEachGenerationOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(logger.NewNopLogger(), 2, 2)
	go hub.Run(ctx)

	pool := frame.NewPool(3, 2, 2)
	defer pool.Close()
	hub.StartFramePoller(ctx, pool, time.Millisecond)

	f, err := pool.AcquireFree()
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	f.CopyFrom(make([]byte, 16))
	pool.Publish(f)

	// With no new publishes the poller must quiesce: the published handle
	// count stays stable instead of being re-cloned every poll.
	time.Sleep(50 * time.Millisecond)
	if gen := pool.Generation(); gen != 1 {
		t.Fatalf("generation = %d, want 1", gen)
	}
	handle := pool.LastPublished()
	if handle == nil {
		t.Fatal("expected a published frame")
	}
	handle.Release()
}
