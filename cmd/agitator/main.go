// Package main - agitator
// Load generator for the viewer surface. Connects many concurrent
// WebSocket viewers and measures the frame delivery rate each one sees.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config for the agitator
type Config struct {
	ServerURL    string
	NumViewers   int
	TestDuration time.Duration
}

// Stats tracks delivery metrics across all viewers
type Stats struct {
	FramesReceived int64
	BytesReceived  int64
	Hellos         int64
	Errors         int64
	Gaps           []time.Duration
	mu             sync.Mutex
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numViewers := flag.Int("viewers", 50, "Number of concurrent viewers")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	flag.Parse()

	config := Config{
		ServerURL:    *serverURL,
		NumViewers:   *numViewers,
		TestDuration: *duration,
	}

	fmt.Println("=========================================")
	fmt.Println("AGITATOR - Viewer Load Test")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("Viewers:  %d\n", config.NumViewers)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := runLoadTest(ctx, config)
	printResults(stats, config)
}

func runLoadTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Gaps: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\nStarting viewers...")

	for i := 0; i < config.NumViewers; i++ {
		wg.Add(1)
		go func(viewerID int) {
			defer wg.Done()
			runViewer(ctx, viewerID, config, stats)
		}(i)

		// Stagger connections to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("All %d viewers started\n\n", config.NumViewers)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				frames := atomic.LoadInt64(&stats.FramesReceived)
				bytes := atomic.LoadInt64(&stats.BytesReceived)
				errs := atomic.LoadInt64(&stats.Errors)
				fmt.Printf("Progress: Frames=%d Bytes=%d Errors=%d\n", frames, bytes, errs)
			}
		}
	}()

	wg.Wait()
	return stats
}

func runViewer(ctx context.Context, viewerID int, config Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("Viewer %d: connection failed: %v", viewerID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var lastFrame time.Time

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddInt64(&stats.Errors, 1)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			// The hello carries the frame geometry; count it so a run
			// with zero frames still proves the handshake worked.
			atomic.AddInt64(&stats.Hellos, 1)
		case websocket.BinaryMessage:
			now := time.Now()
			atomic.AddInt64(&stats.FramesReceived, 1)
			atomic.AddInt64(&stats.BytesReceived, int64(len(payload)))
			if !lastFrame.IsZero() {
				stats.mu.Lock()
				stats.Gaps = append(stats.Gaps, now.Sub(lastFrame))
				stats.mu.Unlock()
			}
			lastFrame = now
		}
	}
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println("=========================================")

	frames := atomic.LoadInt64(&stats.FramesReceived)
	bytes := atomic.LoadInt64(&stats.BytesReceived)
	hellos := atomic.LoadInt64(&stats.Hellos)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Hellos Received:   %d\n", hellos)
	fmt.Printf("Frames Received:   %d\n", frames)
	fmt.Printf("Bytes Received:    %d\n", bytes)
	fmt.Printf("Errors:            %d\n", errs)

	perViewer := float64(frames) / float64(config.NumViewers) / config.TestDuration.Seconds()
	fmt.Printf("Frame Rate:        %.2f frames/sec per viewer\n", perViewer)

	// Inter-frame gap stats
	if len(stats.Gaps) > 0 {
		var total time.Duration
		var min, max time.Duration = stats.Gaps[0], stats.Gaps[0]

		for _, g := range stats.Gaps {
			total += g
			if g < min {
				min = g
			}
			if g > max {
				max = g
			}
		}

		avg := total / time.Duration(len(stats.Gaps))

		fmt.Printf("\nInter-frame gap:\n")
		fmt.Printf("  Min: %v\n", min)
		fmt.Printf("  Avg: %v\n", avg)
		fmt.Printf("  Max: %v\n", max)
	}

	fmt.Println("\n-----------------------------------------")
	if errs == 0 && hellos == int64(config.NumViewers) {
		fmt.Println("TEST PASSED: all viewers connected and stayed up")
	} else if float64(errs)/float64(config.NumViewers) < 0.05 {
		fmt.Println("TEST WARNING: some viewers dropped")
	} else {
		fmt.Println("TEST FAILED: high error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"hellos":          hellos,
		"frames_received": frames,
		"bytes_received":  bytes,
		"errors":          errs,
		"frame_rate":      perViewer,
		"config": map[string]interface{}{
			"viewers":  config.NumViewers,
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	os.WriteFile("load_test_results.json", jsonData, 0644)
	fmt.Println("\nResults saved to load_test_results.json")
}
