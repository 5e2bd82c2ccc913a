package network

import (
	"image"
	"image/png"
	"net/http"

	"github.com/waynr/wasm-renderer/internal/frame"
)

// ServeFramePNG returns a handler that encodes the last published frame as
// a PNG. It answers 404 until the first frame has been published.
func ServeFramePNG(pool *frame.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		handle := pool.LastPublished()
		if handle == nil {
			http.Error(w, "No frame published yet", http.StatusNotFound)
			return
		}
		defer handle.Release()

		img := image.NewRGBA(image.Rect(0, 0, handle.Width(), handle.Height()))
		copy(img.Pix, handle.Bytes())

		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, img); err != nil {
			// Connection likely gone; nothing sensible to report to it.
			return
		}
	}
}
