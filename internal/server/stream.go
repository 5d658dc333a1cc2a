package server

import (
	"fmt"
	"net/http"
	"time"
)

// framePeriod paces the preview to about 15 frames per second.
const framePeriod = 66 * time.Millisecond

// PreviewSource provides JPEG snapshots of the camera.
type PreviewSource interface {
	Watch() (release func())
	Preview() []byte
}

// StreamHandler serves the camera preview as MJPEG.
type StreamHandler struct {
	src PreviewSource
}

// NewStreamHandler creates a new StreamHandler over src.
func NewStreamHandler(src PreviewSource) *StreamHandler {
	return &StreamHandler{src: src}
}

// ServeHTTP streams frames until the client disconnects. Identical
// consecutive snapshots are sent once.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	release := h.src.Watch()
	defer release()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(framePeriod)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpeg := h.src.Preview()
		if len(jpeg) == 0 || (len(last) > 0 && &jpeg[0] == &last[0]) {
			continue
		}
		last = jpeg

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
