package httpserver

import (
	"errors"
	"io"
	"net/http"
	"time"
)

const streamStatusTrailer = "X-Stream-Status"

// streamWriter forwards interview chunks to the client as a chunked text/plain body.
// Headers are committed on the first chunk so a failure before that can still be a JSON error.
type streamWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	broken  bool
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	return &streamWriter{w: w, rc: http.NewResponseController(w)}
}

func (sw *streamWriter) Begin(sessionID string) {
	if !sw.started {
		sw.w.Header().Set("X-Session-Id", sessionID)
	}
}

func (sw *streamWriter) WriteChunk(chunk string) error {
	if sw.broken {
		return errClientGone
	}
	if !sw.started {
		h := sw.w.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		h.Set("Trailer", streamStatusTrailer)
		// The server write timeout would otherwise cut long streams.
		if err := sw.rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			sw.broken = true
			return err
		}
		sw.w.WriteHeader(http.StatusOK)
		sw.started = true
	}
	if _, err := io.WriteString(sw.w, chunk); err != nil {
		sw.broken = true
		return err
	}
	if err := sw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		sw.broken = true
		return err
	}
	return nil
}

// finish reports the outcome. Once the body has started the status goes in the trailer,
// otherwise err (if any) is written as a regular JSON error.
func (sw *streamWriter) finish(r *http.Request, err error) {
	if sw.started {
		status := "ok"
		if err != nil {
			status = "error"
			LoggerFrom(r).Warn("interview stream ended with error", "error", err)
		}
		sw.w.Header().Set(streamStatusTrailer, status)
		return
	}
	if err != nil {
		writeError(sw.w, r, err, nil)
		return
	}
	// A turn that produced no text still needs a complete response.
	sw.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	sw.w.Header().Set(streamStatusTrailer, "ok")
	sw.w.WriteHeader(http.StatusOK)
}

var errClientGone = errors.New("client connection lost")
