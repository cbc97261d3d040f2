package http

import (
	"fmt"
	"net/http"
)

// ResponseWriter wraps http.ResponseWriter to capture the status code and the
// number of bytes written.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	BytesSent  int

	wroteHeader bool
}

// WrapResponseWriter returns w itself when it already is a *ResponseWriter.
func WrapResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}

	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK, // This is default if no response code is written
		BytesSent:      0,
		wroteHeader:    false,
	}
}

func (w *ResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}

	w.wroteHeader = true
	w.StatusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	w.BytesSent += len(b)

	n, err := w.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	return n, nil
}

// WroteHeader reports whether a status or body has been sent.
func (w *ResponseWriter) WroteHeader() bool {
	return w.wroteHeader
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
