package request

import "net/http"

// ClientWriter wraps an http.ResponseWriter and records the status code that
// was written, for request metrics.
type ClientWriter struct {
	http.ResponseWriter

	// statusCode is the status code that was written. Defaults to 200 as the
	// standard library writes that implicitly on first write.
	statusCode int
}

// NewClientWriter creates a new ClientWriter.
func NewClientWriter(w http.ResponseWriter) *ClientWriter {
	return &ClientWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader implements the http.ResponseWriter interface.
func (w *ClientWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// StatusCode returns the status code that was written.
func (w *ClientWriter) StatusCode() int {
	return w.statusCode
}
