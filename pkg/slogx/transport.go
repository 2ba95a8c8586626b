package slogx

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs every outgoing request at
// debug level. It uses the logger attached to the request context when
// present and Logger otherwise.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := FromContext(req.Context(), t.Logger).With(
		"method", req.Method,
		"path", req.URL.Path,
	)

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Debug("http_request_failed", "duration_ms", duration, "error", err)
		return nil, err
	}

	log.Debug("http_request", "status", resp.StatusCode, "duration_ms", duration)
	return resp, nil
}
