package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/trustkit/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, slogx.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, slogx.ParseLevel("warning"))
	require.Equal(t, slog.LevelError, slogx.ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, slogx.ParseLevel("nonsense"))
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := slogx.New(slogx.Config{Service: "trustctl", Env: "test", Level: "info", Output: &buf})

	log.Info("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.Equal(t, "trustctl", rec["service"])
	require.Equal(t, "v", rec["k"])
}

func TestFromContext(t *testing.T) {
	fallback := slogx.Discard()
	require.Same(t, fallback, slogx.FromContext(context.Background(), fallback))

	attached := slogx.Discard()
	ctx := slogx.WithContext(context.Background(), attached)
	require.Same(t, attached, slogx.FromContext(ctx, fallback))
}

func TestTransportLogsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	log := slogx.New(slogx.Config{Level: "debug", Format: "text", Output: &buf})
	client := &http.Client{Transport: slogx.NewTransport(nil, log)}

	req, err := http.NewRequestWithContext(
		slogx.WithRequestID(context.Background(), "req-1", log),
		http.MethodGet, srv.URL+"/ping", nil,
	)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	out := buf.String()
	require.Contains(t, out, "http_request")
	require.Contains(t, out, "status=418")
	require.Contains(t, out, "path=/ping")
	require.Contains(t, out, "req_id=req-1")
}
