package testidp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// writeJSON writes v with the no-store headers every response carries.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeData(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// writeError writes a failure envelope. An empty message uses the default
// message for code.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	if message == "" {
		message = apierr.DefaultMessage(code)
	}
	writeJSON(w, status, envelope{
		Success:   false,
		Error:     &errorBody{Code: code, Message: message, Details: details},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// decodeBody decodes a JSON request body into v. An empty body is accepted.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
