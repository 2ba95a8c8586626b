// Package transport performs the HTTP calls made by the SDK. It knows how to
// attach credentials, encode JSON and multipart bodies, sign requests and
// unwrap the service's response envelope, but nothing about sessions or
// verification state.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client sends a single request to the identity service.
//
// Non-2xx responses and connectivity problems are both returned as *Failure;
// Failure.StatusCode tells them apart.
type Client interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

func (f ClientFunc) Send(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Request describes one call. Body is JSON encoded when set; when Files is
// non-empty the request is sent as multipart/form-data with Fields as plain
// form values and Body is ignored.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Files   []File
	Fields  map[string]string
	Headers map[string]string

	// Bearer is sent as the bearer credential when non-empty
	Bearer string

	// Timeout overrides the client timeout for this call when positive
	Timeout time.Duration
}

// File is one part of a multipart upload.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// Response is a completed 2xx response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Failure is returned for every unsuccessful call.
type Failure struct {
	Method string
	Path   string

	// StatusCode is 0 when no response was received
	StatusCode int
	Body       []byte
	Err        error
}

func (f *Failure) Error() string {
	if f.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", f.Method, f.Path, f.Err)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s %s: status %d: %v", f.Method, f.Path, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("%s %s: status %d", f.Method, f.Path, f.StatusCode)
}

func (f *Failure) Unwrap() error { return f.Err }

// HTTPStatus returns the response status, or 0 for connectivity failures.
func (f *Failure) HTTPStatus() int { return f.StatusCode }

// Payload returns the raw response body, if any.
func (f *Failure) Payload() []byte { return f.Body }

// Connectivity reports whether the failure happened before a response arrived.
func (f *Failure) Connectivity() bool { return f.StatusCode == 0 }
