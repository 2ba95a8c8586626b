package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/aussiebroadwan/trustkit/pkg/cryptox"
	"github.com/aussiebroadwan/trustkit/pkg/idx"
	"github.com/aussiebroadwan/trustkit/pkg/slogx"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.favotrust.com"

	// DefaultTimeoutMS is the whole-call budget for ordinary requests.
	DefaultTimeoutMS = 30000

	// UploadTimeout is the budget used for document uploads.
	UploadTimeout = 60 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 10 << 20
)

// Config configures an HTTPClient. Zero values select defaults.
type Config struct {
	BaseURL string
	APIKey  string

	// TimeoutMS is the per-call budget in milliseconds
	TimeoutMS int

	// SigningSecret enables the signature/timestamp header pair when set
	SigningSecret string

	// RequestsPerSecond enables a client-side limiter when positive
	RequestsPerSecond float64
	Burst             int

	Headers    catalog.Headers
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTTPClient is the net/http implementation of Client. It holds no
// per-user state and is safe for concurrent use.
type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	headers catalog.Headers
	http    *http.Client
	signer  *cryptox.Signer
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewHTTPClient creates an HTTPClient from cfg.
func NewHTTPClient(cfg Config) *HTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	log := cfg.Logger
	if log == nil {
		log = slogx.Discard()
	}

	headers := cfg.Headers
	if headers == (catalog.Headers{}) {
		headers = catalog.DefaultHeaders()
	}

	timeoutMS := cfg.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = DefaultTimeoutMS
	}

	// Copy so the caller's client is left untouched. Deadlines are applied
	// per call from the context so uploads can use a longer budget.
	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		*hc = *cfg.HTTPClient
	}
	hc.Transport = slogx.NewTransport(hc.Transport, log)
	hc.Timeout = 0

	c := &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: time.Duration(timeoutMS) * time.Millisecond,
		headers: headers,
		http:    hc,
		log:     log,
	}

	if cfg.SigningSecret != "" {
		c.signer = cryptox.NewSigner(cfg.SigningSecret)
	}

	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	return c
}

// Headers returns the header names this client sends.
func (c *HTTPClient) Headers() catalog.Headers {
	return c.headers
}

// Send performs req. See Client.
func (c *HTTPClient) Send(ctx context.Context, req Request) (*Response, error) {
	fail := func(status int, body []byte, err error) (*Response, error) {
		return nil, &Failure{Method: req.Method, Path: req.Path, StatusCode: status, Body: body, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fail(0, nil, fmt.Errorf("rate limiter: %w", err))
		}
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return fail(0, nil, err)
	}

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqID := idx.New().String()
	ctx = slogx.WithRequestID(ctx, reqID, c.log)

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(body))
	if err != nil {
		return fail(0, nil, fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set(c.headers.Accept, catalog.ContentTypeJSON)
	httpReq.Header.Set(c.headers.RequestID, reqID)
	if contentType != "" {
		httpReq.Header.Set(c.headers.ContentType, contentType)
	}
	if c.apiKey != "" {
		httpReq.Header.Set(c.headers.APIKey, c.apiKey)
	}
	if c.signer != nil {
		ts, sig := c.signer.Sign(req.Method, req.Path, body)
		httpReq.Header.Set(c.headers.Timestamp, ts)
		httpReq.Header.Set(c.headers.Signature, sig)
	}
	if req.Bearer != "" {
		httpReq.Header.Set(c.headers.Authorization, "Bearer "+req.Bearer)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fail(0, nil, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(0, nil, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(resp.StatusCode, respBody, nil)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// encodeBody renders the request body and returns its content type.
func encodeBody(req Request) ([]byte, string, error) {
	if len(req.Files) > 0 {
		return encodeMultipart(req.Fields, req.Files)
	}

	if req.Body == nil {
		return nil, "", nil
	}

	body, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, catalog.ContentTypeJSON, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(fields map[string]string, files []File) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %q: %w", name, err)
		}
	}

	for _, f := range files {
		if f.Content == nil {
			return nil, "", fmt.Errorf("file %q has no content", f.Field)
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Name)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create part %q: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("failed to copy file %q: %w", f.Field, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
