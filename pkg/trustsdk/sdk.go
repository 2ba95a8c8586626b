// Package trustsdk bundles an authentication session and a verification
// workflow that share one transport and one access token.
//
//	sdk := trustsdk.New(trustsdk.Config{APIKey: key})
//
//	if _, err := sdk.Auth.Login(ctx, authsdk.Credentials{Username: u, Password: p}); err != nil {
//		return err
//	}
//
//	// The workflow already carries the new token.
//	v, err := sdk.Verification.Start(ctx, verifysdk.TypeEmail, verifysdk.EmailData{Email: addr}, nil)
package trustsdk

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/authsdk"
	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/aussiebroadwan/trustkit/pkg/slogx"
	"github.com/aussiebroadwan/trustkit/pkg/transport"
	"github.com/aussiebroadwan/trustkit/pkg/verifysdk"
)

// Config configures an SDK. Zero values select defaults.
type Config struct {
	BaseURL string
	APIKey  string

	// TimeoutMS is the per-call budget in milliseconds
	TimeoutMS int

	// AuthToken seeds the verification workflow, e.g. a token obtained
	// elsewhere
	AuthToken string

	// Tokens restores a previously stored session pair. It takes precedence
	// over AuthToken.
	Tokens authsdk.TokenPair

	SigningSecret     string
	RequestsPerSecond float64
	Burst             int

	Catalog    catalog.Catalog
	Headers    catalog.Headers
	HTTPClient *http.Client
	Logger     *slog.Logger

	// Clock overrides the time source for expiry checks
	Clock func() time.Time
}

// SDK holds one Session and one Workflow. Every token change made by Auth is
// copied to Verification before the changing call returns.
type SDK struct {
	Auth         *authsdk.Session
	Verification *verifysdk.Workflow

	transport *transport.HTTPClient
}

// New builds an SDK over a fresh HTTP transport.
func New(cfg Config) *SDK {
	log := cfg.Logger
	if log == nil {
		log = slogx.Discard()
	}

	client := transport.NewHTTPClient(transport.Config{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		TimeoutMS:         cfg.TimeoutMS,
		SigningSecret:     cfg.SigningSecret,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Headers:           cfg.Headers,
		HTTPClient:        cfg.HTTPClient,
		Logger:            log,
	})

	sdk := NewWithClient(client, cfg)
	sdk.transport = client
	return sdk
}

// NewWithClient builds an SDK over an existing transport. Only the session,
// workflow and token fields of cfg are used.
func NewWithClient(client transport.Client, cfg Config) *SDK {
	log := cfg.Logger
	if log == nil {
		log = slogx.Discard()
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	authOpts := []authsdk.Option{
		authsdk.WithCatalog(cat),
		authsdk.WithLogger(log.With("component", "auth")),
	}
	verifyOpts := []verifysdk.Option{
		verifysdk.WithCatalog(cat),
		verifysdk.WithLogger(log.With("component", "verification")),
	}
	if cfg.Clock != nil {
		authOpts = append(authOpts, authsdk.WithClock(cfg.Clock))
		verifyOpts = append(verifyOpts, verifysdk.WithClock(cfg.Clock))
	}

	token := cfg.AuthToken
	if !cfg.Tokens.IsZero() {
		authOpts = append(authOpts, authsdk.WithTokens(cfg.Tokens))
		token = cfg.Tokens.Access
	}
	verifyOpts = append(verifyOpts, verifysdk.WithAuthToken(token))

	sdk := &SDK{
		Auth:         authsdk.NewSession(client, authOpts...),
		Verification: verifysdk.NewWorkflow(client, verifyOpts...),
	}

	sdk.Auth.OnTokenChange(func(pair authsdk.TokenPair) {
		sdk.Verification.SetAuthToken(pair.Access)
	})
	return sdk
}

// UpdateAuthToken points the verification workflow at token without
// touching the session pair. Use it for tokens obtained outside Auth.
func (s *SDK) UpdateAuthToken(token string) {
	s.Verification.SetAuthToken(token)
}

// Transport returns the HTTP transport built by New, or nil for an SDK built
// with NewWithClient.
func (s *SDK) Transport() *transport.HTTPClient {
	return s.transport
}
