// Package testidp is an in-memory fake of the identity service. It speaks
// the same response envelope and error codes as the real service and lets
// tests inspect what the SDK sent and steer failures.
package testidp

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/cryptox"
	"github.com/aussiebroadwan/trustkit/pkg/slogx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

const (
	// ConfirmCode is the only code accepted by the confirm endpoint.
	ConfirmCode = "123456"

	// MaxAttempts is the number of confirmations after which a pending
	// verification is rejected.
	MaxAttempts = 5

	issuer = "testidp"
)

// Option configures a Server.
type Option func(*Server)

// WithAPIKey makes the server require the X-API-Key header.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithSigningSecret makes the server require signed requests.
func WithSigningSecret(secret string) Option {
	return func(s *Server) { s.signer = cryptox.NewSigner(secret) }
}

// WithRateLimit limits each client address to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = &rateLimiter{rate: rate.Limit(rps), burst: burst}
	}
}

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// WithVerificationTTL sets how long a started verification stays pending.
func WithVerificationTTL(d time.Duration) Option {
	return func(s *Server) { s.verificationTTL = d }
}

// WithRequirements sets the verification types the requirements endpoint
// reports as required.
func WithRequirements(types ...string) Option {
	return func(s *Server) { s.required = types }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server is a running fake identity service.
type Server struct {
	*httptest.Server

	log             *slog.Logger
	key             []byte
	apiKey          string
	signer          *cryptox.Signer
	limiter         *rateLimiter
	accessTTL       time.Duration
	verificationTTL time.Duration
	required        []string

	mu            sync.Mutex
	offset        time.Duration
	users         map[string]*user
	refresh       map[string]refreshGrant
	revoked       map[string]bool
	verifications map[string]*Verification
	requests      []Request
	failRefresh   bool
	failLogout    bool
}

// New starts a server that is closed when t finishes.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	key := make([]byte, 32)
	_, _ = rand.Read(key)

	s := &Server{
		log:             slogx.Discard(),
		key:             key,
		accessTTL:       time.Hour,
		verificationTTL: 15 * time.Minute,
		required:        []string{"email", "phone"},
		users:           make(map[string]*user),
		refresh:         make(map[string]refreshGrant),
		revoked:         make(map[string]bool),
		verifications:   make(map[string]*Verification),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record, s.requireAPIKey, s.verifySignature, s.rateLimit)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/telegram", s.handleTelegramLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/users", s.handleCreateUser)

	r.Group(func(r chi.Router) {
		r.Use(s.authn)

		r.Post("/auth/logout", s.handleLogout)
		r.Get("/users/me", s.handleMe)
		r.Get("/users/{user_id}/verifications", s.handleListVerifications)
		r.Get("/users/{user_id}/verification-requirements", s.handleRequirements)

		r.Route("/verification", func(r chi.Router) {
			r.Post("/start", s.handleStart)
			r.Get("/{id}", s.handleGet)
			r.Put("/{id}", s.handleUpdate)
			r.Get("/{id}/status", s.handleStatus)
			r.Post("/{id}/confirm", s.handleConfirm)
			r.Post("/{id}/documents", s.handleDocuments)
			r.Post("/{id}/cancel", s.handleCancel)
		})
	})

	return r
}

// Now returns the server clock.
func (s *Server) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Add(s.offset).UTC()
}

// Advance moves the server clock forward by d.
func (s *Server) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset += d
}

// FailRefresh makes the refresh endpoint reject every token while set.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// FailLogout makes the logout endpoint answer with a system error while set.
func (s *Server) FailLogout(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogout = fail
}

// Requests returns every request seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the requests whose path equals path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// LastRequest returns the most recent request.
func (s *Server) LastRequest() (Request, bool) {
	reqs := s.Requests()
	if len(reqs) == 0 {
		return Request{}, false
	}
	return reqs[len(reqs)-1], true
}
