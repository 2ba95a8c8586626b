package authsdk

import (
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/aussiebroadwan/trustkit/pkg/cryptox"
	"github.com/aussiebroadwan/trustkit/pkg/jwtx"
	"github.com/aussiebroadwan/trustkit/pkg/slogx"
	"github.com/aussiebroadwan/trustkit/pkg/transport"
)

// TokenListener is called with the new pair after every token change.
type TokenListener func(TokenPair)

// Option configures a Session.
type Option func(*Session)

// WithCatalog replaces the default endpoint catalog.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Session) { s.catalog = c }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithClock overrides the time source used for expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithTokens seeds the session with a previously stored pair.
func WithTokens(p TokenPair) Option {
	return func(s *Session) {
		s.tokens = p
		if exp, ok := jwtx.ExpiresAt(p.Access); ok {
			s.expiresAt = exp
		}
	}
}

// Session owns one user's token pair and performs authenticated calls.
type Session struct {
	client  transport.Client
	catalog catalog.Catalog
	log     *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	tokens    TokenPair
	expiresAt time.Time

	listenersMu sync.Mutex
	listeners   []TokenListener
}

// NewSession creates a Session with an empty token pair unless WithTokens
// is given.
func NewSession(client transport.Client, opts ...Option) *Session {
	s := &Session{
		client:  client,
		catalog: catalog.Default(),
		log:     slogx.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens returns a snapshot of the current pair.
func (s *Session) Tokens() TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// AccessToken returns the current access token, or "" when logged out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Access
}

// Authenticated reports whether an access token is held.
func (s *Session) Authenticated() bool {
	return s.AccessToken() != ""
}

// ExpiresAt returns when the access token expires, zero if unknown.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Expired reports whether the access token is known to expire within
// leeway. A token with unknown expiry is never reported as expired.
func (s *Session) Expired(leeway time.Duration) bool {
	exp := s.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return !s.now().Before(exp.Add(-leeway))
}

// OnTokenChange registers fn. Listeners run synchronously, in registration
// order, before the method that changed the tokens returns.
func (s *Session) OnTokenChange(fn TokenListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Invalidate clears the pair locally without contacting the service.
func (s *Session) Invalidate() {
	s.clearTokens("invalidate")
}

func (s *Session) setTokens(pair TokenPair, expiresAt time.Time, reason string) {
	s.mu.Lock()
	s.tokens = pair
	s.expiresAt = expiresAt
	s.mu.Unlock()

	s.log.Info("session tokens updated",
		"reason", reason,
		"access_fp", cryptox.Fingerprint(pair.Access),
		"expires_at", expiresAt,
	)
	s.notify(pair)
}

func (s *Session) clearTokens(reason string) {
	s.mu.Lock()
	wasSet := !s.tokens.IsZero()
	s.tokens = TokenPair{}
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if wasSet {
		s.log.Info("session tokens cleared", "reason", reason)
	}
	s.notify(TokenPair{})
}

func (s *Session) notify(pair TokenPair) {
	s.listenersMu.Lock()
	listeners := append([]TokenListener(nil), s.listeners...)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(pair)
	}
}

// expiry prefers the server's expires_in and falls back to the token's own
// exp claim.
func (s *Session) expiry(resp authResponse) time.Time {
	if resp.ExpiresIn > 0 {
		return s.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if exp, ok := jwtx.ExpiresAt(resp.Token); ok {
		return exp
	}
	return time.Time{}
}
