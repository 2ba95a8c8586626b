package testidp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// Request is one call observed by the server.
type Request struct {
	Method        string
	Path          string
	Authorization string
	APIKey        string
	RequestID     string
}

// record keeps every request for later assertions.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			APIKey:        r.Header.Get("X-API-Key"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-API-Key") != s.apiKey {
			s.writeError(w, http.StatusUnauthorized, apierr.CodeInvalidToken, "invalid api key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// verifySignature checks the timestamp/signature header pair when a signing
// secret is configured.
func (s *Server) verifySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.signer == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "unreadable body", nil)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		ts := r.Header.Get("X-Timestamp")
		sig := r.Header.Get("X-Signature")
		if ts == "" || !s.signer.Verify(ts, r.Method, r.URL.Path, body, sig) {
			s.writeError(w, http.StatusUnauthorized, apierr.CodeInvalidToken, "invalid request signature", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authn requires a bearer token signed by this server that has not expired
// and whose session was not logged out.
func (s *Server) authn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, apierr.CodeInvalidToken, "missing bearer token", nil)
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

		claims, err := s.verify(raw)
		if err != nil {
			code := apierr.CodeInvalidToken
			if errors.Is(err, jwtx.ErrExpired) {
				code = apierr.CodeTokenExpired
			}
			s.log.Warn("bearer rejected", "err", err)
			s.writeError(w, http.StatusUnauthorized, code, "", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithAuth(r.Context(), claims)))
	})
}

func (s *Server) verify(raw string) (*jwtx.Claims, error) {
	var claims jwtx.Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	// Expiry is checked against the server clock so tests can move time.
	if err := claims.ValidateExpiryWithLeeway(s.Now(), 0); err != nil {
		return nil, err
	}

	s.mu.Lock()
	revoked := s.revoked[claims.SID]
	s.mu.Unlock()
	if revoked {
		return nil, errors.New("session revoked")
	}
	return &claims, nil
}

// rateLimiter hands out one token bucket per client address.
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.rate, rl.burst))
	return actual.(*rate.Limiter)
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		limiter := s.limiter.getLimiter(clientIP(r))
		if !limiter.Allow() {
			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()

			w.Header().Set("Retry-After", fmt.Sprintf("%d", max(int(delay.Seconds()), 1)))
			s.writeError(w, http.StatusTooManyRequests, apierr.CodeRateLimitExceeded, "", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
