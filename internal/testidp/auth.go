package testidp

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/cryptox"
	"github.com/aussiebroadwan/trustkit/pkg/idx"
	"github.com/aussiebroadwan/trustkit/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
)

type user struct {
	ID         string    `json:"id"`
	TelegramID int64     `json:"telegram_id,omitempty"`
	Username   string    `json:"username"`
	Status     string    `json:"status"`
	TrustLevel string    `json:"trust_level"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	password   string
	totpSecret string
}

type refreshGrant struct {
	userID string
	sid    string
}

type authResponse struct {
	User         user   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AddUser registers a password user and returns its ID.
func (s *Server) AddUser(username, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, password, 0).ID
}

// AddUserWithTOTP registers a password user with a TOTP second factor and
// returns its ID and base32 secret.
func (s *Server) AddUserWithTOTP(username, password string) (id, secret string) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: username})
	if err != nil {
		panic(fmt.Sprintf("testidp: generate totp key: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.addUserLocked(username, password, 0)
	u.totpSecret = key.Secret()
	return u.ID, u.totpSecret
}

func (s *Server) nowLocked() time.Time {
	return time.Now().Add(s.offset).UTC()
}

func (s *Server) addUserLocked(username, password string, telegramID int64) *user {
	now := s.nowLocked()
	u := &user{
		ID:         idx.NewAt(now).String(),
		TelegramID: telegramID,
		Username:   username,
		Status:     "active",
		TrustLevel: "BASIC",
		Role:       "user",
		CreatedAt:  now,
		UpdatedAt:  now,
		password:   password,
	}
	s.users[u.ID] = u
	return u
}

func (s *Server) findUserLocked(match func(*user) bool) *user {
	for _, u := range s.users {
		if match(u) {
			return u
		}
	}
	return nil
}

// issueLocked mints an access token and a fresh refresh token for u.
func (s *Server) issueLocked(u *user) (authResponse, error) {
	now := s.nowLocked()
	claims := jwtx.NewAccessClaims(u.ID, u.Username, s.accessTTL, issuer, now)
	claims.SID = idx.NewAt(now).String()

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return authResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return authResponse{}, err
	}
	s.refresh[refresh] = refreshGrant{userID: u.ID, sid: claims.SID}

	return authResponse{
		User:         *u,
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		TOTPCode string `json:"totp_code"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.findUserLocked(func(u *user) bool { return u.Username == req.Username })
	if u == nil || subtle.ConstantTimeCompare([]byte(u.password), []byte(req.Password)) != 1 {
		s.writeError(w, http.StatusUnauthorized, apierr.CodeInvalidCredentials, "", nil)
		return
	}

	if u.totpSecret != "" && (req.TOTPCode == "" || !totp.Validate(req.TOTPCode, u.totpSecret)) {
		s.writeError(w, http.StatusUnauthorized, apierr.CodeInvalid2FA, "", nil)
		return
	}

	s.respondIssued(w, u)
}

func (s *Server) handleTelegramLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID int64  `json:"telegram_id"`
		Username   string `json:"username"`
	}
	if err := decodeBody(r, &req); err != nil || req.TelegramID <= 0 {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.findUserLocked(func(u *user) bool { return u.TelegramID == req.TelegramID })
	if u == nil {
		u = s.addUserLocked(req.Username, "", req.TelegramID)
	}

	s.respondIssued(w, u)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apierr.CodeInvalidFormat, "", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.refresh[req.RefreshToken]
	if s.failRefresh || !ok {
		s.writeError(w, http.StatusUnauthorized, apierr.CodeInvalidRefreshToken, "", nil)
		return
	}

	// Refresh tokens are single use.
	delete(s.refresh, req.RefreshToken)
	s.revoked[grant.sid] = true

	u, ok := s.users[grant.userID]
	if !ok {
		s.writeError(w, http.StatusUnauthorized, apierr.CodeInvalidRefreshToken, "", nil)
		return
	}

	s.respondIssued(w, u)
}

func (s *Server) respondIssued(w http.ResponseWriter, u *user) {
	resp, err := s.issueLocked(u)
	if err != nil {
		s.log.Error("issue tokens", "err", err)
		s.writeError(w, http.StatusInternalServerError, apierr.CodeInternalError, "", nil)
		return
	}
	s.writeData(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromCtx(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failLogout {
		s.writeError(w, http.StatusServiceUnavailable, apierr.CodeServiceUnavailable, "", nil)
		return
	}

	s.revoked[claims.SID] = true
	for token, grant := range s.refresh {
		if grant.sid == claims.SID {
			delete(s.refresh, token)
		}
	}

	s.writeData(w, http.StatusOK, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userIDFromCtx(r.Context())]
	if !ok {
		s.writeError(w, http.StatusUnauthorized, apierr.CodeInvalidToken, "", nil)
		return
	}
	s.writeData(w, http.StatusOK, u)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID int64  `json:"telegram_id"`
		Username   string `json:"username"`
	}
	if err := decodeBody(r, &req); err != nil || req.Username == "" {
		s.writeError(w, http.StatusBadRequest, apierr.CodeMissingField, "", map[string]any{"field": "username"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findUserLocked(func(u *user) bool { return u.Username == req.Username }) != nil {
		s.writeError(w, http.StatusConflict, apierr.CodeInvalidFormat, "username already taken", map[string]any{"field": "username"})
		return
	}

	s.writeData(w, http.StatusCreated, s.addUserLocked(req.Username, "", req.TelegramID))
}
