package authsdk

import (
	"context"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/aussiebroadwan/trustkit/pkg/transport"
	"github.com/aussiebroadwan/trustkit/pkg/validx"
)

// Login authenticates with a username and password. On success both tokens
// are stored; on failure any previously stored pair is left as it was.
func (s *Session) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	if err := validx.Struct(creds); err != nil {
		return nil, err
	}

	var resp authResponse
	meta, err := s.call(ctx, catalog.OpLogin, nil, creds, &resp)
	if err != nil {
		return nil, err
	}

	return s.accept(resp, meta, "login", "")
}

// LoginWithTelegram authenticates a user identified by the Telegram bot.
// Token handling matches Login.
func (s *Session) LoginWithTelegram(ctx context.Context, creds TelegramCredentials) (*AuthResult, error) {
	if err := validx.Struct(creds); err != nil {
		return nil, err
	}

	var resp authResponse
	meta, err := s.call(ctx, catalog.OpTelegramLogin, nil, creds, &resp)
	if err != nil {
		return nil, err
	}

	return s.accept(resp, meta, "telegram_login", "")
}

// Refresh exchanges the stored refresh token for a new pair.
//
// Without a stored refresh token it returns apierr.ErrInvalidRefreshToken
// and sends nothing. Any failure after the request is sent clears both
// tokens. Refresh never retries.
func (s *Session) Refresh(ctx context.Context) (*AuthResult, error) {
	current := s.Tokens().Refresh
	if current == "" {
		s.log.Debug("refresh rejected locally", "code", apierr.CodeInvalidRefreshToken)
		return nil, apierr.ErrInvalidRefreshToken
	}

	var resp authResponse
	meta, err := s.call(ctx, catalog.OpRefresh, nil, refreshRequest{RefreshToken: current}, &resp)
	if err != nil {
		s.clearTokens("refresh_failed")
		return nil, err
	}

	result, err := s.accept(resp, meta, "refresh", current)
	if err != nil {
		s.clearTokens("refresh_failed")
		return nil, err
	}
	return result, nil
}

// Logout asks the service to end the session and then clears the pair
// locally, whatever the outcome of the remote call. A remote failure is
// returned after the tokens are gone.
func (s *Session) Logout(ctx context.Context) error {
	_, err := s.call(ctx, catalog.OpLogout, nil, nil, nil)
	s.clearTokens("logout")
	return err
}

// accept stores the pair from a successful auth response. fallbackRefresh is
// kept when the service does not rotate refresh tokens.
func (s *Session) accept(resp authResponse, meta transport.Meta, reason, fallbackRefresh string) (*AuthResult, error) {
	if resp.Token == "" {
		return nil, apierr.ErrInternal.WithDetails(map[string]any{"reason": "response carried no access token"})
	}

	pair := TokenPair{Access: resp.Token, Refresh: resp.RefreshToken}
	if pair.Refresh == "" {
		pair.Refresh = fallbackRefresh
	}

	expiresAt := s.expiry(resp)
	s.setTokens(pair, expiresAt, reason)

	resp.User.Meta = meta
	return &AuthResult{
		User:      resp.User,
		Tokens:    pair,
		ExpiresAt: expiresAt,
		Meta:      meta,
	}, nil
}
