package authsdk_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/trustkit/internal/testidp"
	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/authsdk"
	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/aussiebroadwan/trustkit/pkg/transport"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, opts ...testidp.Option) (*testidp.Server, *authsdk.Session) {
	t.Helper()

	srv := testidp.New(t, opts...)
	client := transport.NewHTTPClient(transport.Config{BaseURL: srv.URL})
	return srv, authsdk.NewSession(client)
}

func requireCode(t *testing.T, err error, code string, category apierr.Category) {
	t.Helper()

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, code, apiErr.Code)
	require.Equal(t, category, apiErr.Category)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success stores both tokens", func(t *testing.T) {
		srv, session := newSession(t)
		srv.AddUser("alice", "hunter2")

		result, err := session.Login(ctx, authsdk.Credentials{Username: "alice", Password: "hunter2"})
		require.NoError(t, err)

		require.Equal(t, "alice", result.User.Username)
		require.NotEmpty(t, result.Tokens.Access)
		require.NotEmpty(t, result.Tokens.Refresh)
		require.Equal(t, result.Tokens, session.Tokens())
		require.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt(), time.Minute)
		require.NotEmpty(t, result.Meta.Timestamp)
	})

	t.Run("failure keeps previous tokens", func(t *testing.T) {
		srv, session := newSession(t)
		srv.AddUser("alice", "hunter2")

		_, err := session.Login(ctx, authsdk.Credentials{Username: "alice", Password: "hunter2"})
		require.NoError(t, err)
		before := session.Tokens()

		_, err = session.Login(ctx, authsdk.Credentials{Username: "alice", Password: "wrong"})
		requireCode(t, err, apierr.CodeInvalidCredentials, apierr.CategoryAuth)

		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, before, session.Tokens())
	})

	t.Run("invalid input is rejected before sending", func(t *testing.T) {
		srv, session := newSession(t)

		_, err := session.Login(ctx, authsdk.Credentials{Password: "x"})
		requireCode(t, err, apierr.CodeMissingField, apierr.CategoryValidation)
		require.Empty(t, srv.Requests())
	})

	t.Run("second factor", func(t *testing.T) {
		srv, session := newSession(t)
		_, secret := srv.AddUserWithTOTP("bob", "pw")

		_, err := session.Login(ctx, authsdk.Credentials{Username: "bob", Password: "pw"})
		requireCode(t, err, apierr.CodeInvalid2FA, apierr.CategoryAuth)
		require.True(t, session.Tokens().IsZero())

		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)

		_, err = session.Login(ctx, authsdk.Credentials{Username: "bob", Password: "pw", TOTPCode: code})
		require.NoError(t, err)
		require.True(t, session.Authenticated())
	})

	t.Run("response without token is a system error", func(t *testing.T) {
		client := transport.ClientFunc(func(context.Context, transport.Request) (*transport.Response, error) {
			return &transport.Response{
				StatusCode: http.StatusOK,
				Body:       []byte(`{"success":true,"data":{"user":{"id":"u1"}}}`),
			}, nil
		})
		session := authsdk.NewSession(client)

		_, err := session.Login(ctx, authsdk.Credentials{Username: "a", Password: "b"})
		requireCode(t, err, apierr.CodeInternalError, apierr.CategorySystem)
		require.True(t, session.Tokens().IsZero())
	})
}

func TestLoginWithTelegram(t *testing.T) {
	t.Parallel()

	_, session := newSession(t)

	result, err := session.LoginWithTelegram(context.Background(), authsdk.TelegramCredentials{
		TelegramID: 123456789,
		Username:   "tg_user",
	})
	require.NoError(t, err)
	require.Equal(t, int64(123456789), result.User.TelegramID)
	require.True(t, session.Authenticated())

	user, err := session.CurrentUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, result.User.ID, user.ID)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("without refresh token no call is made", func(t *testing.T) {
		srv, session := newSession(t)

		_, err := session.Refresh(ctx)
		require.ErrorIs(t, err, apierr.ErrInvalidRefreshToken)
		requireCode(t, err, apierr.CodeInvalidRefreshToken, apierr.CategoryAuth)
		require.Empty(t, srv.Requests())
	})

	t.Run("success replaces both tokens", func(t *testing.T) {
		srv, session := newSession(t)
		srv.AddUser("alice", "pw")

		first, err := session.Login(ctx, authsdk.Credentials{Username: "alice", Password: "pw"})
		require.NoError(t, err)

		second, err := session.Refresh(ctx)
		require.NoError(t, err)
		require.NotEqual(t, first.Tokens.Access, second.Tokens.Access)
		require.NotEqual(t, first.Tokens.Refresh, second.Tokens.Refresh)
		require.Equal(t, second.Tokens, session.Tokens())

		_, err = session.CurrentUser(ctx)
		require.NoError(t, err)
	})

	t.Run("failure clears both tokens", func(t *testing.T) {
		srv, session := newSession(t)
		srv.AddUser("alice", "pw")

		_, err := session.Login(ctx, authsdk.Credentials{Username: "alice", Password: "pw"})
		require.NoError(t, err)

		var seen []authsdk.TokenPair
		session.OnTokenChange(func(p authsdk.TokenPair) { seen = append(seen, p) })

		srv.FailRefresh(true)
		_, err = session.Refresh(ctx)
		requireCode(t, err, apierr.CodeInvalidRefreshToken, apierr.CategoryAuth)

		require.True(t, session.Tokens().IsZero())
		require.Equal(t, []authsdk.TokenPair{{}}, seen)

		// Nothing left to refresh with.
		calls := len(srv.Requests())
		_, err = session.Refresh(ctx)
		require.ErrorIs(t, err, apierr.ErrInvalidRefreshToken)
		require.Len(t, srv.Requests(), calls)
	})

	t.Run("connectivity failure clears both tokens", func(t *testing.T) {
		client := transport.ClientFunc(func(context.Context, transport.Request) (*transport.Response, error) {
			return nil, &transport.Failure{Method: http.MethodPost, Path: "/auth/refresh", Err: context.DeadlineExceeded}
		})
		session := authsdk.NewSession(client, authsdk.WithTokens(authsdk.TokenPair{Access: "a", Refresh: "r"}))

		_, err := session.Refresh(ctx)
		requireCode(t, err, apierr.CodeInternalError, apierr.CategorySystem)
		require.True(t, session.Tokens().IsZero())
	})

	t.Run("refresh token kept when not rotated", func(t *testing.T) {
		client := transport.ClientFunc(func(context.Context, transport.Request) (*transport.Response, error) {
			return &transport.Response{
				StatusCode: http.StatusOK,
				Body:       []byte(`{"success":true,"data":{"token":"new-access","expires_in":60}}`),
			}, nil
		})
		session := authsdk.NewSession(client, authsdk.WithTokens(authsdk.TokenPair{Access: "old", Refresh: "r1"}))

		result, err := session.Refresh(ctx)
		require.NoError(t, err)
		require.Equal(t, authsdk.TokenPair{Access: "new-access", Refresh: "r1"}, result.Tokens)
	})
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("clears tokens and stops attaching them", func(t *testing.T) {
		srv, session := newSession(t)
		srv.AddUser("alice", "pw")

		_, err := session.Login(ctx, authsdk.Credentials{Username: "alice", Password: "pw"})
		require.NoError(t, err)

		require.NoError(t, session.Logout(ctx))
		require.True(t, session.Tokens().IsZero())

		_, err = session.CurrentUser(ctx)
		requireCode(t, err, apierr.CodeInvalidToken, apierr.CategoryAuth)

		last, ok := srv.LastRequest()
		require.True(t, ok)
		require.Equal(t, "/users/me", last.Path)
		require.Empty(t, last.Authorization)
	})

	t.Run("remote failure still clears tokens", func(t *testing.T) {
		srv, session := newSession(t)
		srv.AddUser("alice", "pw")

		_, err := session.Login(ctx, authsdk.Credentials{Username: "alice", Password: "pw"})
		require.NoError(t, err)

		srv.FailLogout(true)
		err = session.Logout(ctx)
		requireCode(t, err, apierr.CodeServiceUnavailable, apierr.CategorySystem)
		require.True(t, session.Tokens().IsZero())
	})

	t.Run("revoked session token is refused", func(t *testing.T) {
		srv, session := newSession(t)
		srv.AddUser("alice", "pw")

		result, err := session.Login(ctx, authsdk.Credentials{Username: "alice", Password: "pw"})
		require.NoError(t, err)
		require.NoError(t, session.Logout(ctx))

		stale := authsdk.NewSession(
			transport.NewHTTPClient(transport.Config{BaseURL: srv.URL}),
			authsdk.WithTokens(result.Tokens),
		)
		_, err = stale.CurrentUser(ctx)
		requireCode(t, err, apierr.CodeInvalidToken, apierr.CategoryAuth)
	})
}

func TestTokenListenersRunBeforeReturn(t *testing.T) {
	t.Parallel()

	srv, session := newSession(t)
	srv.AddUser("alice", "pw")

	var seen []string
	session.OnTokenChange(func(p authsdk.TokenPair) { seen = append(seen, p.Access) })

	result, err := session.Login(context.Background(), authsdk.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, []string{result.Tokens.Access}, seen)

	session.Invalidate()
	require.Equal(t, []string{result.Tokens.Access, ""}, seen)
}

func TestExpiry(t *testing.T) {
	t.Parallel()

	srv, session := newSession(t, testidp.WithAccessTTL(2*time.Minute))
	srv.AddUser("alice", "pw")

	_, err := session.Login(context.Background(), authsdk.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	require.False(t, session.Expired(0))
	require.True(t, session.Expired(5*time.Minute))

	// A restored session reads expiry from the token itself.
	restored := authsdk.NewSession(nil, authsdk.WithTokens(session.Tokens()))
	require.WithinDuration(t, session.ExpiresAt(), restored.ExpiresAt(), time.Second)
}

func TestCreateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, session := newSession(t)

	user, err := session.CreateUser(ctx, authsdk.CreateUserRequest{TelegramID: 42, Username: "newbie"})
	require.NoError(t, err)
	require.Equal(t, "newbie", user.Username)
	require.True(t, session.Tokens().IsZero())

	_, err = session.CreateUser(ctx, authsdk.CreateUserRequest{TelegramID: 43, Username: "newbie"})
	requireCode(t, err, apierr.CodeInvalidFormat, apierr.CategoryValidation)

	_, err = session.CreateUser(ctx, authsdk.CreateUserRequest{Username: "x"})
	requireCode(t, err, apierr.CodeInvalidFormat, apierr.CategoryValidation)
}

func TestUnresolvedPathIsValidation(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := transport.ClientFunc(func(context.Context, transport.Request) (*transport.Response, error) {
		calls.Add(1)
		return nil, &transport.Failure{Err: context.Canceled}
	})

	custom := catalog.Default()
	custom[catalog.OpCurrentUser] = catalog.Endpoint{Method: http.MethodGet, Path: "/users/{user_id}"}

	session := authsdk.NewSession(client, authsdk.WithCatalog(custom))
	_, err := session.CurrentUser(context.Background())
	requireCode(t, err, apierr.CodeMissingField, apierr.CategoryValidation)

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.False(t, apiErr.Retryable())
	require.Zero(t, calls.Load())
}
