package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/trustkit/internal/cli"
	"github.com/aussiebroadwan/trustkit/internal/testidp"
	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/authsdk"
	"github.com/aussiebroadwan/trustkit/pkg/verifysdk"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t     *testing.T
	srv   *testidp.Server
	state string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	srv := testidp.New(t)
	srv.AddUser("alice", "pw")
	return &harness{t: t, srv: srv, state: filepath.Join(t.TempDir(), "state.db")}
}

func (h *harness) config() cli.Config {
	return cli.Config{
		BaseURL:         h.srv.URL,
		StateFile:       h.state,
		VaultPassphrase: "correct horse",
		Env:             "test",
		LogLevel:        "error",
		LogFormat:       "text",
	}
}

// run opens the state file, executes one command and closes it again, the
// way a separate trustctl process would.
func (h *harness) run(cfg cli.Config, args ...string) (string, error) {
	h.t.Helper()

	var out bytes.Buffer
	app, err := cli.New(context.Background(), cfg, &out)
	require.NoError(h.t, err)
	defer func() { require.NoError(h.t, app.Close()) }()

	err = app.Run(context.Background(), args)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()

	out, err := h.run(h.config(), args...)
	require.NoError(h.t, err)
	return out
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, code, apiErr.Code)
}

func TestSessionSurvivesRestart(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	out := h.mustRun("login", "-username", "alice", "-password", "pw")
	require.Contains(t, out, `"username": "alice"`)
	require.NotContains(t, out, "refresh")

	var user authsdk.User
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("whoami")), &user))
	require.Equal(t, "alice", user.Username)

	last, _ := h.srv.LastRequest()
	require.NotEmpty(t, last.Authorization)

	require.Contains(t, h.mustRun("logout"), "logged out")

	_, err := h.run(h.config(), "whoami")
	requireCode(t, err, apierr.CodeInvalidToken)

	last, _ = h.srv.LastRequest()
	require.Empty(t, last.Authorization)
}

func TestSessionNeedsPassphrase(t *testing.T) {
	t.Parallel()

	t.Run("wrong passphrase ignores saved session", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun("login", "-username", "alice", "-password", "pw")

		cfg := h.config()
		cfg.VaultPassphrase = "battery staple"
		_, err := h.run(cfg, "whoami")
		requireCode(t, err, apierr.CodeInvalidToken)
	})

	t.Run("no passphrase keeps nothing", func(t *testing.T) {
		h := newHarness(t)

		cfg := h.config()
		cfg.VaultPassphrase = ""
		_, err := h.run(cfg, "login", "-username", "alice", "-password", "pw")
		require.NoError(t, err)

		_, err = h.run(h.config(), "whoami")
		requireCode(t, err, apierr.CodeInvalidToken)
	})
}

func TestLoginWithConfiguredTOTP(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, secret := h.srv.AddUserWithTOTP("bob", "pw")

	_, err := h.run(h.config(), "login", "-username", "bob", "-password", "pw")
	requireCode(t, err, apierr.CodeInvalid2FA)

	cfg := h.config()
	cfg.TOTPSecret = secret
	_, err = h.run(cfg, "login", "-username", "bob", "-password", "pw")
	require.NoError(t, err)
}

func TestLoginTelegramAndRefresh(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.Contains(t, h.mustRun("login-telegram", "-id", "777", "-username", "tg"), `"telegram_id": 777`)
	require.Contains(t, h.mustRun("refresh"), "expires_at")
	require.Contains(t, h.mustRun("whoami"), `"username": "tg"`)
}

func TestVerificationStateSurvivesRestart(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.mustRun("login", "-username", "alice", "-password", "pw")

	var v verifysdk.Verification
	out := h.mustRun("verify", "start", "-type", "email", "-data", `{"email":"a@b.com"}`, "-source", "website")
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Equal(t, verifysdk.StatusPending, v.Status)
	require.Equal(t, "website", v.Metadata.Source)

	var res verifysdk.CheckResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "confirm", "-id", v.ID, "-code", "000000")), &res))
	require.False(t, res.Valid)

	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "confirm", "-id", v.ID, "-code", testidp.ConfirmCode)), &res))
	require.True(t, res.Valid)

	// A new process refuses to confirm again without asking the service.
	confirmPath := "/verification/" + v.ID + "/confirm"
	sent := len(h.srv.RequestsTo(confirmPath))

	_, err := h.run(h.config(), "verify", "confirm", "-id", v.ID, "-code", testidp.ConfirmCode)
	require.ErrorIs(t, err, apierr.ErrAlreadyVerified)

	_, err = h.run(h.config(), "verify", "cancel", "-id", v.ID)
	require.ErrorIs(t, err, apierr.ErrAlreadyVerified)

	require.Len(t, h.srv.RequestsTo(confirmPath), sent)

	var page verifysdk.Page[verifysdk.Verification]
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "list", "-limit", "10")), &page))
	require.Len(t, page.Data, 1)
	require.Equal(t, verifysdk.StatusApproved, page.Data[0].Status)

	var req struct {
		Missing []verifysdk.Type `json:"missing"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "requirements")), &req))
	require.Equal(t, []verifysdk.Type{verifysdk.TypePhone}, req.Missing)
}

func TestVerifyCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.mustRun("login", "-username", "alice", "-password", "pw")

	var v verifysdk.Verification
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "start", "-type", "phone")), &v))

	require.Contains(t, h.mustRun("verify", "cancel", "-id", v.ID), "cancelled "+v.ID)

	// Dropped from the cache, so the service answers this time.
	_, err := h.run(h.config(), "verify", "cancel", "-id", v.ID)
	requireCode(t, err, apierr.CodeVerificationFailed)
	require.Len(t, h.srv.RequestsTo("/verification/"+v.ID+"/cancel"), 2)
}

func TestVerifyStatusAndGet(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.mustRun("login", "-username", "alice", "-password", "pw")

	var v verifysdk.Verification
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "start", "-type", "wallet")), &v))
	h.srv.BackdateExpiry(v.ID)

	var res verifysdk.CheckResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "status", "-id", v.ID)), &res))
	require.Equal(t, verifysdk.StatusExpired, res.Status)

	var got verifysdk.Verification
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "get", "-id", v.ID)), &got))
	require.Equal(t, verifysdk.StatusExpired, got.Status)

	_, err := h.run(h.config(), "verify", "confirm", "-id", v.ID, "-code", testidp.ConfirmCode)
	require.ErrorIs(t, err, apierr.ErrExpiredCode)
}

func TestVerifyUpload(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.mustRun("login", "-username", "alice", "-password", "pw")

	front := filepath.Join(t.TempDir(), "front.jpg")
	require.NoError(t, os.WriteFile(front, []byte("jpeg bytes"), 0o600))

	var v verifysdk.Verification
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "start", "-type", "document", "-data", `{"document_type":"passport"}`)), &v))

	var got verifysdk.Verification
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("verify", "upload", "-id", v.ID, "front="+front)), &got))

	var data verifysdk.DocumentData
	require.NoError(t, got.DecodeData(&data))
	require.NotNil(t, data.Files)
	require.Equal(t, "upload://front.jpg/10", data.Files.Front)

	_, err := h.run(h.config(), "verify", "upload", "-id", v.ID, "front")
	require.ErrorIs(t, err, cli.ErrUsage)
}

func TestUsage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.run(h.config())
	require.ErrorIs(t, err, cli.ErrUsage)

	out, err := h.run(h.config(), "bogus")
	require.ErrorIs(t, err, cli.ErrUsage)
	require.Contains(t, out, "usage: trustctl")

	_, err = h.run(h.config(), "verify", "start", "-type", "email", "-data", "{not json")
	require.ErrorIs(t, err, cli.ErrUsage)

	_, err = h.run(h.config(), "verify", "list")
	require.ErrorContains(t, err, "not logged in")

	_, err = h.run(h.config(), "verify", "start", "-type", "fax")
	requireCode(t, err, apierr.CodeUnsupportedType)
}
