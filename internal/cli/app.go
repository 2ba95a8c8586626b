// Package cli implements trustctl, a command line client for the identity
// service. It keeps the session and the verification records it has seen in
// a local SQLite file so that state carries over between invocations.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/trustkit/internal/cli/store"
	"github.com/aussiebroadwan/trustkit/pkg/authsdk"
	"github.com/aussiebroadwan/trustkit/pkg/slogx"
	"github.com/aussiebroadwan/trustkit/pkg/trustsdk"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// refreshLeeway is how close to expiry a stored access token may be
	// before a command refreshes it first.
	refreshLeeway = time.Minute
)

var ErrUsage = errors.New("usage")

type App struct {
	cfg    Config
	logger *slog.Logger
	out    io.Writer

	db  *store.Store
	sdk *trustsdk.SDK
}

// New opens the state file, restores any saved session and verification
// records, and builds the SDK. Output of commands is written to out.
func New(ctx context.Context, cfg Config, out io.Writer) (*App, error) {
	app := &App{
		cfg: cfg,
		out: out,
		logger: slogx.New(slogx.Config{
			Service: "trustctl",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	tokens, err := app.restoreSession(ctx)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.sdk = trustsdk.New(trustsdk.Config{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		TimeoutMS:         cfg.TimeoutMS,
		SigningSecret:     cfg.SigningSecret,
		RequestsPerSecond: cfg.RateLimit,
		Tokens:            tokens,
		Logger:            app.logger,
	})
	app.sdk.Auth.OnTokenChange(app.persistTokens)

	if err := app.restoreVerifications(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

func (app *App) Close() error {
	return app.db.Close()
}

func (app *App) initStore() error {
	db, err := store.Open(app.cfg.StateFile)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to migrate state file: %w", err)
	}

	app.db = db
	return nil
}

// restoreSession returns the saved token pair. A session that cannot be
// opened is ignored so that a fresh login can replace it.
func (app *App) restoreSession(ctx context.Context) (authsdk.TokenPair, error) {
	sess, err := app.db.LoadSession(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return authsdk.TokenPair{}, nil
	}
	if err != nil {
		return authsdk.TokenPair{}, fmt.Errorf("failed to load session: %w", err)
	}

	pair, err := openTokens(app.cfg.VaultPassphrase, sess)
	if err != nil {
		app.logger.Warn("saved session ignored", "error", err)
		return authsdk.TokenPair{}, nil
	}
	return pair, nil
}

func (app *App) restoreVerifications(ctx context.Context) error {
	records, err := app.db.ListVerifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to load verifications: %w", err)
	}

	for _, v := range records {
		app.sdk.Verification.Track(v)
	}
	app.logger.Debug("verifications restored", "count", len(records))
	return nil
}

// persistTokens mirrors every session token change into the state file.
func (app *App) persistTokens(pair authsdk.TokenPair) {
	ctx := context.Background()

	if pair.IsZero() {
		if err := app.db.DeleteSession(ctx); err != nil {
			app.logger.Error("failed to delete session", "error", err)
		}
		return
	}

	sess, err := sealTokens(app.cfg.VaultPassphrase, pair, time.Now())
	if err != nil {
		app.logger.Warn("session not persisted", "error", err)
		return
	}
	if err := app.db.SaveSession(ctx, sess); err != nil {
		app.logger.Error("failed to save session", "error", err)
	}
}

// ensureFresh refreshes a stored access token that is about to expire.
func (app *App) ensureFresh(ctx context.Context) error {
	auth := app.sdk.Auth
	if !auth.Authenticated() || auth.Tokens().Refresh == "" || !auth.Expired(refreshLeeway) {
		return nil
	}

	app.logger.Info("access token expiring, refreshing")
	_, err := auth.Refresh(ctx)
	return err
}

// Run executes one command line.
func (app *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		app.usage()
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return app.login(ctx, rest)
	case "login-telegram":
		return app.loginTelegram(ctx, rest)
	case "refresh":
		return app.refresh(ctx)
	case "logout":
		return app.logout(ctx)
	case "whoami":
		return app.whoami(ctx)
	case "verify":
		return app.verify(ctx, rest)
	case "help", "-h", "--help":
		app.usage()
		return nil
	}

	app.usage()
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}

func (app *App) usage() {
	fmt.Fprint(app.out, `usage: trustctl <command> [flags]

commands:
  login            -username -password [-totp]
  login-telegram   -id -username
  refresh
  logout
  whoami
  verify start     -type [-data JSON] [-source] [-ip]
  verify confirm   -id -code
  verify status    -id
  verify get       -id
  verify cancel    -id
  verify upload    -id field=path...
  verify list      [-user] [-page] [-limit] [-sort-by] [-order]
  verify requirements [-user]
`)
}

func (app *App) print(v any) error {
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
