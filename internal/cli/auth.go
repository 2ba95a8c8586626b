package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/authsdk"
	"github.com/pquerna/otp/totp"
)

type sessionView struct {
	User      *authsdk.User `json:"user,omitempty"`
	ExpiresAt time.Time     `json:"expires_at"`
}

func (app *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.out)
	return fs
}

func (app *App) login(ctx context.Context, args []string) error {
	fs := app.flags("login")
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password; prompted for when omitted")
	code := fs.String("totp", "", "second factor code; generated from TRUST_TOTP_SECRET when omitted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		pw, err := promptPassword()
		if err != nil {
			return err
		}
		*password = pw
	}

	if *code == "" && app.cfg.TOTPSecret != "" {
		generated, err := totp.GenerateCode(app.cfg.TOTPSecret, time.Now())
		if err != nil {
			return fmt.Errorf("failed to generate totp code: %w", err)
		}
		*code = generated
	}

	result, err := app.sdk.Auth.Login(ctx, authsdk.Credentials{
		Username: *username,
		Password: *password,
		TOTPCode: *code,
	})
	if err != nil {
		return err
	}
	return app.print(sessionView{User: &result.User, ExpiresAt: result.ExpiresAt})
}

func (app *App) loginTelegram(ctx context.Context, args []string) error {
	fs := app.flags("login-telegram")
	id := fs.Int64("id", 0, "telegram user id")
	username := fs.String("username", "", "telegram username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := app.sdk.Auth.LoginWithTelegram(ctx, authsdk.TelegramCredentials{
		TelegramID: *id,
		Username:   *username,
	})
	if err != nil {
		return err
	}
	return app.print(sessionView{User: &result.User, ExpiresAt: result.ExpiresAt})
}

func (app *App) refresh(ctx context.Context) error {
	result, err := app.sdk.Auth.Refresh(ctx)
	if err != nil {
		return err
	}
	return app.print(sessionView{ExpiresAt: result.ExpiresAt})
}

// logout ends the session. The local tokens are gone even when the service
// call fails.
func (app *App) logout(ctx context.Context) error {
	if err := app.sdk.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(app.out, "logged out")
	return nil
}

func (app *App) whoami(ctx context.Context) error {
	if err := app.ensureFresh(ctx); err != nil {
		return err
	}

	user, err := app.sdk.Auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return app.print(user)
}
