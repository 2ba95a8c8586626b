package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aussiebroadwan/trustkit/pkg/jwtx"
	"github.com/aussiebroadwan/trustkit/pkg/verifysdk"
)

var errNotLoggedIn = errors.New("not logged in")

func (app *App) verify(ctx context.Context, args []string) error {
	if len(args) == 0 {
		app.usage()
		return ErrUsage
	}
	if err := app.ensureFresh(ctx); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "start":
		return app.verifyStart(ctx, rest)
	case "confirm":
		return app.verifyConfirm(ctx, rest)
	case "status":
		return app.verifyStatus(ctx, rest)
	case "get":
		return app.verifyGet(ctx, rest)
	case "cancel":
		return app.verifyCancel(ctx, rest)
	case "upload":
		return app.verifyUpload(ctx, rest)
	case "list":
		return app.verifyList(ctx, rest)
	case "requirements":
		return app.verifyRequirements(ctx, rest)
	}

	app.usage()
	return fmt.Errorf("%w: unknown verify command %q", ErrUsage, cmd)
}

// save caches v so later invocations can track it.
func (app *App) save(ctx context.Context, v *verifysdk.Verification) {
	if err := app.db.SaveVerification(ctx, *v); err != nil {
		app.logger.Error("failed to cache verification", "verification_id", v.ID, "error", err)
	}
}

// sync caches the workflow's current view of id, if it tracks one.
func (app *App) sync(ctx context.Context, id string) {
	if v, ok := app.sdk.Verification.Tracked(id); ok {
		app.save(ctx, &v)
	}
}

// userID is the explicit value, or the subject of the stored access token.
func (app *App) userID(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	token := app.sdk.Auth.AccessToken()
	if token == "" {
		return "", errNotLoggedIn
	}

	claims, err := jwtx.Inspect(token)
	if err != nil || claims.Subject == "" {
		return "", fmt.Errorf("cannot read user id from access token, pass -user")
	}
	return claims.Subject, nil
}

func (app *App) verifyStart(ctx context.Context, args []string) error {
	fs := app.flags("verify start")
	typ := fs.String("type", "", "verification type: "+joinTypes())
	data := fs.String("data", "", "type-specific data as a JSON object")
	source := fs.String("source", "", "metadata source (telegram, website, api)")
	ip := fs.String("ip", "", "metadata client ip address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var payload any
	if *data != "" {
		if !json.Valid([]byte(*data)) {
			return fmt.Errorf("%w: -data is not valid JSON", ErrUsage)
		}
		payload = json.RawMessage(*data)
	}

	var metadata *verifysdk.Metadata
	if *source != "" || *ip != "" {
		metadata = &verifysdk.Metadata{Source: *source, IPAddress: *ip}
	}

	v, err := app.sdk.Verification.Start(ctx, verifysdk.Type(*typ), payload, metadata)
	if err != nil {
		return err
	}

	app.save(ctx, v)
	return app.print(v)
}

func (app *App) verifyConfirm(ctx context.Context, args []string) error {
	fs := app.flags("verify confirm")
	id := fs.String("id", "", "verification id")
	code := fs.String("code", "", "confirmation code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := app.sdk.Verification.Confirm(ctx, *id, *code)
	app.sync(ctx, *id)
	if err != nil {
		return err
	}
	return app.print(res)
}

func (app *App) verifyStatus(ctx context.Context, args []string) error {
	fs := app.flags("verify status")
	id := fs.String("id", "", "verification id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := app.sdk.Verification.CheckStatus(ctx, *id)
	if err != nil {
		return err
	}

	app.sync(ctx, *id)
	return app.print(res)
}

func (app *App) verifyGet(ctx context.Context, args []string) error {
	fs := app.flags("verify get")
	id := fs.String("id", "", "verification id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v, err := app.sdk.Verification.Get(ctx, *id)
	if err != nil {
		return err
	}

	app.save(ctx, v)
	return app.print(v)
}

func (app *App) verifyCancel(ctx context.Context, args []string) error {
	fs := app.flags("verify cancel")
	id := fs.String("id", "", "verification id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := app.sdk.Verification.Cancel(ctx, *id); err != nil {
		app.sync(ctx, *id)
		return err
	}

	if err := app.db.DeleteVerification(ctx, *id); err != nil {
		app.logger.Error("failed to drop cached verification", "verification_id", *id, "error", err)
	}
	fmt.Fprintf(app.out, "cancelled %s\n", *id)
	return nil
}

func (app *App) verifyUpload(ctx context.Context, args []string) error {
	fs := app.flags("verify upload")
	id := fs.String("id", "", "verification id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	docs := make([]verifysdk.Document, 0, fs.NArg())
	for _, arg := range fs.Args() {
		field, path, ok := strings.Cut(arg, "=")
		if !ok || field == "" || path == "" {
			return fmt.Errorf("%w: expected field=path, got %q", ErrUsage, arg)
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		docs = append(docs, verifysdk.Document{
			Field:       field,
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Content:     f,
		})
	}

	v, err := app.sdk.Verification.UploadDocuments(ctx, *id, docs...)
	if err != nil {
		return err
	}

	app.save(ctx, v)
	return app.print(v)
}

func (app *App) verifyList(ctx context.Context, args []string) error {
	fs := app.flags("verify list")
	user := fs.String("user", "", "user id (default: the logged in user)")
	page := fs.Int("page", 0, "page number")
	limit := fs.Int("limit", 0, "page size, at most 100")
	sortBy := fs.String("sort-by", "", "created_at, updated_at, type or status")
	order := fs.String("order", "", "asc or desc")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := app.userID(*user)
	if err != nil {
		return err
	}

	result, err := app.sdk.Verification.ListForUser(ctx, userID, verifysdk.Pagination{
		Page:      *page,
		Limit:     *limit,
		SortBy:    *sortBy,
		SortOrder: *order,
	})
	if err != nil {
		return err
	}
	return app.print(result)
}

func (app *App) verifyRequirements(ctx context.Context, args []string) error {
	fs := app.flags("verify requirements")
	user := fs.String("user", "", "user id (default: the logged in user)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := app.userID(*user)
	if err != nil {
		return err
	}

	req, err := app.sdk.Verification.Requirements(ctx, userID)
	if err != nil {
		return err
	}

	return app.print(struct {
		*verifysdk.Requirements
		Missing []verifysdk.Type `json:"missing"`
	}{req, req.Missing()})
}

func joinTypes() string {
	names := make([]string, 0, len(verifysdk.Types()))
	for _, t := range verifysdk.Types() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
