package verifysdk

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/aussiebroadwan/trustkit/pkg/transport"
	"github.com/aussiebroadwan/trustkit/pkg/validx"
)

type startRequest struct {
	Type     Type            `json:"type"`
	Data     json.RawMessage `json:"data"`
	Metadata *Metadata       `json:"metadata,omitempty"`
}

type confirmRequest struct {
	Code string `json:"code"`
}

// Start creates a pending verification of type t. data may be partial but
// must match the shape for t; see the *Data types.
func (w *Workflow) Start(ctx context.Context, t Type, data any, metadata *Metadata) (*Verification, error) {
	if !t.Valid() {
		return nil, apierr.ErrUnsupportedType.WithDetails(map[string]any{"type": string(t)})
	}

	raw, err := validateData(t, data)
	if err != nil {
		return nil, err
	}
	if metadata != nil {
		if err := validx.Struct(metadata); err != nil {
			return nil, err
		}
	}

	var v Verification
	meta, err := w.send(ctx, catalog.OpStartVerification, nil, transport.Request{
		Body: startRequest{Type: t, Data: raw, Metadata: metadata},
	}, &v)
	if err != nil {
		return nil, err
	}

	v.Meta = meta
	w.log.Info("verification started", "verification_id", v.ID, "type", v.Type)
	return w.remember(&v), nil
}

// Confirm submits code for a pending verification. The service counts every
// attempt; whether the code was accepted is reported in the result, not as
// an error.
func (w *Workflow) Confirm(ctx context.Context, id, code string) (*CheckResult, error) {
	if err := validx.Var("id", id, "required"); err != nil {
		return nil, err
	}
	if err := validx.Var("code", code, "required"); err != nil {
		return nil, err
	}
	if err := w.requirePending(catalog.OpConfirmVerification, id); err != nil {
		return nil, err
	}

	var res CheckResult
	meta, err := w.send(ctx, catalog.OpConfirmVerification, map[string]string{catalog.ParamID: id}, transport.Request{
		Body: confirmRequest{Code: code},
	}, &res)
	if err != nil {
		w.observeFailure(id, err, true)
		return nil, err
	}

	res.Meta = meta
	w.observe(id, &res, true)
	return &res, nil
}

// observeFailure syncs the tracked record with a remote rejection. A
// rejection naming a terminal status moves the record there; any other
// answer to a confirmation still counts as an attempt.
func (w *Workflow) observeFailure(id string, err error, attempted bool) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode == 0 {
		return
	}

	status, _ := apiErr.Details["status"].(string)
	if Status(status).Terminal() {
		w.observe(id, &CheckResult{Status: Status(status)}, false)
		return
	}
	if attempted {
		w.observe(id, nil, true)
	}
}

// UploadDocuments attaches files to a pending document verification. The
// service rejects uploads for other types.
func (w *Workflow) UploadDocuments(ctx context.Context, id string, files ...Document) (*Verification, error) {
	if err := validx.Var("id", id, "required"); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apierr.New(apierr.CodeMissingField, "", map[string]any{"fields": map[string]string{"files": "required"}})
	}
	if err := w.requirePending(catalog.OpUploadDocuments, id); err != nil {
		return nil, err
	}

	parts := make([]transport.File, 0, len(files))
	for _, f := range files {
		parts = append(parts, transport.File{
			Field:       f.Field,
			Name:        f.Name,
			ContentType: f.ContentType,
			Content:     f.Content,
		})
	}

	var v Verification
	meta, err := w.send(ctx, catalog.OpUploadDocuments, map[string]string{catalog.ParamID: id}, transport.Request{
		Files:   parts,
		Timeout: transport.UploadTimeout,
	}, &v)
	if err != nil {
		w.observeFailure(id, err, false)
		return nil, err
	}

	v.Meta = meta
	return w.remember(&v), nil
}

// Update patches a verification. Any status may be set; the service decides
// what is allowed.
func (w *Workflow) Update(ctx context.Context, id string, patch UpdateRequest) (*Verification, error) {
	if err := validx.Var("id", id, "required"); err != nil {
		return nil, err
	}
	if patch.Status != "" && !patch.Status.Valid() {
		return nil, apierr.ErrInvalidFormat.WithDetails(map[string]any{"status": string(patch.Status)})
	}

	var v Verification
	meta, err := w.send(ctx, catalog.OpUpdateVerification, map[string]string{catalog.ParamID: id}, transport.Request{
		Body: patch,
	}, &v)
	if err != nil {
		return nil, err
	}

	v.Meta = meta
	return w.remember(&v), nil
}

// Get fetches a verification. A pending record past its expires_at is
// returned as expired.
func (w *Workflow) Get(ctx context.Context, id string) (*Verification, error) {
	if err := validx.Var("id", id, "required"); err != nil {
		return nil, err
	}

	var v Verification
	meta, err := w.send(ctx, catalog.OpGetVerification, map[string]string{catalog.ParamID: id}, transport.Request{}, &v)
	if err != nil {
		return nil, err
	}

	v.Meta = meta
	return w.remember(&v), nil
}

// CheckStatus reads the current status. When expires_at has passed the
// result is expired and invalid even if the service still says pending; the
// service record itself is not updated.
func (w *Workflow) CheckStatus(ctx context.Context, id string) (*CheckResult, error) {
	if err := validx.Var("id", id, "required"); err != nil {
		return nil, err
	}

	var res CheckResult
	meta, err := w.send(ctx, catalog.OpVerificationStatus, map[string]string{catalog.ParamID: id}, transport.Request{}, &res)
	if err != nil {
		return nil, err
	}
	res.Meta = meta

	if res.ExpiresAt == nil {
		if v, ok := w.Tracked(id); ok {
			res.ExpiresAt = v.ExpiresAt
		}
	}
	if res.Status == StatusPending && res.ExpiresAt != nil && w.now().After(*res.ExpiresAt) {
		w.log.Debug("verification expired by clock", "verification_id", id)
		res.Status = StatusExpired
		res.Valid = false
	}

	w.observe(id, &res, false)
	return &res, nil
}

// Cancel withdraws a pending verification and stops tracking it.
func (w *Workflow) Cancel(ctx context.Context, id string) error {
	if err := validx.Var("id", id, "required"); err != nil {
		return err
	}
	if err := w.requirePending(catalog.OpCancelVerification, id); err != nil {
		return err
	}

	if _, err := w.send(ctx, catalog.OpCancelVerification, map[string]string{catalog.ParamID: id}, transport.Request{}, nil); err != nil {
		w.observeFailure(id, err, false)
		return err
	}

	w.Untrack(id)
	w.log.Info("verification cancelled", "verification_id", id)
	return nil
}

// ListForUser returns one page of a user's verifications. It changes no
// local state.
func (w *Workflow) ListForUser(ctx context.Context, userID string, p Pagination) (*Page[Verification], error) {
	if err := validx.Var("user_id", userID, "required"); err != nil {
		return nil, err
	}
	if err := validx.Struct(p); err != nil {
		return nil, err
	}

	var page Page[Verification]
	meta, err := w.send(ctx, catalog.OpListUserVerification, map[string]string{catalog.ParamUserID: userID}, transport.Request{
		Query: p.query(),
	}, &page)
	if err != nil {
		return nil, err
	}

	now := w.now()
	for i := range page.Data {
		page.Data[i].Status = page.Data[i].EffectiveStatus(now)
	}
	page.Meta = meta
	return &page, nil
}

// Requirements reports which verification types userID still needs.
func (w *Workflow) Requirements(ctx context.Context, userID string) (*Requirements, error) {
	if err := validx.Var("user_id", userID, "required"); err != nil {
		return nil, err
	}

	var req Requirements
	meta, err := w.send(ctx, catalog.OpRequirements, map[string]string{catalog.ParamUserID: userID}, transport.Request{}, &req)
	if err != nil {
		return nil, err
	}

	req.Meta = meta
	return &req, nil
}
