package verifysdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/aussiebroadwan/trustkit/pkg/slogx"
	"github.com/aussiebroadwan/trustkit/pkg/transport"
)

// Option configures a Workflow.
type Option func(*Workflow)

// WithCatalog replaces the default endpoint catalog.
func WithCatalog(c catalog.Catalog) Option {
	return func(w *Workflow) { w.catalog = c }
}

// WithLogger sets the workflow logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.log = l }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithAuthToken sets the initial bearer token.
func WithAuthToken(token string) Option {
	return func(w *Workflow) { w.authToken = token }
}

// Workflow drives verifications through pending to approved, rejected or
// expired.
//
// It remembers the records it has seen (Track) so that operations which only
// make sense while pending can be refused locally once a record is known to
// be terminal. Callers own persistence of the records returned to them.
type Workflow struct {
	client  transport.Client
	catalog catalog.Catalog
	log     *slog.Logger
	now     func() time.Time

	authMu    sync.RWMutex
	authToken string

	mu      sync.Mutex
	tracked map[string]*Verification
}

// NewWorkflow creates a Workflow over client.
func NewWorkflow(client transport.Client, opts ...Option) *Workflow {
	w := &Workflow{
		client:  client,
		catalog: catalog.Default(),
		log:     slogx.Discard(),
		now:     time.Now,
		tracked: make(map[string]*Verification),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetAuthToken replaces the bearer token attached to subsequent calls. An
// empty token makes them unauthenticated.
func (w *Workflow) SetAuthToken(token string) {
	w.authMu.Lock()
	defer w.authMu.Unlock()
	w.authToken = token
}

// AuthToken returns the bearer token currently attached to calls.
func (w *Workflow) AuthToken() string {
	w.authMu.RLock()
	defer w.authMu.RUnlock()
	return w.authToken
}

// Track remembers v, e.g. a record restored from the caller's storage.
func (w *Workflow) Track(v Verification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracked[v.ID] = &v
}

// Untrack forgets the record with id.
func (w *Workflow) Untrack(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.tracked, id)
}

// Tracked returns a copy of the remembered record with id.
func (w *Workflow) Tracked(id string) (Verification, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	v, ok := w.tracked[id]
	if !ok {
		return Verification{}, false
	}
	return *v, true
}

// requirePending refuses, without a network call, an operation on a tracked
// record that is terminal. Untracked records are left to the service.
func (w *Workflow) requirePending(op catalog.Operation, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	v, ok := w.tracked[id]
	if !ok {
		return nil
	}

	status := v.EffectiveStatus(w.now())
	if !status.Terminal() {
		return nil
	}
	v.Status = status

	w.log.Debug("verification rejected locally", "op", op, "verification_id", id, "status", status)
	return terminalError(id, status)
}

// terminalError is the BUSINESS error for an operation against a record in
// a terminal status.
func terminalError(id string, status Status) *apierr.Error {
	var base *apierr.Error
	switch status {
	case StatusApproved:
		base = apierr.ErrAlreadyVerified
	case StatusExpired:
		base = apierr.ErrExpiredCode
	default:
		base = apierr.ErrVerificationFailed
	}
	return base.WithDetails(map[string]any{
		"verification_id": id,
		"status":          string(status),
	})
}

// remember stores v with clock expiry applied and returns it.
func (w *Workflow) remember(v *Verification) *Verification {
	v.Status = v.EffectiveStatus(w.now())

	w.mu.Lock()
	defer w.mu.Unlock()
	cp := *v
	w.tracked[v.ID] = &cp
	return v
}

// observe folds a check result into the tracked record, if any.
func (w *Workflow) observe(id string, res *CheckResult, attempted bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	v, ok := w.tracked[id]
	if !ok {
		return
	}
	if res != nil && res.Status.Valid() {
		v.Status = res.Status
	}
	if res != nil && res.ExpiresAt != nil {
		v.ExpiresAt = res.ExpiresAt
	}
	if !attempted {
		return
	}

	now := w.now()
	v.Metadata.LastAttempt = &now
	if res != nil {
		if n, ok := res.attemptCount(); ok {
			v.Metadata.AttemptCount = n
			return
		}
	}
	v.Metadata.AttemptCount++
}

// send resolves op, attaches the bearer token and decodes the envelope data
// into target. Every failure is returned as an *apierr.Error.
func (w *Workflow) send(
	ctx context.Context,
	op catalog.Operation,
	params map[string]string,
	req transport.Request,
	target any,
) (transport.Meta, error) {
	method, path, err := w.catalog.Resolve(op, params)
	if err != nil {
		if errors.Is(err, catalog.ErrMissingParam) {
			return transport.Meta{}, w.fail(op, apierr.New(apierr.CodeMissingField, "", map[string]any{"reason": err.Error()}))
		}
		return transport.Meta{}, w.fail(op, fmt.Errorf("failed to resolve endpoint: %w", err))
	}

	req.Method = method
	req.Path = path
	req.Bearer = w.AuthToken()

	resp, err := w.client.Send(ctx, req)
	if err != nil {
		return transport.Meta{}, w.fail(op, err)
	}

	meta, err := transport.Decode(resp, target)
	if err != nil {
		return meta, w.fail(op, err)
	}
	return meta, nil
}

func (w *Workflow) fail(op catalog.Operation, err error) error {
	apiErr := apierr.Normalize(err)
	w.log.Debug("verification call failed",
		"op", op,
		"code", apiErr.Code,
		"category", apiErr.Category,
		"status", apiErr.StatusCode,
	)
	return apiErr
}
