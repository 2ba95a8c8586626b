package authsdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/aussiebroadwan/trustkit/pkg/transport"
)

// call resolves op, sends body with the current access token attached (when
// there is one) and decodes the envelope data into target. Every failure is
// returned as an *apierr.Error.
func (s *Session) call(
	ctx context.Context,
	op catalog.Operation,
	params map[string]string,
	body any,
	target any,
) (transport.Meta, error) {
	method, path, err := s.catalog.Resolve(op, params)
	if err != nil {
		return transport.Meta{}, s.fail(op, resolveError(err))
	}

	resp, err := s.client.Send(ctx, transport.Request{
		Method: method,
		Path:   path,
		Body:   body,
		Bearer: s.AccessToken(),
	})
	if err != nil {
		return transport.Meta{}, s.fail(op, err)
	}

	meta, err := transport.Decode(resp, target)
	if err != nil {
		return meta, s.fail(op, err)
	}
	return meta, nil
}

func (s *Session) fail(op catalog.Operation, err error) error {
	apiErr := apierr.Normalize(err)
	s.log.Debug("auth call failed",
		"op", op,
		"code", apiErr.Code,
		"category", apiErr.Category,
		"status", apiErr.StatusCode,
	)
	return apiErr
}

// resolveError maps a catalog failure to the error returned to callers. A
// missing path parameter is caller input, so it is VALIDATION.
func resolveError(err error) error {
	if errors.Is(err, catalog.ErrMissingParam) {
		return apierr.New(apierr.CodeMissingField, "", map[string]any{"reason": err.Error()})
	}
	return fmt.Errorf("failed to resolve endpoint: %w", err)
}
