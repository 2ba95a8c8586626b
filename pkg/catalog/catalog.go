// Package catalog maps logical SDK operations to remote endpoints and names
// the headers the SDK sends. Swapping the catalog retargets the SDK without
// touching session or workflow code.
package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrMissingParam reports a path parameter that was absent or empty.
var ErrMissingParam = errors.New("missing path parameter")

// Operation is the logical name of a remote call.
type Operation string

const (
	OpLogin         Operation = "auth.login"
	OpTelegramLogin Operation = "auth.telegram"
	OpLogout        Operation = "auth.logout"
	OpRefresh       Operation = "auth.refresh"
	OpCurrentUser   Operation = "users.me"
	OpCreateUser    Operation = "users.create"

	OpStartVerification    Operation = "verification.start"
	OpConfirmVerification  Operation = "verification.confirm"
	OpUploadDocuments      Operation = "verification.documents"
	OpUpdateVerification   Operation = "verification.update"
	OpGetVerification      Operation = "verification.get"
	OpVerificationStatus   Operation = "verification.status"
	OpCancelVerification   Operation = "verification.cancel"
	OpListUserVerification Operation = "verification.list_for_user"
	OpRequirements         Operation = "verification.requirements"
)

// Path parameter names used in endpoint templates.
const (
	ParamID     = "id"
	ParamUserID = "user_id"
)

// Endpoint is an HTTP method plus a path template. Templates use {name}
// placeholders, e.g. /verification/{id}/confirm.
type Endpoint struct {
	Method string
	Path   string
}

// Expand substitutes path parameters, escaping each value as a path segment.
func (e Endpoint) Expand(params map[string]string) (string, error) {
	path := e.Path
	for name, value := range params {
		if value == "" {
			return "", fmt.Errorf("%w %q", ErrMissingParam, name)
		}
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}

	if strings.ContainsAny(path, "{}") {
		return "", fmt.Errorf("%w: unresolved parameters in %q", ErrMissingParam, path)
	}
	return path, nil
}

// Catalog maps operations to endpoints.
type Catalog map[Operation]Endpoint

// Default returns the endpoint catalog of the identity service.
func Default() Catalog {
	return Catalog{
		OpLogin:         {Method: http.MethodPost, Path: "/auth/login"},
		OpTelegramLogin: {Method: http.MethodPost, Path: "/auth/telegram"},
		OpLogout:        {Method: http.MethodPost, Path: "/auth/logout"},
		OpRefresh:       {Method: http.MethodPost, Path: "/auth/refresh"},
		OpCurrentUser:   {Method: http.MethodGet, Path: "/users/me"},
		OpCreateUser:    {Method: http.MethodPost, Path: "/users"},

		OpStartVerification:    {Method: http.MethodPost, Path: "/verification/start"},
		OpConfirmVerification:  {Method: http.MethodPost, Path: "/verification/{id}/confirm"},
		OpUploadDocuments:      {Method: http.MethodPost, Path: "/verification/{id}/documents"},
		OpUpdateVerification:   {Method: http.MethodPut, Path: "/verification/{id}"},
		OpGetVerification:      {Method: http.MethodGet, Path: "/verification/{id}"},
		OpVerificationStatus:   {Method: http.MethodGet, Path: "/verification/{id}/status"},
		OpCancelVerification:   {Method: http.MethodPost, Path: "/verification/{id}/cancel"},
		OpListUserVerification: {Method: http.MethodGet, Path: "/users/{user_id}/verifications"},
		OpRequirements:         {Method: http.MethodGet, Path: "/users/{user_id}/verification-requirements"},
	}
}

// Lookup returns the endpoint for op.
func (c Catalog) Lookup(op Operation) (Endpoint, error) {
	ep, ok := c[op]
	if !ok {
		return Endpoint{}, fmt.Errorf("no endpoint for operation %q", op)
	}
	return ep, nil
}

// Resolve looks up op and expands its path with params.
func (c Catalog) Resolve(op Operation, params map[string]string) (method, path string, err error) {
	ep, err := c.Lookup(op)
	if err != nil {
		return "", "", err
	}

	path, err = ep.Expand(params)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return ep.Method, path, nil
}
