package authsdk

import (
	"context"

	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/aussiebroadwan/trustkit/pkg/validx"
)

// CurrentUser returns the user the access token belongs to. Without a token
// the call goes out unauthenticated and the service decides.
func (s *Session) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	meta, err := s.call(ctx, catalog.OpCurrentUser, nil, nil, &user)
	if err != nil {
		return nil, err
	}
	user.Meta = meta
	return &user, nil
}

// CreateUser registers a new user. It does not change the token pair.
func (s *Session) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if err := validx.Struct(req); err != nil {
		return nil, err
	}

	var user User
	meta, err := s.call(ctx, catalog.OpCreateUser, nil, req, &user)
	if err != nil {
		return nil, err
	}
	user.Meta = meta
	return &user, nil
}
