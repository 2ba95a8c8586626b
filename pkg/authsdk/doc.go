/*
Package authsdk manages the authentication session of one user against the
identity service.

# Overview

A Session owns the access/refresh token pair. It obtains tokens by logging in,
attaches the access token as a bearer credential to every call it makes, and
replaces or clears the pair on refresh and logout:

	client := transport.NewHTTPClient(transport.Config{APIKey: key})
	session := authsdk.NewSession(client)

	result, err := session.Login(ctx, authsdk.Credentials{
		Username: "alice",
		Password: "secret",
	})

	user, err := session.CurrentUser(ctx)

	// Caller decides when to refresh; nothing runs in the background.
	result, err = session.Refresh(ctx)

	err = session.Logout(ctx)

# Token state

The pair starts empty. Login and Refresh set both tokens only after the
remote call succeeds; a failed Login leaves the previous pair in place. A
failed Refresh clears both tokens so the caller is forced to log in again.
Logout clears both tokens whether or not the remote call succeeds.

A Refresh without a stored refresh token fails with
apierr.ErrInvalidRefreshToken and makes no network call.

Every token change is reported to listeners registered with OnTokenChange
before the changing call returns. The trustsdk package uses this to hand the
new access token to the verification workflow.

# Errors

Every method returns either its result or a single *apierr.Error:

	_, err := session.Login(ctx, creds)
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) && apiErr.Category == apierr.CategoryAuth {
		// ask for credentials again
	}

# Concurrency

Token reads and writes are guarded, so a Session may be shared between
goroutines. Concurrent Login and Refresh calls are not serialised against each
other; the last one to finish wins.
*/
package authsdk
