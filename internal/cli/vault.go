package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/trustkit/internal/cli/store"
	"github.com/aussiebroadwan/trustkit/pkg/authsdk"
	"github.com/aussiebroadwan/trustkit/pkg/cryptox"
)

var ErrNoPassphrase = errors.New("TRUST_VAULT_PASSPHRASE is not set")

type sealedPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// sealTokens encrypts pair under a key derived from passphrase with a fresh
// salt.
func sealTokens(passphrase string, pair authsdk.TokenPair, now time.Time) (store.SealedSession, error) {
	if passphrase == "" {
		return store.SealedSession{}, ErrNoPassphrase
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return store.SealedSession{}, err
	}

	plain, err := json.Marshal(sealedPair{Access: pair.Access, Refresh: pair.Refresh})
	if err != nil {
		return store.SealedSession{}, err
	}

	sealed, err := cryptox.Seal(cryptox.DeriveKey(passphrase, salt), plain)
	if err != nil {
		return store.SealedSession{}, fmt.Errorf("failed to seal session: %w", err)
	}

	return store.SealedSession{Salt: salt, Sealed: sealed, UpdatedAt: now}, nil
}

func openTokens(passphrase string, sess store.SealedSession) (authsdk.TokenPair, error) {
	if passphrase == "" {
		return authsdk.TokenPair{}, ErrNoPassphrase
	}

	plain, err := cryptox.Open(cryptox.DeriveKey(passphrase, sess.Salt), sess.Sealed)
	if err != nil {
		return authsdk.TokenPair{}, fmt.Errorf("failed to open session: %w", err)
	}

	var p sealedPair
	if err := json.Unmarshal(plain, &p); err != nil {
		return authsdk.TokenPair{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return authsdk.TokenPair{Access: p.Access, Refresh: p.Refresh}, nil
}
