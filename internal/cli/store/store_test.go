package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/trustkit/internal/cli/store"
	"github.com/aussiebroadwan/trustkit/pkg/verifysdk"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	s := openStore(t)
	require.NoError(t, s.ApplyMigrations())
}

func TestSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	_, err := s.LoadSession(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveSession(ctx, store.SealedSession{Salt: []byte("salt-1"), Sealed: []byte("one"), UpdatedAt: now}))
	require.NoError(t, s.SaveSession(ctx, store.SealedSession{Salt: []byte("salt-2"), Sealed: []byte("two"), UpdatedAt: now}))

	got, err := s.LoadSession(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("salt-2"), got.Salt)
	require.Equal(t, []byte("two"), got.Sealed)
	require.WithinDuration(t, now, got.UpdatedAt, time.Second)

	require.NoError(t, s.DeleteSession(ctx))
	_, err = s.LoadSession(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestVerifications(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	expires := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
	v := verifysdk.Verification{
		ID:        "01J0000000000000000000000A",
		UserID:    "u1",
		Type:      verifysdk.TypeEmail,
		Status:    verifysdk.StatusPending,
		Data:      json.RawMessage(`{"email":"a@b.com"}`),
		Metadata:  verifysdk.Metadata{AttemptCount: 2, Source: "api"},
		ExpiresAt: &expires,
	}
	require.NoError(t, s.SaveVerification(ctx, v))

	got, err := s.GetVerification(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, v.ID, got.ID)
	require.Equal(t, 2, got.Metadata.AttemptCount)
	require.JSONEq(t, `{"email":"a@b.com"}`, string(got.Data))
	require.True(t, expires.Equal(*got.ExpiresAt))

	v.Status = verifysdk.StatusApproved
	require.NoError(t, s.SaveVerification(ctx, v))

	all, err := s.ListVerifications(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, verifysdk.StatusApproved, all[0].Status)

	require.NoError(t, s.DeleteVerification(ctx, v.ID))
	_, err = s.GetVerification(ctx, v.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
