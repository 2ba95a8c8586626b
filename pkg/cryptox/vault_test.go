package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	t.Parallel()

	salt, err := NewSalt()
	require.NoError(t, err)
	key := DeriveKey("correct horse", salt)
	require.Len(t, key, 32)

	sealed, err := Seal(key, []byte("refresh-token"))
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "refresh-token")

	plain, err := Open(key, sealed)
	require.NoError(t, err)
	require.Equal(t, "refresh-token", string(plain))

	t.Run("wrong passphrase", func(t *testing.T) {
		_, err := Open(DeriveKey("wrong", salt), sealed)
		require.Error(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0xff
		_, err := Open(key, bad)
		require.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := Open(key, []byte{1, 2, 3})
		require.ErrorIs(t, err, ErrSealedDataTooShort)
	})
}
