package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// These tests swap package-level seams and must not run in parallel.

func TestPromptPassword(t *testing.T) {
	origRead, origTerm := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = origRead, origTerm })

	isTerminal = func(int) bool { return false }
	_, err := promptPassword()
	require.ErrorIs(t, err, errNoPassword)

	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("hunter2"), nil }
	pw, err := promptPassword()
	require.NoError(t, err)
	require.Equal(t, "hunter2", pw)

	boom := errors.New("boom")
	readPassword = func(int) ([]byte, error) { return nil, boom }
	_, err = promptPassword()
	require.ErrorIs(t, err, boom)
}
