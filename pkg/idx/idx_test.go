package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/trustkit/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := idx.Parse(s)
		require.ErrorIs(t, err, idx.ErrInvalid, "input %q", s)
	}
}

func TestMonotonicOrdering(t *testing.T) {
	tm := time.Unix(1700000000, 0)
	a := idx.NewAt(tm)
	b := idx.NewAt(tm)

	// Same millisecond, the monotonic source still increases
	require.Less(t, a.String(), b.String())
}
