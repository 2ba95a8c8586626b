package transport_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/trustkit/pkg/apierr"
	"github.com/aussiebroadwan/trustkit/pkg/transport"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	type user struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	t.Run("success envelope", func(t *testing.T) {
		resp := &transport.Response{StatusCode: http.StatusOK, Body: []byte(
			`{"success":true,"data":{"id":"u1","name":"ann"},"timestamp":"2024-01-01T00:00:00Z","trace":"abc"}`,
		)}

		var u user
		meta, err := transport.Decode(resp, &u)
		require.NoError(t, err)
		require.Equal(t, user{ID: "u1", Name: "ann"}, u)
		require.Equal(t, "2024-01-01T00:00:00Z", meta.Timestamp)
		require.JSONEq(t, `"abc"`, string(meta.Extra["trace"]))
	})

	t.Run("failure envelope with 2xx status", func(t *testing.T) {
		resp := &transport.Response{StatusCode: http.StatusOK, Body: []byte(
			`{"success":false,"error":{"code":"2003","message":"slow down"}}`,
		)}

		_, err := transport.Decode(resp, &user{})
		require.Error(t, err)

		normalized := apierr.Normalize(err)
		require.Equal(t, apierr.CodeTooManyAttempts, normalized.Code)
		require.Equal(t, apierr.CategoryBusiness, normalized.Category)
	})

	t.Run("bare object", func(t *testing.T) {
		resp := &transport.Response{StatusCode: http.StatusOK, Body: []byte(`{"id":"u2"}`)}

		var u user
		_, err := transport.Decode(resp, &u)
		require.NoError(t, err)
		require.Equal(t, "u2", u.ID)
	})

	t.Run("empty body", func(t *testing.T) {
		resp := &transport.Response{StatusCode: http.StatusNoContent}

		meta, err := transport.Decode(resp, &user{})
		require.NoError(t, err)
		require.Empty(t, meta.Timestamp)
	})

	t.Run("mismatched data is a system error", func(t *testing.T) {
		resp := &transport.Response{StatusCode: http.StatusOK, Body: []byte(`{"success":true,"data":[1,2]}`)}

		_, err := transport.Decode(resp, &user{})
		require.Error(t, err)
		require.Equal(t, apierr.CategorySystem, apierr.Normalize(err).Category)
	})
}
