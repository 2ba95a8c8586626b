package catalog_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/trustkit/pkg/catalog"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	c := catalog.Default()

	t.Run("static path", func(t *testing.T) {
		method, path, err := c.Resolve(catalog.OpStartVerification, nil)
		require.NoError(t, err)
		require.Equal(t, http.MethodPost, method)
		require.Equal(t, "/verification/start", path)
	})

	t.Run("path parameter is escaped", func(t *testing.T) {
		method, path, err := c.Resolve(catalog.OpConfirmVerification, map[string]string{catalog.ParamID: "a/b"})
		require.NoError(t, err)
		require.Equal(t, http.MethodPost, method)
		require.Equal(t, "/verification/a%2Fb/confirm", path)
	})

	t.Run("missing parameter", func(t *testing.T) {
		_, _, err := c.Resolve(catalog.OpGetVerification, nil)
		require.ErrorIs(t, err, catalog.ErrMissingParam)
		require.Contains(t, err.Error(), "unresolved")
	})

	t.Run("empty parameter", func(t *testing.T) {
		_, _, err := c.Resolve(catalog.OpListUserVerification, map[string]string{catalog.ParamUserID: ""})
		require.ErrorIs(t, err, catalog.ErrMissingParam)
	})

	t.Run("unknown operation", func(t *testing.T) {
		_, _, err := c.Resolve(catalog.Operation("nope"), nil)
		require.Error(t, err)
		require.NotErrorIs(t, err, catalog.ErrMissingParam)
	})

	t.Run("catalog can be swapped", func(t *testing.T) {
		custom := catalog.Catalog{
			catalog.OpLogin: {Method: http.MethodPost, Path: "/v2/session"},
		}
		_, path, err := custom.Resolve(catalog.OpLogin, nil)
		require.NoError(t, err)
		require.Equal(t, "/v2/session", path)
	})
}
