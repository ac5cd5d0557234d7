package testutil

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-console/core"
)

// RunStorageTests runs the behavior every core.Storage must share against s.
func RunStorageTests(t *testing.T, s core.Storage) {
	ctx := context.Background()
	const (
		key   = "auth-storage"
		other = "theme-storage"
	)

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.Equal(t, core.ErrKeyNotFound, errors.Cause(err))
	})

	t.Run("round trip", func(t *testing.T) {
		data := []byte(`{"state":{"user":null,"accessToken":null,"refreshToken":null,"isAuthenticated":false},"version":0}`)
		assert.NoError(t, s.Put(ctx, key, data))
		assert.NoError(t, s.Put(ctx, other, []byte(`{"state":{"theme":"dark"},"version":0}`)))

		got, err := s.Get(ctx, key)
		assert.NoError(t, err)
		assert.JSONEq(t, string(data), string(got))

		got, err = s.Get(ctx, other)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"state":{"theme":"dark"},"version":0}`, string(got))
	})

	t.Run("overwrite", func(t *testing.T) {
		assert.NoError(t, s.Put(ctx, key, []byte(`{"version":0}`)))
		got, err := s.Get(ctx, key)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"version":0}`, string(got))
	})

	t.Run("delete", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, key))
		assert.NoError(t, s.Delete(ctx, key), "deleting twice is fine")
		_, err := s.Get(ctx, key)
		assert.Equal(t, core.ErrKeyNotFound, errors.Cause(err))

		_, err = s.Get(ctx, other)
		assert.NoError(t, err, "other keys are kept")
	})
}
