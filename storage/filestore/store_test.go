package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-console/core/session"
	"github.com/trezcool/masomo-console/core/user"
	"github.com/trezcool/masomo-console/tests"
)

func TestStore(t *testing.T) {
	testutil.RunStorageTests(t, New(t.TempDir(), "default"))
}

func TestStore_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "masomo")
	s := New(dir, "")
	assert.Equal(t, filepath.Join(dir, "default.json"), s.Path())

	ctx := context.Background()
	assert.NoError(t, s.Put(ctx, "theme-storage", []byte(`{"state":{"theme":"dark"},"version":0}`)))

	info, err := os.Stat(s.Path())
	if assert.NoError(t, err) {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")

	assert.Equal(t, errNotJSON, s.Put(ctx, "theme-storage", []byte("not json")))
}

func TestStore_Profiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	a, b := New(dir, "school-a"), New(dir, "school-b")

	assert.NoError(t, a.Put(ctx, "k", []byte(`1`)))
	_, err := b.Get(ctx, "k")
	assert.Error(t, err, "profiles are isolated")
}

func TestStore_Corrupt(t *testing.T) {
	s := New(t.TempDir(), "default")
	assert.NoError(t, os.WriteFile(s.Path(), []byte("{oops"), 0o600))

	_, err := s.Get(context.Background(), "auth-storage")
	assert.Error(t, err)

	// a corrupt store rehydrates to the empty session instead of failing
	logger := new(testutil.Logger)
	store := session.NewStore(session.Options{Storage: s, Logger: logger})
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, 1, logger.Count("WARN"))
}

func TestStore_SessionSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	usr := testutil.NewUser(3, "jdoe", user.RoleAdmin)

	first := session.NewStore(session.Options{Storage: New(dir, "default")})
	first.Commit(usr, "access", "refresh")

	second := session.NewStore(session.Options{Storage: New(dir, "default")})
	assert.True(t, second.IsAuthenticated())
	assert.True(t, second.IsAdmin())
	assert.Equal(t, "access", second.AccessToken())
}
