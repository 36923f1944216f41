package credstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStore_PersistAndReload(t *testing.T) {
	dir := t.TempDir()

	s := New(dir, zap.NewNop())
	s.Set(AccessToken, "tok1")
	s.Set(RefreshToken, "ref1")
	s.Set(User, `{"id":1,"email":"a@b.c"}`)

	reloaded := New(dir, zap.NewNop())
	assert.Equal(t, "tok1", reloaded.Get(AccessToken))
	assert.Equal(t, "ref1", reloaded.Get(RefreshToken))
	assert.Equal(t, `{"id":1,"email":"a@b.c"}`, reloaded.Get(User))
}

func TestStore_GetMissing(t *testing.T) {
	s := New(t.TempDir(), zap.NewNop())
	assert.Equal(t, "", s.Get(AccessToken))
}

func TestStore_MalformedFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("{not json"), 0o600))

	s := New(dir, zap.NewNop())
	assert.Equal(t, "", s.Get(AccessToken))

	// The store must still be writable afterwards.
	s.Set(AccessToken, "tok1")
	assert.Equal(t, "tok1", New(dir, zap.NewNop()).Get(AccessToken))
}

func TestStore_ClearAllPurgesLegacyKeys(t *testing.T) {
	dir := t.TempDir()
	stale := map[string]string{
		string(AccessToken): "tok1",
		"token":             "old-token",
		"jwt":               "old-jwt",
		"auth_user":         "old-user",
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), data, 0o600))

	s := New(dir, zap.NewNop())
	s.ClearAll()

	var onDisk map[string]string
	raw, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Empty(t, onDisk)
}

func TestStore_SubscribeNotifies(t *testing.T) {
	s := New(t.TempDir(), zap.NewNop())

	var got []Kind
	unsub := s.Subscribe(func(k Kind) { got = append(got, k) })

	s.Set(AccessToken, "tok1")
	s.Clear(AccessToken)
	require.Equal(t, []Kind{AccessToken, AccessToken}, got)

	got = nil
	s.ClearAll()
	assert.ElementsMatch(t, []Kind{AccessToken, RefreshToken, User}, got)

	unsub()
	got = nil
	s.Set(RefreshToken, "ref1")
	assert.Empty(t, got)
}

func TestStore_UnwritableDirDoesNotFail(t *testing.T) {
	// Point the store at a path whose parent is a regular file so every
	// persist attempt fails.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s := New(filepath.Join(blocker, "nested"), zap.NewNop())
	s.Set(AccessToken, "tok1")

	// The value still lives in memory for the process lifetime.
	assert.Equal(t, "tok1", s.Get(AccessToken))
}
