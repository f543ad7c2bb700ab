package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	token, err := s.Get()
	require.NoError(t, err)
	assert.Empty(t, token, "fresh store holds no token")

	require.NoError(t, s.Set("tok1"))
	token, err = s.Get()
	require.NoError(t, err)
	assert.Equal(t, "tok1", token)

	require.NoError(t, s.Set("tok2"))
	token, _ = s.Get()
	assert.Equal(t, "tok2", token)

	require.NoError(t, s.Clear())
	token, err = s.Get()
	require.NoError(t, err)
	assert.Empty(t, token)

	assert.NoError(t, s.Clear(), "clearing an empty slot is not an error")
	assert.Error(t, s.Set(""))
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	exerciseStore(t, NewFile(path))

	require.NoError(t, NewFile(path).Set("persisted"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err := NewFile(path).Get()
	require.NoError(t, err)
	assert.Equal(t, "persisted", token, "a second handle sees the same slot")
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := NewFile(path).Get()
	assert.ErrorContains(t, err, "failed to parse token file")
}

func TestKeyring(t *testing.T) {
	keyring.MockInit()
	exerciseStore(t, NewKeyring())
}

func TestOpen(t *testing.T) {
	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open("file", filepath.Join(t.TempDir(), "t.json"))
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open("vault", "")
	assert.Error(t, err)
}
