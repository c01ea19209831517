package crypto

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "funder.json")

	addr, err := SaveKeystore(path, key, "correct horse", LightKeystore, false)
	require.NoError(t, err)
	require.True(t, addr.Equal(key.PubKey().Address()))

	loaded, err := LoadKeystore(path, "correct horse")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadKeystore(path, "wrong")
	require.Error(t, err)
}

func TestKeystoreRefusesOverwrite(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "admin.json")

	_, err = SaveKeystore(path, key, "pw", LightKeystore, false)
	require.NoError(t, err)

	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	_, err = SaveKeystore(path, other, "pw", LightKeystore, false)
	require.True(t, errors.Is(err, ErrKeystoreExists))

	addr, err := SaveKeystore(path, other, "pw", LightKeystore, true)
	require.NoError(t, err)
	loaded, err := LoadKeystore(path, "pw")
	require.NoError(t, err)
	require.True(t, addr.Equal(loaded.PubKey().Address()))
}
