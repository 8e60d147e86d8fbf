package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestRegistryToken_Keyring(t *testing.T) {
	keyring.MockInit()
	t.Setenv(tokenEnvVar, "")
	dir := t.TempDir()

	token, err := getRegistryToken(dir)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, saveRegistryToken(dir, "s3cret"))
	assert.NoFileExists(t, filepath.Join(dir, tokenFileName))

	token, err = getRegistryToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", token)

	require.NoError(t, deleteRegistryToken(dir))
	token, err = getRegistryToken(dir)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRegistryToken_EnvWins(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	require.NoError(t, saveRegistryToken(dir, "from-keychain"))

	t.Setenv(tokenEnvVar, "from-env")
	token, err := getRegistryToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestRegistryToken_FileFallback(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keychain"))
	t.Cleanup(keyring.MockInit)
	t.Setenv(tokenEnvVar, "")
	dir := t.TempDir()

	require.NoError(t, saveRegistryToken(dir, "s3cret\n"))
	assert.FileExists(t, filepath.Join(dir, tokenFileName))

	token, err := getRegistryToken(dir)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", token)

	require.NoError(t, deleteRegistryToken(dir))
	assert.NoFileExists(t, filepath.Join(dir, tokenFileName))
}
