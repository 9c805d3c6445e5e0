package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "owner.key")
	addr, err := GenerateKeyFile(path)
	require.NoError(t, err)

	key, err := LoadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, addr, KeyAddress(key))

	_, err = GenerateKeyFile(path)
	require.ErrorIs(t, err, ErrKeyExists)
}
