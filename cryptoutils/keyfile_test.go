package cryptoutils

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFile(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	testCases := []struct {
		name       string
		passphrase string
	}{
		{name: "plain hex", passphrase: ""},
		{name: "encrypted", passphrase: "correct horse battery staple"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "caller.key")
			require.NoError(t, SaveKeyFile(path, key, tc.passphrase))

			loaded, err := LoadKeyFile(path, tc.passphrase)
			require.NoError(t, err)
			assert.Equal(t, address, crypto.PubkeyToAddress(loaded.PublicKey))
		})
	}
}

func TestDecryptKey_WrongPassphrase(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sealed, err := EncryptKey(key, []byte("secret"))
	require.NoError(t, err)

	_, err = DecryptKey(sealed, []byte("not the secret"))
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	_, err = DecryptKey([]byte("not json"), []byte("secret"))
	assert.Error(t, err)
}

func TestEncryptKey_FreshSalt(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	a, err := EncryptKey(key, []byte("secret"))
	require.NoError(t, err)
	b, err := EncryptKey(key, []byte("secret"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
