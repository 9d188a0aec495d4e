package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters: time=1, memory=64MiB, threads=4, keyLen=32.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

// encryptedKey is the on-disk form of a passphrase-protected key.
type encryptedKey struct {
	Address    common.Address `json:"address"`
	KDF        string         `json:"kdf"`
	Salt       hexutil.Bytes  `json:"salt"`
	Nonce      hexutil.Bytes  `json:"nonce"`
	Ciphertext hexutil.Bytes  `json:"ciphertext"`
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// EncryptKey seals key under passphrase. The address is stored in the clear
// so a key file can be identified without the passphrase.
func EncryptKey(key *ecdsa.PrivateKey, passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	ciphertext := aead.Seal(nil, nonce, crypto.FromECDSA(key), address.Bytes())

	return json.MarshalIndent(encryptedKey{
		Address:    address,
		KDF:        "argon2id",
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, "", "  ")
}

// DecryptKey opens a key sealed by EncryptKey.
func DecryptKey(data []byte, passphrase []byte) (*ecdsa.PrivateKey, error) {
	var ek encryptedKey
	if err := json.Unmarshal(data, &ek); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	if ek.KDF != "argon2id" {
		return nil, fmt.Errorf("unsupported kdf %q", ek.KDF)
	}

	aead, err := newGCM(deriveKey(passphrase, ek.Salt))
	if err != nil {
		return nil, err
	}
	if len(ek.Nonce) != aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}

	raw, err := aead.Open(nil, ek.Nonce, ek.Ciphertext, ek.Address.Bytes())
	if err != nil {
		return nil, ErrWrongPassphrase
	}

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid key material: %w", err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != ek.Address {
		return nil, ErrWrongPassphrase
	}
	return key, nil
}

// SaveKeyFile writes key to path with 0600 permissions. An empty passphrase
// stores the key as plain hex.
func SaveKeyFile(path string, key *ecdsa.PrivateKey, passphrase string) error {
	if passphrase == "" {
		return crypto.SaveECDSA(path, key)
	}

	data, err := EncryptKey(key, []byte(passphrase))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadKeyFile reads a key written by SaveKeyFile.
func LoadKeyFile(path string, passphrase string) (*ecdsa.PrivateKey, error) {
	if passphrase == "" {
		key, err := crypto.LoadECDSA(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load key from %s: %w", path, err)
		}
		return key, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecryptKey(data, []byte(passphrase))
}
