package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltLen = 16
	keyLen  = 32 // AES-256
)

// KDFParams are the Argon2id parameters a vault was sealed with. They are
// stored alongside the ciphertext so they can be raised without breaking
// existing files.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"` // KiB
	Threads uint8  `json:"threads"`
}

// DefaultKDF is used for newly created vaults.
var DefaultKDF = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

func (p KDFParams) orDefault() KDFParams {
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return DefaultKDF
	}
	return p
}

// DeriveKey derives a 32-byte key from a password and salt using Argon2id.
func DeriveKey(password, salt []byte, p KDFParams) []byte {
	p = p.orDefault()
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, keyLen)
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal encrypts plaintext with AES-256-GCM and returns nonce || ciphertext.
// additional is authenticated but not encrypted.
func seal(key, plaintext, additional []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, additional), nil
}

// open reverses seal.
func open(key, data, additional []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, additional)
}
