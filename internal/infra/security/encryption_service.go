// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values written by Seal. Values without it are
// returned untouched by Open so rows stored before sealing was enabled
// stay readable.
const sealedPrefix = "v1:"

var ErrEmptyKey = errors.New("encryption key is empty")

// EncryptionService seals transcript content at rest with AES-256-GCM and a
// random nonce per message.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService derives the AES-256 key as sha256(passphrase), so
// any non-empty passphrase works.
func NewEncryptionService(passphrase string) (*EncryptionService, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}
	k := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// Seal returns "v1:" + base64(nonce || ciphertext).
func (e *EncryptionService) Seal(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

// Open reverses Seal. Unprefixed input is plaintext and comes back as is.
func (e *EncryptionService) Open(stored string) (string, error) {
	b64, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ct := data[:ns], data[ns:]
	pt, err := e.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
