package profile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Encrypted fields are packed as `iv:authTag:ciphertext`, all hex, under
// AES-256-GCM with a 32-byte key supplied out of band.

const gcmKeySize = 32

var ErrDecrypt = errors.New("credential decryption failed")

// DecryptField unpacks and decrypts one stored credential field. Error text
// is deliberately generic: neither key nor plaintext material may leak.
func DecryptField(key []byte, packed string) (string, error) {
	if len(key) != gcmKeySize {
		return "", fmt.Errorf("%w: key size", ErrDecrypt)
	}
	parts := strings.Split(packed, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: packing", ErrDecrypt)
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: packing", ErrDecrypt)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: packing", ErrDecrypt)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: packing", ErrDecrypt)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: cipher", ErrDecrypt)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return "", fmt.Errorf("%w: cipher", ErrDecrypt)
	}
	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// EncryptField packs a credential field the way the enrollment process does.
// The adapter itself never writes profiles; this exists for tooling and tests.
func EncryptField(key []byte, plaintext string) (string, error) {
	if len(key) != gcmKeySize {
		return "", errors.New("encryption key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	tagStart := len(sealed) - gcm.Overhead()
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(sealed[tagStart:]) + ":" + hex.EncodeToString(sealed[:tagStart]), nil
}
