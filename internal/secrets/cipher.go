// Package secrets encrypts sensitive employee fields (SSN, service passwords) at rest.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrMalformed = errors.New("secrets: malformed ciphertext")
	ErrNoKey     = errors.New("secrets: empty key material")
)

const (
	nonceSize = 12
	tagSize   = 16
)

// Cipher is AES-256-GCM keyed from the configured secret.
// Output format is hex(iv):hex(authTag):hex(ciphertext); every call draws a fresh iv
// and that same iv is what seals the record.
type Cipher struct {
	aead cipher.AEAD
}

// New derives a 32-byte key with argon2id from secret and salt.
func New(secret, salt string) (*Cipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoKey
	}
	key := argon2.IDKey([]byte(secret), []byte(salt), 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: aes: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("secrets: gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plain. Empty input stays empty so optional fields round-trip.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	iv := make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("secrets: iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plain), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

func (c *Cipher) Decrypt(enc string) (string, error) {
	if enc == "" {
		return "", nil
	}
	parts := strings.Split(enc, ":")
	if len(parts) != 3 {
		return "", ErrMalformed
	}
	iv, err1 := hex.DecodeString(parts[0])
	tag, err2 := hex.DecodeString(parts[1])
	ct, err3 := hex.DecodeString(parts[2])
	if err := errors.Join(err1, err2, err3); err != nil || len(iv) != nonceSize || len(tag) != tagSize {
		return "", ErrMalformed
	}
	plain, err := c.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("secrets: open: %w", err)
	}
	return string(plain), nil
}

// IsEncrypted reports whether s looks like Encrypt output.
func IsEncrypted(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || len(parts[0]) != nonceSize*2 || len(parts[1]) != tagSize*2 {
		return false
	}
	for _, p := range parts {
		if _, err := hex.DecodeString(p); err != nil {
			return false
		}
	}
	return true
}

// MaskSSN decrypts enc and reveals only the last four characters.
func (c *Cipher) MaskSSN(enc string) (string, error) {
	if enc == "" {
		return "", nil
	}
	plain, err := c.Decrypt(enc)
	if err != nil {
		return "", err
	}
	return Mask(plain), nil
}

// Mask hides all but the last four digits of an SSN.
func Mask(ssn string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, ssn)
	if len(digits) < 4 {
		return "***-**-****"
	}
	return "***-**-" + digits[len(digits)-4:]
}
