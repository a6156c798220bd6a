package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	saltLen = 16
	keyLen  = 64

	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// HashPassword returns "hex(hash).hex(salt)" using scrypt with a fresh random salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: salt: %w", err)
	}
	hash, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return "", fmt.Errorf("auth: scrypt: %w", err)
	}
	return hex.EncodeToString(hash) + "." + hex.EncodeToString(salt), nil
}

// ComparePasswords recomputes the hash of supplied with the stored salt and compares
// in constant time. A malformed stored value never matches.
func ComparePasswords(supplied, stored string) bool {
	hashHex, saltHex, ok := strings.Cut(stored, ".")
	if !ok {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil || len(want) == 0 {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	got, err := scrypt.Key([]byte(supplied), salt, scryptN, scryptR, scryptP, len(want))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

// WellFormedHash reports whether stored has the shape HashPassword produces.
func WellFormedHash(stored string) bool {
	hashHex, saltHex, ok := strings.Cut(stored, ".")
	if !ok || len(hashHex) != keyLen*2 || len(saltHex) != saltLen*2 {
		return false
	}
	_, err1 := hex.DecodeString(hashHex)
	_, err2 := hex.DecodeString(saltHex)
	return err1 == nil && err2 == nil
}
