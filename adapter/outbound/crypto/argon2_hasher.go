package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/ajkula/logwatcher/domain/port/outbound"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 1
	memoryKiB  = 64 * 1024
	threads    = 4
)

// Argon2Hasher encodes hashes as "<hex salt>$<hex argon2id key>"
type Argon2Hasher struct{}

func NewArgon2Hasher() outbound.PasswordHasher {
	return &Argon2Hasher{}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	// Argon2id - OWASP 2024
	key := argon2.IDKey([]byte(password), salt, iterations, memoryKiB, threads, keySize)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(key), nil
}

func (h *Argon2Hasher) Verify(password, encoded string) bool {
	saltHex, keyHex, ok := strings.Cut(encoded, "$")
	if !ok {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(keyHex)
	if err != nil || len(expected) != keySize {
		return false
	}

	key := argon2.IDKey([]byte(password), salt, iterations, memoryKiB, threads, keySize)
	return subtle.ConstantTimeCompare(key, expected) == 1
}
