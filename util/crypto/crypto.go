// Package crypto provides password digesting and verification.
//
// Digests are Argon2id keyed by a per-user random salt stored next to the
// digest, so Hash is deterministic for a given password and salt.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  int
}

// DefaultParams follow the RFC 9106 second recommended option.
var DefaultParams = Params{
	MemoryKiB:   64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	KeyLength:   32,
	SaltLength:  16,
}

var params = DefaultParams

// SetParams replaces the package parameters; tests use it to lower the cost.
func SetParams(p Params) {
	params = p
}

// NewSalt returns a base64 encoded random salt.
func NewSalt() (string, error) {
	b := make([]byte, params.SaltLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

// Hash returns the base64 Argon2id digest of password under salt.
func Hash(password, salt string) string {
	key := argon2.IDKey(
		[]byte(password),
		[]byte(salt),
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		params.KeyLength,
	)
	return base64.RawStdEncoding.EncodeToString(key)
}

// Verify recomputes the digest and compares it in constant time.
func Verify(password, salt, digest string) bool {
	expected, err := base64.RawStdEncoding.DecodeString(digest)
	if err != nil || len(expected) == 0 {
		return false
	}
	got, _ := base64.RawStdEncoding.DecodeString(Hash(password, salt))
	return subtle.ConstantTimeCompare(got, expected) == 1
}
