// Package cryptox implements the salted credential hashing used by the
// offline vault. Hashes are argon2id digests; no plaintext password is ever
// persisted, and verification recomputes the digest over (salt, candidate).
package cryptox

import (
	"crypto/subtle"

	"github.com/dcornejo/ayudasync/internal/common"
	"golang.org/x/crypto/argon2"
)

const SaltSize = 32

// argon2id parameters: 1 pass, 64 MiB, 4 lanes, 32-byte digest.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// GenerateSalt returns a fresh random salt.
func GenerateSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// HashCredential derives the stored credential hash from a password and salt.
func HashCredential(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyCredential recomputes the hash for the candidate password and
// compares it against the stored hash in constant time.
func VerifyCredential(hash, password, salt []byte) bool {
	candidate := HashCredential(password, salt)
	return subtle.ConstantTimeCompare(hash, candidate) == 1
}
