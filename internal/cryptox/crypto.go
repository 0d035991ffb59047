// Package cryptox holds the password hashing primitives used to verify user
// credentials. Hashers are injected into the session manager so the
// algorithm can change without touching the protocol code.
package cryptox

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns a secret into a self-describing, salted hash and checks a
// candidate secret against such a hash.
type Hasher interface {
	Hash(secret []byte) (string, error)
	// Verify reports whether secret matches hash. Malformed hashes and
	// internal failures report false.
	Verify(secret []byte, hash string) bool
}

// BcryptHasher is the default Hasher.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// bcryptMaxSecret is the number of secret bytes bcrypt actually reads.
const bcryptMaxSecret = 72

// Verify rejects secrets longer than bcrypt reads; otherwise any input
// sharing the first 72 bytes of the registered secret would match.
func (h *BcryptHasher) Verify(secret []byte, hash string) bool {
	if len(secret) > bcryptMaxSecret {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), secret)
	return err == nil
}

// ErrUnknownHasher is returned by New for unsupported algorithm names.
var ErrUnknownHasher = errors.New("unknown password hasher")

// New builds a Hasher by name: "bcrypt" (default when empty) or "argon2id".
func New(name string, bcryptCost int) (Hasher, error) {
	switch name {
	case "", "bcrypt":
		return NewBcryptHasher(bcryptCost), nil
	case "argon2id":
		return NewArgon2Hasher(DefaultArgon2Params), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
}
