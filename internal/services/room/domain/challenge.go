package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Challenge is an ownership token pair. The client keeps Secret private and
// publishes Hash inside documents it wants to be able to edit later; an edit
// request proves ownership by presenting Secret.
type Challenge struct {
	Secret string `json:"secret"`
	Hash   string `json:"hash"`
}

// NewChallenge issues a fresh ownership token pair.
func NewChallenge() (Challenge, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return Challenge{}, fmt.Errorf("read random bytes: %w", err)
	}
	secret := hex.EncodeToString(raw[:])
	return Challenge{Secret: secret, Hash: hashSecret(secret)}, nil
}

// VerifyChallenge reports whether secret matches the published hash.
func VerifyChallenge(secret, hash string) bool {
	secret = strings.TrimSpace(secret)
	hash = strings.TrimSpace(hash)
	if secret == "" || hash == "" {
		return false
	}
	computed := hashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
