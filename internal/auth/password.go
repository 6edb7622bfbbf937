package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password verifies login attempts against a bcrypt hash or, when no hash
// is configured, a plain secret compared in constant time.
type Password struct {
	plain []byte
	hash  []byte
}

// NewPassword builds a Password. hash wins when both are set.
func NewPassword(plain, hash string) Password {
	if hash = strings.TrimSpace(hash); hash != "" {
		return Password{hash: []byte(hash)}
	}
	return Password{plain: []byte(plain)}
}

// Matches reports whether candidate is the configured password.
func (p Password) Matches(candidate string) bool {
	if candidate == "" {
		return false
	}
	if len(p.hash) > 0 {
		return bcrypt.CompareHashAndPassword(p.hash, []byte(candidate)) == nil
	}
	if len(p.plain) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(p.plain, []byte(candidate)) == 1
}
