// Package auth verifies the static access key that guards the API.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingKey = errors.New("missing access key")
	ErrInvalidKey = errors.New("invalid access key")
)

// Verifier checks presented keys against either a plain key or a bcrypt hash.
// A zero Verifier accepts everything.
type Verifier struct {
	plain []byte
	hash  []byte
}

// NewVerifier builds a verifier. When both are set the hash wins.
func NewVerifier(plainKey, keyHash string) Verifier {
	v := Verifier{}
	if h := strings.TrimSpace(keyHash); h != "" {
		v.hash = []byte(h)
		return v
	}
	if k := strings.TrimSpace(plainKey); k != "" {
		v.plain = []byte(k)
	}
	return v
}

// Enabled reports whether a key is required.
func (v Verifier) Enabled() bool {
	return len(v.plain) > 0 || len(v.hash) > 0
}

func (v Verifier) Verify(presented string) error {
	if !v.Enabled() {
		return nil
	}
	if presented == "" {
		return ErrMissingKey
	}
	if len(v.hash) > 0 {
		if err := bcrypt.CompareHashAndPassword(v.hash, []byte(presented)); err != nil {
			return ErrInvalidKey
		}
		return nil
	}
	if subtle.ConstantTimeCompare(v.plain, []byte(presented)) != 1 {
		return ErrInvalidKey
	}
	return nil
}

// FromRequest extracts the key from "Authorization: Bearer <key>" or the "apikey" header.
func FromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token
		}
	}
	return strings.TrimSpace(r.Header.Get("apikey"))
}

// HashKey returns a bcrypt hash suitable for WORKLOG_ACCESS_KEY_HASH.
func HashKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(hash), nil
}
