package admin

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials is the single administrator account. The password is only ever
// held as a bcrypt hash.
type Credentials struct {
	email string
	hash  []byte
}

func NewCredentials(email, passwordHash string) Credentials {
	return Credentials{email: normalizeEmail(email), hash: []byte(passwordHash)}
}

// HashPassword is used by tooling and tests to produce a configurable hash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (c Credentials) Verify(email, password string) error {
	if c.email == "" || len(c.hash) == 0 {
		return ErrInvalidCredentials
	}
	if normalizeEmail(email) != c.email {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(c.hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
