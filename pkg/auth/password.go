// pkg/auth/password.go
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWeakPassword     = errors.New("password does not meet requirements")
	ErrPasswordMismatch = errors.New("password does not match")
)

const (
	DefaultMinPasswordLength = 6
	DefaultBcryptCost        = bcrypt.DefaultCost
)

// PasswordManager handles password hashing and validation
type PasswordManager struct {
	minLength int
	cost      int
}

// NewPasswordManager creates a password manager. Out of range values fall
// back to the defaults.
func NewPasswordManager(minLength, cost int) *PasswordManager {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordManager{minLength: minLength, cost: cost}
}

// MinLength is the shortest accepted password.
func (pm *PasswordManager) MinLength() int { return pm.minLength }

// HashPassword validates and hashes a password using bcrypt
func (pm *PasswordManager) HashPassword(password string) (string, error) {
	if err := pm.ValidatePassword(password); err != nil {
		return "", err
	}
	return pm.hash(password)
}

func (pm *PasswordManager) hash(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), pm.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ValidatePassword checks the length requirement.
func (pm *PasswordManager) ValidatePassword(password string) error {
	if len(password) < pm.minLength {
		return fmt.Errorf("%w: minimum length is %d characters", ErrWeakPassword, pm.minLength)
	}
	return nil
}

// IsHash reports whether stored looks like a bcrypt hash rather than a
// legacy plaintext password.
func IsHash(stored string) bool {
	if len(stored) != 60 {
		return false
	}
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// Verify checks password against the stored value. Stored values that are
// not bcrypt hashes are compared in constant time and, on a match, a fresh
// hash is returned so the caller can upgrade the record.
func (pm *PasswordManager) Verify(stored, password string) (upgraded string, err error) {
	if IsHash(stored) {
		if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)); err != nil {
			return "", ErrPasswordMismatch
		}
		return "", nil
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 {
		return "", ErrPasswordMismatch
	}
	upgraded, err = pm.hash(password)
	if err != nil {
		return "", err
	}
	return upgraded, nil
}
