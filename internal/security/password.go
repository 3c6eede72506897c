package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

var (
	ErrPasswordEmpty    = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrPasswordBlank    = errors.New("password must not be only whitespace")
)

type PasswordHasher struct {
	cost      int
	minLength int
	dummyHash []byte
}

// NewPasswordHasher precomputes a throwaway hash so that Compare against an
// unknown account costs the same as against a real one.
func NewPasswordHasher(cost int, minLength int) (*PasswordHasher, error) {
	if minLength < 1 {
		minLength = 1
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}

	return &PasswordHasher{cost: cost, minLength: minLength, dummyHash: dummy}, nil
}

func (h *PasswordHasher) CheckPolicy(password string) error {
	switch {
	case password == "":
		return ErrPasswordEmpty
	case strings.TrimFunc(password, unicode.IsSpace) == "":
		return ErrPasswordBlank
	case len([]rune(password)) < h.minLength:
		return fmt.Errorf("%w: minimum %d characters", ErrPasswordTooShort, h.minLength)
	case len(password) > maxPasswordBytes:
		return ErrPasswordTooLong
	}
	return nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if err := h.CheckPolicy(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *PasswordHasher) Compare(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CompareDummy burns one comparison's worth of CPU and always fails.
func (h *PasswordHasher) CompareDummy(password string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
	return false
}
