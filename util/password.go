package util

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordPolicy defines password complexity requirements for local accounts.
type PasswordPolicy struct {
	MinLength      int // Minimum password length (default: 12)
	MaxLength      int // Maximum password length, bounds bcrypt input (default: 72)
	RequireClasses int // Number of character classes required (default: 3 of 4)
}

// DefaultPasswordPolicy returns the default password policy.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:      12,
		MaxLength:      72,
		RequireClasses: 3,
	}
}

// countCharacterClasses reports which of the four character classes appear.
func countCharacterClasses(password string) (lower, upper, digit, special bool) {
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	return lower, upper, digit, special
}

// Validate checks a candidate password against the policy. The username is
// rejected as a substring to stop the most obvious self-referential passwords.
func (p *PasswordPolicy) Validate(password, username string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters", p.MinLength)
	}
	if len(password) > p.MaxLength {
		return fmt.Errorf("password must be at most %d characters", p.MaxLength)
	}

	lower, upper, digit, special := countCharacterClasses(password)
	classes := 0
	for _, present := range []bool{lower, upper, digit, special} {
		if present {
			classes++
		}
	}
	if classes < p.RequireClasses {
		return fmt.Errorf("password must contain at least %d of: lowercase, uppercase, digits, special characters", p.RequireClasses)
	}

	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		return errors.New("password must not contain the username")
	}

	return nil
}

// HashPassword hashes a plaintext password with bcrypt at the given cost.
// Cost values outside bcrypt's range fall back to the library default.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
