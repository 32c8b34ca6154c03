package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"drawtica/internal/domain"
)

// bcryptCost is a variable so tests can lower it.
var bcryptCost = 12

const (
	minPasswordLength = 8
	specialCharacters = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

// HashPassword returns a bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// dummyHash is compared against when a login names an unknown email, so both
// failure paths spend the same bcrypt time.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := bcrypt.GenerateFromPassword([]byte("drawtica-timing"), bcryptCost)
	return string(hash)
})

// VerifyCredential reports whether plain matches the stored hash.
func VerifyCredential(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CheckStrength requires at least 8 characters with a lower-case letter, an
// upper-case letter, a digit and one special character.
func CheckStrength(plain string) error {
	if len([]rune(plain)) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	var lower, upper, digit, special bool
	for _, r := range plain {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialCharacters, r):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return domain.ErrWeakPassword
	}
	return nil
}

// newOpaqueToken returns 32 random bytes hex encoded, used for email
// verification and password reset links.
func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
