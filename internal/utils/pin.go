package utils

import (
	"regexp" // Pattern matching

	"golang.org/x/crypto/bcrypt" // PIN hashing
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// IsValidPin checks that a PIN is 4 to 6 digits
func IsValidPin(pin string) bool {
	return pinPattern.MatchString(pin)
}

// HashPin hashes a PIN with bcrypt
func HashPin(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPin compares a PIN with its stored hash
func CheckPin(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
