package local

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

var errPasswordTooLong = errors.New("password exceeds maximum length of 72 bytes")

// hashPassword creates a bcrypt hash of the password.
func hashPassword(password string, cost int) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", errPasswordTooLong
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword compares a password with its hash.
// It reports false for a mismatch and an error for anything else.
func checkPassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
