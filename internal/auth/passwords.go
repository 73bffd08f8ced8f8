package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned for any email/password mismatch, without
// telling the caller which part was wrong.
var ErrBadCredentials = errors.New("auth: invalid credentials")

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword verifies plain against a stored hash.
func CheckPassword(hashed, plain string) error {
	if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) != nil {
		return ErrBadCredentials
	}
	return nil
}
