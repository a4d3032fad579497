package utils

import (
	"crypto/subtle"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns a plain password into its stored form and checks a
// login attempt against it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(stored, plain string) bool
}

// PlainHasher stores passwords as given. It exists for databases created
// before hashing was introduced.
type PlainHasher struct{}

func (PlainHasher) Hash(plain string) (string, error) { return plain, nil }

// Verify compares in constant time.
func (PlainHasher) Verify(stored, plain string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
}

// MaxBcryptPasswordBytes is the longest input bcrypt accepts.
const MaxBcryptPasswordBytes = 72

// ErrPasswordTooLong is returned by BcryptHasher.Hash for passwords over
// MaxBcryptPasswordBytes. It is the caller's input at fault, not the server.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// BcryptHasher hashes with bcrypt at the given cost.
type BcryptHasher struct{ Cost int }

func (h BcryptHasher) Hash(plain string) (string, error) {
	if len(plain) > MaxBcryptPasswordBytes {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt hash")
	}
	return string(b), nil
}

func (BcryptHasher) Verify(stored, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
}

// NewPasswordHasher picks the hasher for PASSWORD_HASHING.
func NewPasswordHasher(mode string, cost int) (PasswordHasher, error) {
	switch mode {
	case "", "plain":
		return PlainHasher{}, nil
	case "bcrypt":
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, errors.Errorf("bcrypt cost %d out of range", cost)
		}
		return BcryptHasher{Cost: cost}, nil
	}
	return nil, errors.Errorf("unknown password hashing mode %q", mode)
}
