// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is used when a Hasher is built with a cost outside bcrypt's range.
const DefaultCost = 12

// ErrEmptyPassword is returned by Hash for an empty plaintext.
var ErrEmptyPassword = errors.New("password must not be empty")

// Hasher produces salted bcrypt hashes. The zero value uses DefaultCost.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the encoded bcrypt hash (salt and cost included) of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	cost := h.cost
	if cost == 0 {
		cost = DefaultCost
	}

	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plaintext matches hash. bcrypt compares the final
// digests with subtle.ConstantTimeCompare. A malformed hash yields false.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
