package common

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
)

// MakeRandHexString generates a random hexadecimal string of the given size.
// The final string length is twice the size.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeRandString returns a string of length n whose symbols are chosen
// uniformly from alphabet using crypto/rand.
func MakeRandString(alphabet string, n int) (string, error) {
	if len(alphabet) == 0 {
		return "", errors.New("empty alphabet")
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}

	return string(out), nil
}

// WipeByteArray overwrites the contents of b with zeros. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
