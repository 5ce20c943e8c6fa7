package cryptohelper

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
)

// HashToken returns the URL-safe SHA-256 digest stored in place of a secret.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// TokenMatches compares a candidate against a stored HashToken digest.
func TokenMatches(hash, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(HashToken(candidate))) == 1
}

// NumericCode returns a uniformly random decimal code of the given length.
func NumericCode(length int) (string, error) {
	buf := make([]byte, length)
	ten := big.NewInt(10)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}
