package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// TokenBytes is the entropy of every opaque token.
const TokenBytes = 32

// ErrMalformedToken is returned by DecodeToken for anything that is not a
// hex-encoded TokenBytes value.
var ErrMalformedToken = errors.New("malformed token")

// NewToken returns TokenBytes of crypto/rand output, hex-encoded.
func NewToken() (string, error) {
	var raw [TokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// DecodeToken validates the shape of an opaque token.
func DecodeToken(token string) ([TokenBytes]byte, error) {
	var raw [TokenBytes]byte
	if len(token) != hex.EncodedLen(TokenBytes) {
		return raw, ErrMalformedToken
	}
	if _, err := hex.Decode(raw[:], []byte(token)); err != nil {
		return raw, ErrMalformedToken
	}
	return raw, nil
}

// HashToken returns the hex SHA-256 of token. Only this value is persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
