package password

import (
	"errors"
	"strings"
)

var (
	// ErrUnsupportedHash is returned when no hasher recognises an encoded hash.
	ErrUnsupportedHash = errors.New("unsupported password hash")
	// ErrInvalidHash is returned for a recognised but malformed encoding.
	ErrInvalidHash = errors.New("invalid password hash")
)

// Hasher produces and checks encoded password hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	// NeedsRehash reports whether encodedHash was produced with weaker
	// parameters than the hasher is configured with.
	NeedsRehash(encodedHash string) (bool, error)
	// Recognizes reports whether encodedHash uses this hasher's encoding.
	Recognizes(encodedHash string) bool
}

// Multi hashes with a primary Hasher and verifies with whichever registered
// Hasher recognises the stored encoding.
type Multi struct {
	primary Hasher
	legacy  []Hasher
}

// NewMulti returns a Multi that hashes with primary and also verifies
// hashes produced by legacy.
func NewMulti(primary Hasher, legacy ...Hasher) *Multi {
	return &Multi{primary: primary, legacy: legacy}
}

func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *Multi) Verify(password, encodedHash string) (bool, error) {
	h, err := m.lookup(encodedHash)
	if err != nil {
		return false, err
	}
	return h.Verify(password, encodedHash)
}

// NeedsRehash is true for any hash not produced by the primary hasher, and
// otherwise defers to the primary.
func (m *Multi) NeedsRehash(encodedHash string) (bool, error) {
	if !m.primary.Recognizes(encodedHash) {
		if _, err := m.lookup(encodedHash); err != nil {
			return false, err
		}
		return true, nil
	}
	return m.primary.NeedsRehash(encodedHash)
}

func (m *Multi) Recognizes(encodedHash string) bool {
	_, err := m.lookup(encodedHash)
	return err == nil
}

func (m *Multi) lookup(encodedHash string) (Hasher, error) {
	if m.primary.Recognizes(encodedHash) {
		return m.primary, nil
	}
	for _, h := range m.legacy {
		if h.Recognizes(encodedHash) {
			return h, nil
		}
	}
	return nil, ErrUnsupportedHash
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
