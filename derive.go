package conduit

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"

	"conduit/internal/domain"
)

const maxDerivedLen = 255 * sha256.Size

// DeriveKey derives length bytes from the established session key for
// some other purpose. The derivation is deterministic and sensitive to
// both purpose and length, so two endpoints holding the same session key
// derive matching subkeys without further negotiation. It fails with
// domain.ErrNoKey until the key has been delivered; the key stays cached
// after close, so derivation keeps working once the channel has ended.
func (s *Session) DeriveKey(purpose string, length int) ([]byte, error) {
	s.mu.Lock()
	var key []byte
	if s.key.set {
		key = s.key.value
	}
	s.mu.Unlock()
	return deriveKey(key, purpose, length)
}

func deriveKey(key []byte, purpose string, length int) ([]byte, error) {
	if purpose == "" || !utf8.ValidString(purpose) {
		return nil, domain.PurposeError(fmt.Sprintf("%q", purpose))
	}
	if length <= 0 || length > maxDerivedLen {
		return nil, fmt.Errorf("derived key length %d out of range [1, %d]", length, maxDerivedLen)
	}
	if len(key) == 0 {
		return nil, domain.ErrNoKey
	}

	// The requested length is bound into the salt so asking for 16 bytes
	// does not just truncate the 32-byte answer.
	salt := make([]byte, 4)
	binary.BigEndian.PutUint32(salt, uint32(length))

	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, salt, []byte(purpose)), out); err != nil {
		return nil, err
	}
	return out, nil
}
