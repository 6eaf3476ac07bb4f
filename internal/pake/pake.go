package pake

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"conduit/internal/domain"
	"conduit/internal/util/memzero"
)

// KeySize is the session key length in bytes.
const KeySize = 32

var errShortMessage = errors.New("pake message has wrong length")

// State is one side's half-open exchange. Fields are exported so an
// in-progress handshake can be serialized and resumed.
type State struct {
	Priv []byte `json:"priv"` // clamped X25519 scalar
	Mask []byte `json:"mask"` // code-derived masking stream
	Msg  []byte `json:"msg"`  // our outbound masked public key
}

// Start derives the masking stream from appid and code and produces this
// side's outbound message.
func Start(appid string, code domain.Code) (*State, error) {
	priv := make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		return nil, err
	}
	clamp(priv)

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	salt := sha256.Sum256([]byte("conduit/pake/" + appid))
	mask := argon2.IDKey([]byte(code), salt[:16], 1<<16, 8, 1, 32)

	msg := make([]byte, 32)
	for i := range msg {
		msg[i] = pub[i] ^ mask[i]
	}
	return &State{Priv: priv, Mask: mask, Msg: msg}, nil
}

// Finish consumes the peer's message and returns the session key. Both
// sides compute the same key if and only if they derived the same mask,
// i.e. hold the same code.
func (st *State) Finish(peerMsg []byte) ([]byte, error) {
	if len(peerMsg) != 32 {
		return nil, errShortMessage
	}
	peerPub := make([]byte, 32)
	for i := range peerPub {
		peerPub[i] = peerMsg[i] ^ st.Mask[i]
	}

	shared, err := curve25519.X25519(st.Priv, peerPub)
	if err != nil {
		return nil, fmt.Errorf("pake finish: %w", err)
	}
	defer memzero.Zero(shared)

	// Transcript binds both masked messages, ordered so the two sides
	// agree regardless of who speaks first.
	lo, hi := st.Msg, peerMsg
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	transcript := append(append([]byte("conduit/session-key/"), lo...), hi...)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, transcript), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Verifier derives the value both humans compare out-of-band.
func Verifier(key []byte) []byte {
	return subkey(key, "conduit/verifier", KeySize)
}

// PhaseKey derives the AEAD key for one (sender side, phase) pair.
func PhaseKey(key []byte, side, phase string) []byte {
	purpose := fmt.Sprintf("conduit/phase/%x/%x", sha256.Sum256([]byte(side)), sha256.Sum256([]byte(phase)))
	return subkey(key, purpose, chacha20poly1305.KeySize)
}

// EncryptPhase seals plaintext under the (side, phase) key with a random
// nonce prepended.
func EncryptPhase(key []byte, side, phase string, plaintext []byte) ([]byte, error) {
	pk := PhaseKey(key, side, phase)
	defer memzero.Zero(pk)

	aead, err := chacha20poly1305.New(pk)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptPhase opens a phase body. An open failure means the sender holds
// a different key: wrong code or tampering.
func DecryptPhase(key []byte, side, phase string, body []byte) ([]byte, error) {
	pk := PhaseKey(key, side, phase)
	defer memzero.Zero(pk)

	aead, err := chacha20poly1305.New(pk)
	if err != nil {
		return nil, err
	}
	if len(body) < aead.NonceSize() {
		return nil, errShortMessage
	}
	nonce, ct := body[:aead.NonceSize()], body[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}

func subkey(key []byte, purpose string, n int) []byte {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(purpose)), out); err != nil {
		// HKDF over sha256 only fails past 255 blocks; n is fixed here.
		panic(err)
	}
	return out
}

func clamp(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
