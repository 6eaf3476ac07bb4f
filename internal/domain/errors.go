package domain

import (
	"errors"
	"fmt"
)

// ErrNoKey is returned by key derivation before the session key exists.
var ErrNoKey = errors.New("no session key established yet")

// ErrWrongCode is the session failure raised when a peer message fails
// authentication during the handshake: either the two sides typed
// different codes or someone is tampering.
var ErrWrongCode = errors.New("key confirmation failed: wrong code or tampered message")

// UsageError reports a facade call made out of the allowed order. It is
// raised locally and synchronously, before the engine is touched.
type UsageError string

func (e UsageError) Error() string { return "usage: " + string(e) }

// ClosedError fails reads attempted after a clean close. The close
// outcome itself is not an error for the closer, but nothing further will
// ever arrive for readers.
type ClosedError struct {
	Mood Mood
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("session closed (%s)", e.Mood)
}

// PurposeError reports a malformed derivation purpose.
type PurposeError string

func (e PurposeError) Error() string { return "bad derivation purpose: " + string(e) }
