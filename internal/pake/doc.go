// Package pake implements the code-authenticated key exchange and the
// per-phase encryption used on top of it.
//
// The exchange is EKE-style: each side masks a fresh X25519 public key
// with a stream derived from the shared code (stretched with argon2id)
// and posts it to the mailbox. Unmasking with the right code yields the
// peer's real public key; the session key is HKDF over the Diffie-Hellman
// secret and the transcript of both masked messages. Two sides holding
// different codes unmask garbage and end up with unrelated keys, which
// the version phase then fails to authenticate.
package pake
