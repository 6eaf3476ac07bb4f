package pake_test

import (
	"bytes"
	"testing"

	"conduit/internal/pake"
)

func TestAgreement(t *testing.T) {
	a, err := pake.Start("app", "4-purple-sausages")
	if err != nil {
		t.Fatalf("Start a: %v", err)
	}
	b, err := pake.Start("app", "4-purple-sausages")
	if err != nil {
		t.Fatalf("Start b: %v", err)
	}

	ka, err := a.Finish(b.Msg)
	if err != nil {
		t.Fatalf("Finish a: %v", err)
	}
	kb, err := b.Finish(a.Msg)
	if err != nil {
		t.Fatalf("Finish b: %v", err)
	}
	if !bytes.Equal(ka, kb) {
		t.Fatalf("keys differ: %x vs %x", ka, kb)
	}
	if !bytes.Equal(pake.Verifier(ka), pake.Verifier(kb)) {
		t.Fatalf("verifiers differ")
	}
}

func TestWrongCode(t *testing.T) {
	a, err := pake.Start("app", "4-purple-sausages")
	if err != nil {
		t.Fatalf("Start a: %v", err)
	}
	b, err := pake.Start("app", "4-elephant-wasabi")
	if err != nil {
		t.Fatalf("Start b: %v", err)
	}

	ka, err := a.Finish(b.Msg)
	if err != nil {
		t.Fatalf("Finish a: %v", err)
	}
	kb, err := b.Finish(a.Msg)
	if err != nil {
		t.Fatalf("Finish b: %v", err)
	}
	if bytes.Equal(ka, kb) {
		t.Fatalf("different codes must not agree on a key")
	}

	// The mismatch is what the version phase detects.
	ct, err := pake.EncryptPhase(ka, "side-a", "version", []byte("caps"))
	if err != nil {
		t.Fatalf("EncryptPhase: %v", err)
	}
	if _, err := pake.DecryptPhase(kb, "side-a", "version", ct); err == nil {
		t.Fatalf("decrypt under mismatched key should fail")
	}
}

func TestPhaseRoundTrip(t *testing.T) {
	a, _ := pake.Start("app", "1-a-b")
	b, _ := pake.Start("app", "1-a-b")
	key, err := a.Finish(b.Msg)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	ct, err := pake.EncryptPhase(key, "s1", "0", []byte("hello"))
	if err != nil {
		t.Fatalf("EncryptPhase: %v", err)
	}
	pt, err := pake.DecryptPhase(key, "s1", "0", ct)
	if err != nil {
		t.Fatalf("DecryptPhase: %v", err)
	}
	if string(pt) != "hello" {
		t.Fatalf("got %q, want %q", pt, "hello")
	}

	// Phase keys are bound to sender side and phase number.
	if _, err := pake.DecryptPhase(key, "s2", "0", ct); err == nil {
		t.Fatalf("wrong side should not decrypt")
	}
	if _, err := pake.DecryptPhase(key, "s1", "1", ct); err == nil {
		t.Fatalf("wrong phase should not decrypt")
	}
}
