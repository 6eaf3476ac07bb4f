package conduit

import (
	"io"
	"sync"

	"conduit/internal/domain"
)

// Delegated is the callback-flavored facade: each engine event becomes an
// immediate synchronous call on the caller's handler. Nothing is
// buffered; a handler that cannot keep up slows the session, which is the
// caller's bargain in this mode. Only the session key is cached, for
// DeriveKey. Serialization is not supported in this flavor.
type Delegated struct {
	engine   domain.Engine
	delegate domain.Delegate

	mu  sync.Mutex
	key []byte
}

var _ domain.EventSink = (*Delegated)(nil)

// AllocateCode asks the engine to reserve a nameplate and complete it
// with length random words.
func (d *Delegated) AllocateCode(length int) { d.engine.AllocateCode(length) }

// InputCode asks the engine to read a code interactively.
func (d *Delegated) InputCode() { d.engine.InputCode() }

// SetCode installs a code obtained out-of-band.
func (d *Delegated) SetCode(code domain.Code) { d.engine.SetCode(code) }

// Send queues plaintext for the peer.
func (d *Delegated) Send(plaintext []byte) { d.engine.Send(plaintext) }

// Close ends the session; the outcome arrives via OnClosed.
func (d *Delegated) Close() { d.engine.Close() }

// SetTrace routes engine debug records to w.
func (d *Delegated) SetTrace(clientName string, w io.Writer) {
	d.engine.SetTrace(clientName, w)
}

// DeriveKey derives a subkey from the session key; see Session.DeriveKey.
func (d *Delegated) DeriveKey(purpose string, length int) ([]byte, error) {
	d.mu.Lock()
	key := d.key
	d.mu.Unlock()
	return deriveKey(key, purpose, length)
}

// ---------- events from the engine ----------

func (d *Delegated) GotCode(code domain.Code) { d.delegate.OnCode(code) }

func (d *Delegated) GotKey(key []byte) {
	d.mu.Lock()
	d.key = key
	d.mu.Unlock()
	d.delegate.OnKey(key)
}

func (d *Delegated) GotVerifier(verifier []byte) { d.delegate.OnVerified(verifier) }

func (d *Delegated) GotVersion(versions domain.VersionInfo) { d.delegate.OnVersion(versions) }

func (d *Delegated) Received(plaintext []byte) { d.delegate.OnReceived(plaintext) }

func (d *Delegated) Closed(mood domain.Mood, err error) { d.delegate.OnClosed(mood, err) }
