package domain

import "io"

// Engine drives the rendezvous protocol for one session: code
// establishment, the authenticated key exchange, and the encrypted phase
// stream. All methods are asynchronous; outcomes surface through the
// EventSink installed at construction.
type Engine interface {
	Start()
	AllocateCode(length int)
	InputCode()
	SetCode(code Code)
	Send(plaintext []byte)
	Close()
	SetTrace(clientName string, w io.Writer)
}

// EventSink receives protocol events pushed up by the Engine. Each scalar
// event fires at most once; Received fires once per inbound application
// message; Closed fires exactly once and is terminal. A nil err on Closed
// means a clean close with the given mood; a non-nil err is a session
// failure.
type EventSink interface {
	GotCode(code Code)
	GotKey(key []byte)
	GotVerifier(verifier []byte)
	GotVersion(versions VersionInfo)
	Received(plaintext []byte)
	Closed(mood Mood, err error)
}

// Delegate is the caller-supplied handler for the delegated facade
// flavor. Methods are invoked synchronously on the event path; a slow
// handler slows the session.
type Delegate interface {
	OnCode(code Code)
	OnKey(key []byte)
	OnVerified(verifier []byte)
	OnVersion(versions VersionInfo)
	OnReceived(plaintext []byte)
	OnClosed(mood Mood, err error)
}

// Snapshotter is implemented by engines that can capture in-progress
// handshake state for later resumption.
type Snapshotter interface {
	Snapshot() ([]byte, error)
}

// Journal defers or records outbound side effects. The immediate journal
// runs them on the spot; persistent journals may record first.
type Journal interface {
	Queue(name string, fn func())
}

// Timing collects named spans for protocol diagnostics. Event returns the
// stop function for the span it opened.
type Timing interface {
	Event(name string) func()
}
