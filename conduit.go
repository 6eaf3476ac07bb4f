package conduit

import (
	"io"
	"sync"

	"conduit/internal/domain"
	"conduit/internal/future"
)

// scalar is a deliver-at-most-once slot: a cached value plus the waiters
// registered before delivery, resolved in registration order.
type scalar[T any] struct {
	set     bool
	value   T
	waiters []*future.Value[T]
}

func (c *scalar[T]) wait(readErr error) *future.Value[T] {
	if readErr != nil {
		return future.Failed[T](readErr)
	}
	if c.set {
		return future.Resolved(c.value)
	}
	f := future.New[T]()
	c.waiters = append(c.waiters, f)
	return f
}

func (c *scalar[T]) resolve(v T) {
	c.set = true
	c.value = v
	for _, w := range c.waiters {
		w.Resolve(v)
	}
	c.waiters = nil
}

func (c *scalar[T]) fail(err error) {
	for _, w := range c.waiters {
		w.Fail(err)
	}
	c.waiters = nil
}

// Session is the future-flavored facade. Every protocol event is cached
// and broadcast exactly once; inbound messages pair with receive waiters
// strictly first-in-first-out.
type Session struct {
	mu     sync.Mutex
	engine domain.Engine

	code     scalar[domain.Code]
	key      scalar[[]byte]
	verifier scalar[[]byte]
	versions scalar[domain.VersionInfo]

	inbox   [][]byte
	readers []*future.Value[[]byte]

	// readErr fails every scalar/message read once the session is over.
	readErr error

	closeRequested bool
	closeDone      bool
	closeMood      domain.Mood
	closeErr       error
	closers        []*future.Value[domain.Mood]
}

var _ domain.EventSink = (*Session)(nil)

// WhenCode resolves once the code is known (allocated, input, or set).
func (s *Session) WhenCode() *future.Value[domain.Code] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code.wait(s.readErr)
}

// WhenKey resolves once the session key is established.
func (s *Session) WhenKey() *future.Value[[]byte] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key.wait(s.readErr)
}

// WhenVerified resolves with the verifier both humans can compare.
func (s *Session) WhenVerified() *future.Value[[]byte] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifier.wait(s.readErr)
}

// WhenVersion resolves with the peer's capability map.
func (s *Session) WhenVersion() *future.Value[domain.VersionInfo] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions.wait(s.readErr)
}

// WhenReceived returns the next inbound message: a buffered one if any,
// otherwise a promise resolved on next arrival. Repeated calls drain the
// queue in order.
func (s *Session) WhenReceived() *future.Value[[]byte] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return future.Failed[[]byte](s.readErr)
	}
	if len(s.inbox) > 0 {
		m := s.inbox[0]
		s.inbox = s.inbox[1:]
		return future.Resolved(m)
	}
	f := future.New[[]byte]()
	s.readers = append(s.readers, f)
	return f
}

// AllocateCode asks the engine to reserve a nameplate and complete it
// with length random words.
func (s *Session) AllocateCode(length int) { s.engine.AllocateCode(length) }

// InputCode asks the engine to read a code interactively.
func (s *Session) InputCode() { s.engine.InputCode() }

// SetCode installs a code obtained out-of-band.
func (s *Session) SetCode(code domain.Code) { s.engine.SetCode(code) }

// Send queues plaintext for the peer.
func (s *Session) Send(plaintext []byte) { s.engine.Send(plaintext) }

// Close ends the session and returns a promise of the terminal mood.
// Once the outcome is known, further calls return it without touching
// the engine again.
func (s *Session) Close() *future.Value[domain.Mood] {
	s.mu.Lock()
	if s.closeDone {
		mood, err := s.closeMood, s.closeErr
		s.mu.Unlock()
		if err != nil {
			return future.Failed[domain.Mood](err)
		}
		return future.Resolved(mood)
	}
	f := future.New[domain.Mood]()
	s.closers = append(s.closers, f)
	requested := s.closeRequested
	s.closeRequested = true
	s.mu.Unlock()

	if !requested {
		s.engine.Close()
	}
	return f
}

// SetTrace routes engine debug records to w.
func (s *Session) SetTrace(clientName string, w io.Writer) {
	s.engine.SetTrace(clientName, w)
}

// ---------- events from the engine ----------

// GotCode caches the code and resolves its waiters in order.
func (s *Session) GotCode(code domain.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code.resolve(code)
}

// GotKey caches the session key; it stays available for DeriveKey even
// after close.
func (s *Session) GotKey(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key.resolve(key)
}

// GotVerifier caches the verifier.
func (s *Session) GotVerifier(verifier []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifier.resolve(verifier)
}

// GotVersion caches the peer capability map.
func (s *Session) GotVersion(versions domain.VersionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions.resolve(versions)
}

// Received hands plaintext to the oldest waiting reader, or buffers it.
func (s *Session) Received(plaintext []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.readers) > 0 {
		r := s.readers[0]
		s.readers = s.readers[1:]
		r.Resolve(plaintext)
		return
	}
	s.inbox = append(s.inbox, plaintext)
}

// Closed records the terminal outcome. A failure fails every pending
// waiter, close waiters included. A clean mood fails pending scalar and
// message waiters with a closed-channel error but resolves close waiters
// with the mood itself: a clean close is not an error for the closer,
// yet nothing further will arrive for readers.
func (s *Session) Closed(mood domain.Mood, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeDone {
		return
	}
	s.closeDone = true
	s.closeMood = mood
	s.closeErr = err
	if err != nil {
		s.readErr = err
	} else {
		s.readErr = &domain.ClosedError{Mood: mood}
	}

	s.code.fail(s.readErr)
	s.key.fail(s.readErr)
	s.verifier.fail(s.readErr)
	s.versions.fail(s.readErr)
	for _, r := range s.readers {
		r.Fail(s.readErr)
	}
	s.readers = nil

	for _, c := range s.closers {
		if err != nil {
			c.Fail(err)
		} else {
			c.Resolve(mood)
		}
	}
	s.closers = nil
}
