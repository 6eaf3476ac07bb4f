package conduit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"conduit/internal/domain"
	"conduit/internal/engine"
)

const serializedVersion = 1

// serialized is the wrapper the blocking flavor adds around the
// engine-owned snapshot.
type serialized struct {
	Version int             `json:"serialized_conduit_version"`
	Engine  json.RawMessage `json:"engine"`
}

// Blocking is the synchronous facade. It owns a private engine and
// Session pair; its methods block the calling goroutine until the
// corresponding future resolves, so waiting never touches facade
// internals across goroutines — everything flows through promises.
//
// A single Blocking instance is not designed for concurrent overlapping
// calls from multiple goroutines. Independent instances (the two sides of
// a handshake, say) are fully self-contained and safe to drive from
// different goroutines.
type Blocking struct {
	sess *Session

	mu         sync.Mutex
	codeChosen bool // a code-establishing call was made
	codeKnown  bool // that call completed; serialization window opens
	dataTried  bool // GetData attempted; serialization window closed
}

// NewBlocking creates a blocking-flavor session.
func NewBlocking(cfg Config) (*Blocking, error) {
	sess, err := Create(cfg)
	if err != nil {
		return nil, err
	}
	return &Blocking{sess: sess}, nil
}

// FromSerialized resumes a handshake captured by Serialize. Identity
// fields (appid, relay, side, code) come from the blob; cfg supplies the
// ambient pieces.
func FromSerialized(blob []byte, cfg Config) (*Blocking, error) {
	var s serialized
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("conduit: bad serialized session: %w", err)
	}
	if s.Version != serializedVersion {
		return nil, fmt.Errorf("conduit: unknown serialized version %d", s.Version)
	}
	sess := &Session{}
	eng, err := engine.Restore(s.Engine, engineConfig(cfg, ""), sess)
	if err != nil {
		return nil, err
	}
	sess.engine = eng
	eng.Start()
	return &Blocking{sess: sess, codeChosen: true, codeKnown: true}, nil
}

// GetCode allocates a fresh code and blocks until it is known. length is
// the number of words; values below 1 mean the default of 2.
func (b *Blocking) GetCode(ctx context.Context, length int) (domain.Code, error) {
	if err := b.chooseCode("GetCode"); err != nil {
		return "", err
	}
	if length < 1 {
		length = 2
	}
	b.sess.AllocateCode(length)
	code, err := b.sess.WhenCode().Await(ctx)
	if err != nil {
		return "", err
	}
	b.markCodeKnown()
	return code, nil
}

// SetCode installs a code obtained out-of-band.
func (b *Blocking) SetCode(code domain.Code) error {
	if err := b.chooseCode("SetCode"); err != nil {
		return err
	}
	b.sess.SetCode(code)
	b.markCodeKnown()
	return nil
}

// InputCode reads a code from the configured input and blocks until it is
// accepted.
func (b *Blocking) InputCode(ctx context.Context) (domain.Code, error) {
	if err := b.chooseCode("InputCode"); err != nil {
		return "", err
	}
	b.sess.InputCode()
	code, err := b.sess.WhenCode().Await(ctx)
	if err != nil {
		return "", err
	}
	b.markCodeKnown()
	return code, nil
}

// GetVerifier blocks until the verifier is available.
func (b *Blocking) GetVerifier(ctx context.Context) ([]byte, error) {
	if err := b.requireCode("GetVerifier"); err != nil {
		return nil, err
	}
	return b.sess.WhenVerified().Await(ctx)
}

// GetData sends outbound and blocks until the peer's next message
// arrives.
func (b *Blocking) GetData(ctx context.Context, outbound []byte) ([]byte, error) {
	if err := b.requireCode("GetData"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.dataTried = true
	b.mu.Unlock()

	b.sess.Send(outbound)
	return b.sess.WhenReceived().Await(ctx)
}

// Close ends the session and blocks until the terminal outcome is known.
func (b *Blocking) Close(ctx context.Context) (domain.Mood, error) {
	return b.sess.Close().Await(ctx)
}

// DeriveKey derives a subkey from the session key; see Session.DeriveKey.
func (b *Blocking) DeriveKey(purpose string, length int) ([]byte, error) {
	return b.sess.DeriveKey(purpose, length)
}

// SetTrace routes engine debug records to w.
func (b *Blocking) SetTrace(clientName string, w io.Writer) {
	b.sess.SetTrace(clientName, w)
}

// Serialize captures the in-progress handshake. It is only valid in the
// window after the code is known and before any data exchange has been
// attempted.
func (b *Blocking) Serialize() ([]byte, error) {
	b.mu.Lock()
	switch {
	case !b.codeKnown:
		b.mu.Unlock()
		return nil, domain.UsageError("Serialize before the code is known")
	case b.dataTried:
		b.mu.Unlock()
		return nil, domain.UsageError("Serialize after data exchange has begun")
	}
	b.mu.Unlock()

	sn, ok := b.sess.engine.(domain.Snapshotter)
	if !ok {
		return nil, errors.New("conduit: engine does not support serialization")
	}
	raw, err := sn.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(serialized{Version: serializedVersion, Engine: raw})
}

// ---------- usage guard ----------

func (b *Blocking) chooseCode(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.codeChosen {
		return domain.UsageError(op + ": the code is single-assignment on a session")
	}
	b.codeChosen = true
	return nil
}

func (b *Blocking) requireCode(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.codeChosen {
		return domain.UsageError(op + " before GetCode/SetCode/InputCode")
	}
	return nil
}

func (b *Blocking) markCodeKnown() {
	b.mu.Lock()
	b.codeKnown = true
	b.mu.Unlock()
}
