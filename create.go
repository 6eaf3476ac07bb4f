package conduit

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"conduit/internal/domain"
	"conduit/internal/engine"
)

const sideBytes = 5

// Config enumerates everything a session needs. AppID and RelayURL are
// required; everything else defaults.
type Config struct {
	// AppID namespaces the key exchange; both sides must use the same.
	AppID string
	// RelayURL is the rendezvous relay base URL.
	RelayURL string
	// Versions is an opaque capability payload merged into the version
	// exchange and surfaced to the peer under "app_versions".
	Versions domain.VersionInfo
	// Journal records outbound side effects; default runs them at once.
	Journal domain.Journal
	// Timing collects protocol spans; default discards them.
	Timing domain.Timing
	// Welcome is invoked at most once with the relay greeting; the
	// default prints any message-of-the-day to Stderr.
	Welcome func(domain.Welcome)
	// Stderr receives the default welcome output; default os.Stderr.
	Stderr io.Writer
	// Input is the source for InputCode; default os.Stdin.
	Input io.Reader
	// HTTP overrides the relay HTTP client.
	HTTP *http.Client
}

// Create wires a new engine to a future-flavored Session, starts it, and
// returns the session. The engine begins talking to the relay
// immediately.
func Create(cfg Config) (*Session, error) {
	s := &Session{}
	eng, err := newEngine(cfg, s)
	if err != nil {
		return nil, err
	}
	s.engine = eng
	eng.Start()
	return s, nil
}

// CreateDelegated wires a new engine to the callback flavor: every event
// is handed synchronously to delegate.
func CreateDelegated(cfg Config, delegate domain.Delegate) (*Delegated, error) {
	if delegate == nil {
		return nil, errors.New("conduit: nil delegate")
	}
	d := &Delegated{delegate: delegate}
	eng, err := newEngine(cfg, d)
	if err != nil {
		return nil, err
	}
	d.engine = eng
	eng.Start()
	return d, nil
}

func newEngine(cfg Config, sink domain.EventSink) (*engine.Engine, error) {
	if cfg.AppID == "" {
		return nil, errors.New("conduit: AppID is required")
	}
	if cfg.RelayURL == "" {
		return nil, errors.New("conduit: RelayURL is required")
	}
	side, err := newSide()
	if err != nil {
		return nil, err
	}
	return engine.New(engineConfig(cfg, side), sink), nil
}

func engineConfig(cfg Config, side string) engine.Config {
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	welcome := cfg.Welcome
	if welcome == nil {
		welcome = motdPrinter(cfg.RelayURL, stderr)
	}
	return engine.Config{
		AppID:       cfg.AppID,
		RelayURL:    cfg.RelayURL,
		Side:        side,
		AppVersions: cfg.Versions,
		Journal:     cfg.Journal,
		Timing:      cfg.Timing,
		Welcome:     welcome,
		Input:       cfg.Input,
		HTTP:        cfg.HTTP,
	}
}

// newSide generates the random endpoint identifier that distinguishes the
// two parties' protocol messages.
func newSide() (string, error) {
	b := make([]byte, sideBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// motdPrinter prints the relay's message-of-the-day once, indented the
// way multi-line notices read best on a terminal.
func motdPrinter(relayURL string, stderr io.Writer) func(domain.Welcome) {
	var once sync.Once
	return func(w domain.Welcome) {
		if w.MOTD == "" {
			return
		}
		once.Do(func() {
			motd := strings.Join(strings.Split(w.MOTD, "\n"), "\n ")
			fmt.Fprintf(stderr, "Relay (at %s) says:\n %s\n", relayURL, motd)
		})
	}
}
