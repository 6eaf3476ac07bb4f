package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"conduit/internal/domain"
	"conduit/internal/pake"
)

// snapshotState is the engine-owned part of a serialized handshake. It is
// only meaningful between code establishment and the first data phase.
type snapshotState struct {
	AppID     string      `json:"appid"`
	RelayURL  string      `json:"relay_url"`
	Side      string      `json:"side"`
	Code      domain.Code `json:"code"`
	Nameplate string      `json:"nameplate"`
	Mailbox   string      `json:"mailbox"`
	Pake      *pake.State `json:"pake"`
}

// Snapshot captures the in-progress handshake. It runs on the engine's
// own loop so no state is read concurrently.
func (e *Engine) Snapshot() ([]byte, error) {
	type reply struct {
		data []byte
		err  error
	}
	ch := make(chan reply, 1)
	e.post(func() {
		if e.code == "" {
			ch <- reply{nil, errors.New("nothing to snapshot before a code is set")}
			return
		}
		b, err := json.Marshal(snapshotState{
			AppID:     e.cfg.AppID,
			RelayURL:  e.cfg.RelayURL,
			Side:      e.cfg.Side,
			Code:      e.code,
			Nameplate: e.nameplate,
			Mailbox:   e.mailbox,
			Pake:      e.st,
		})
		ch <- reply{b, err}
	})
	select {
	case r := <-ch:
		return r.data, r.err
	case <-e.done:
		return nil, errors.New("engine already closed")
	}
}

// Restore rebuilds an engine from a Snapshot blob. The identity fields
// come from the snapshot; cfg supplies the ambient pieces (journal,
// timing, welcome handler, HTTP client). Start resumes the handshake:
// claiming is idempotent and the relay deduplicates reposted phases, so
// the peer sees no difference.
func Restore(raw []byte, cfg Config, sink domain.EventSink) (*Engine, error) {
	var s snapshotState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("bad snapshot: %w", err)
	}
	if s.Code == "" || s.Side == "" || s.Pake == nil {
		return nil, errors.New("bad snapshot: missing handshake state")
	}
	cfg.AppID = s.AppID
	cfg.RelayURL = s.RelayURL
	cfg.Side = s.Side

	e := New(cfg, sink)
	e.code = s.Code
	e.nameplate = s.Nameplate
	e.mailbox = s.Mailbox
	e.st = s.Pake
	e.resumed = true
	return e, nil
}
