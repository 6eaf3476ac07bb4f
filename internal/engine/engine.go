package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"conduit/internal/domain"
	"conduit/internal/journal"
	"conduit/internal/pake"
	"conduit/internal/relay"
	"conduit/internal/timing"
	"conduit/internal/wordlist"
)

const pollRetry = 250 * time.Millisecond

// Config carries everything an engine needs. AppID, RelayURL and Side are
// required; the rest default sensibly.
type Config struct {
	AppID       string
	RelayURL    string
	Side        string
	AppVersions domain.VersionInfo
	Journal     domain.Journal
	Timing      domain.Timing
	Welcome     func(domain.Welcome)
	Input       io.Reader // source for InputCode, default os.Stdin
	HTTP        *http.Client
}

// Engine implements domain.Engine over an HTTP rendezvous relay.
type Engine struct {
	cfg   Config
	sink  domain.EventSink
	relay *relay.Client
	log   atomic.Pointer[slog.Logger]

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan func()
	done   chan struct{}

	// Run-loop-owned state. Never touched from other goroutines.
	code        domain.Code
	nameplate   string
	mailbox     string
	st          *pake.State
	key         []byte
	versionSeen bool
	sendQueue   [][]byte
	nextPhase   int
	terminal    bool
	resumed     bool
}

// New builds an engine pushing events into sink. Call Start to begin.
func New(cfg Config, sink domain.EventSink) *Engine {
	if cfg.Journal == nil {
		cfg.Journal = journal.Immediate{}
	}
	if cfg.Timing == nil {
		cfg.Timing = timing.Noop{}
	}
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:    cfg,
		sink:   sink,
		relay:  relay.NewClient(cfg.RelayURL, cfg.HTTP),
		ctx:    ctx,
		cancel: cancel,
		cmds:   make(chan func(), 64),
		done:   make(chan struct{}),
	}
	e.log.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return e
}

var _ domain.Engine = (*Engine)(nil)
var _ domain.Snapshotter = (*Engine)(nil)

// Start launches the run loop.
func (e *Engine) Start() { go e.loop() }

// AllocateCode asks the relay for a nameplate and completes it with
// random words.
func (e *Engine) AllocateCode(length int) {
	e.post(func() { e.allocateCode(length) })
}

// InputCode reads one line from the configured input and uses it as the
// code.
func (e *Engine) InputCode() {
	go func() {
		r := bufio.NewReader(e.cfg.Input)
		line, err := r.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil && line == "" {
			e.post(func() { e.terminate(domain.MoodErrory, fmt.Errorf("reading code: %w", err)) })
			return
		}
		e.SetCode(domain.Code(line))
	}()
}

// SetCode installs a code obtained out-of-band.
func (e *Engine) SetCode(code domain.Code) {
	e.post(func() { e.setCode(code) })
}

// Send queues plaintext for the peer. Payloads sent before the key is
// established are held and flushed afterwards.
func (e *Engine) Send(plaintext []byte) {
	p := append([]byte(nil), plaintext...)
	e.post(func() { e.send(p) })
}

// Close ends the session and reports the final mood through the sink.
func (e *Engine) Close() {
	e.post(func() { e.closeSession() })
}

// SetTrace routes debug records for the engine's transitions to w.
func (e *Engine) SetTrace(clientName string, w io.Writer) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	e.log.Store(slog.New(h).With("client", clientName))
}

func (e *Engine) logger() *slog.Logger { return e.log.Load() }

func (e *Engine) post(fn func()) {
	select {
	case e.cmds <- fn:
	case <-e.done:
	}
}

// ---------- run loop ----------

func (e *Engine) loop() {
	stop := e.cfg.Timing.Event("welcome")
	w, err := e.relay.Welcome(e.ctx)
	stop()
	if err != nil {
		e.terminate(domain.MoodErrory, fmt.Errorf("welcome: %w", err))
		return
	}
	if w.Error != "" {
		e.terminate(domain.MoodErrory, errors.New("relay refused us: "+w.Error))
		return
	}
	if e.cfg.Welcome != nil {
		e.cfg.Welcome(w)
	}
	if e.resumed {
		e.logger().Debug("resuming from snapshot", "code", e.code)
		e.sink.GotCode(e.code)
		e.openMailbox()
	}
	for !e.terminal {
		fn := <-e.cmds
		fn()
	}
}

func (e *Engine) allocateCode(length int) {
	if e.terminal || e.code != "" {
		return
	}
	stop := e.cfg.Timing.Event("allocate")
	plate, err := e.relay.AllocateNameplate(e.ctx, e.cfg.Side)
	stop()
	if err != nil {
		e.terminate(domain.MoodErrory, fmt.Errorf("allocate nameplate: %w", err))
		return
	}
	words, err := wordlist.Choose(length)
	if err != nil {
		e.terminate(domain.MoodErrory, err)
		return
	}
	e.acceptCode(wordlist.Join(plate, words))
}

func (e *Engine) setCode(code domain.Code) {
	if e.terminal || e.code != "" {
		return
	}
	if _, _, err := wordlist.Split(code); err != nil {
		e.terminate(domain.MoodErrory, err)
		return
	}
	e.acceptCode(code)
}

func (e *Engine) acceptCode(code domain.Code) {
	e.code = code
	e.nameplate, _, _ = wordlist.Split(code)
	e.logger().Debug("code established", "nameplate", e.nameplate)
	e.sink.GotCode(code)
	e.openMailbox()
}

func (e *Engine) openMailbox() {
	stop := e.cfg.Timing.Event("claim")
	mb, err := e.relay.ClaimNameplate(e.ctx, e.nameplate, e.cfg.Side)
	stop()
	if err != nil {
		e.terminate(domain.MoodErrory, fmt.Errorf("claim nameplate: %w", err))
		return
	}
	e.mailbox = mb

	if e.st == nil {
		st, err := pake.Start(e.cfg.AppID, e.code)
		if err != nil {
			e.terminate(domain.MoodErrory, err)
			return
		}
		e.st = st
	}
	e.cfg.Journal.Queue("pake", func() {
		if err := e.relay.Add(e.ctx, e.mailbox, e.cfg.Side, "pake", e.st.Msg); err != nil {
			e.terminate(domain.MoodErrory, fmt.Errorf("post pake: %w", err))
		}
	})
	if e.terminal {
		return
	}
	go e.pollLoop(e.mailbox)
}

func (e *Engine) pollLoop(mailbox string) {
	since := 0
	for {
		msgs, err := e.relay.Poll(e.ctx, mailbox, since)
		if e.ctx.Err() != nil {
			return
		}
		if err != nil {
			e.logger().Debug("poll error", "err", err)
			select {
			case <-time.After(pollRetry):
			case <-e.ctx.Done():
				return
			}
			continue
		}
		for _, m := range msgs {
			if m.ID > since {
				since = m.ID
			}
			msg := m
			e.post(func() { e.onMessage(msg) })
		}
	}
}

func (e *Engine) onMessage(m relay.Message) {
	if e.terminal || m.Side == e.cfg.Side {
		return
	}
	switch m.Phase {
	case "pake":
		e.onPake(m)
	case "version":
		e.onVersion(m)
	default:
		e.onData(m)
	}
}

func (e *Engine) onPake(m relay.Message) {
	if e.key != nil {
		return
	}
	stop := e.cfg.Timing.Event("pake")
	key, err := e.st.Finish(m.Body)
	stop()
	if err != nil {
		e.terminate(domain.MoodScary, domain.ErrWrongCode)
		return
	}
	e.key = key
	e.logger().Debug("session key established")
	e.sink.GotKey(key)
	e.sink.GotVerifier(pake.Verifier(key))

	caps, err := json.Marshal(domain.VersionInfo{"app_versions": e.cfg.AppVersions})
	if err != nil {
		e.terminate(domain.MoodErrory, err)
		return
	}
	body, err := pake.EncryptPhase(e.key, e.cfg.Side, "version", caps)
	if err != nil {
		e.terminate(domain.MoodErrory, err)
		return
	}
	e.cfg.Journal.Queue("version", func() {
		if err := e.relay.Add(e.ctx, e.mailbox, e.cfg.Side, "version", body); err != nil {
			e.terminate(domain.MoodErrory, fmt.Errorf("post version: %w", err))
		}
	})

	queued := e.sendQueue
	e.sendQueue = nil
	for _, p := range queued {
		if e.terminal {
			return
		}
		e.sendNow(p)
	}
}

func (e *Engine) onVersion(m relay.Message) {
	if e.key == nil || e.versionSeen {
		return
	}
	pt, err := pake.DecryptPhase(e.key, m.Side, "version", m.Body)
	if err != nil {
		e.terminate(domain.MoodScary, domain.ErrWrongCode)
		return
	}
	var versions domain.VersionInfo
	if err := json.Unmarshal(pt, &versions); err != nil {
		e.terminate(domain.MoodErrory, fmt.Errorf("bad version payload: %w", err))
		return
	}
	e.versionSeen = true
	e.logger().Debug("peer versions received")
	e.sink.GotVersion(versions)
}

func (e *Engine) onData(m relay.Message) {
	if e.key == nil {
		return
	}
	pt, err := pake.DecryptPhase(e.key, m.Side, m.Phase, m.Body)
	if err != nil {
		e.terminate(domain.MoodScary, domain.ErrWrongCode)
		return
	}
	e.sink.Received(pt)
}

func (e *Engine) send(p []byte) {
	if e.terminal {
		return
	}
	if e.key == nil {
		e.sendQueue = append(e.sendQueue, p)
		return
	}
	e.sendNow(p)
}

func (e *Engine) sendNow(p []byte) {
	phase := strconv.Itoa(e.nextPhase)
	e.nextPhase++
	body, err := pake.EncryptPhase(e.key, e.cfg.Side, phase, p)
	if err != nil {
		e.terminate(domain.MoodErrory, err)
		return
	}
	e.cfg.Journal.Queue("phase-"+phase, func() {
		if err := e.relay.Add(e.ctx, e.mailbox, e.cfg.Side, phase, body); err != nil {
			e.terminate(domain.MoodErrory, fmt.Errorf("post phase %s: %w", phase, err))
		}
	})
}

func (e *Engine) closeSession() {
	if e.terminal {
		return
	}
	mood := domain.MoodLonely
	if e.versionSeen {
		mood = domain.MoodHappy
	}
	// Best-effort cleanup; the relay forgets us either way.
	if e.mailbox != "" {
		ctx, cancel := context.WithTimeout(e.ctx, 2*time.Second)
		_ = e.relay.CloseMailbox(ctx, e.mailbox, e.cfg.Side, mood)
		_ = e.relay.ReleaseNameplate(ctx, e.nameplate, e.cfg.Side)
		cancel()
	}
	e.terminate(mood, nil)
}

func (e *Engine) terminate(mood domain.Mood, err error) {
	if e.terminal {
		return
	}
	e.terminal = true
	e.cancel()
	e.logger().Debug("session over", "mood", mood, "err", err)
	e.sink.Closed(mood, err)
	close(e.done)
}
