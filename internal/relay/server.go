package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conduit/internal/domain"
)

const pollWait = 2 * time.Second

// ServerConfig holds the server's tunables.
type ServerConfig struct {
	MOTD   string
	Logger *slog.Logger
}

// Server is an in-memory rendezvous relay. All state lives in the
// process; mailboxes disappear once both sides close.
type Server struct {
	router chi.Router
	log    *slog.Logger
	motd   string

	mu         sync.Mutex
	nextPlate  int
	nameplates map[string]*nameplate
	mailboxes  map[string]*mailbox

	platesAllocated prometheus.Counter
	messagesRelayed prometheus.Counter
	mailboxesClosed prometheus.Counter
}

type nameplate struct {
	mailbox string
	claims  map[string]bool // by side
}

type mailbox struct {
	messages []Message
	closed   map[string]domain.Mood // by side
	notify   chan struct{}          // closed and replaced on append
}

// NewServer builds the relay with its routes and metrics registered.
func NewServer(cfg ServerConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:        log,
		motd:       cfg.MOTD,
		nextPlate:  1,
		nameplates: make(map[string]*nameplate),
		mailboxes:  make(map[string]*mailbox),
		platesAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conduit_relay_nameplates_allocated_total",
			Help: "Nameplates handed out since start.",
		}),
		messagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conduit_relay_messages_total",
			Help: "Mailbox messages accepted since start.",
		}),
		mailboxesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conduit_relay_mailboxes_closed_total",
			Help: "Mailboxes fully closed since start.",
		}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(s.platesAllocated, s.messagesRelayed, s.mailboxesClosed)

	r := chi.NewRouter()
	r.Get("/v1/welcome", s.handleWelcome)
	r.Post("/v1/nameplates", s.handleAllocate)
	r.Post("/v1/nameplates/{nameplate}/claim", s.handleClaim)
	r.Post("/v1/nameplates/{nameplate}/release", s.handleRelease)
	r.Post("/v1/mailboxes/{mailbox}/messages", s.handleAdd)
	r.Get("/v1/mailboxes/{mailbox}/messages", s.handlePoll)
	r.Post("/v1/mailboxes/{mailbox}/close", s.handleClose)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]domain.Welcome{
		"welcome": {MOTD: s.motd},
	})
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var in sideBody
	if !readJSON(w, r, &in) {
		return
	}
	s.mu.Lock()
	plate := strconv.Itoa(s.nextPlate)
	s.nextPlate++
	s.nameplates[plate] = &nameplate{claims: make(map[string]bool)}
	s.mu.Unlock()

	s.platesAllocated.Inc()
	s.log.Debug("nameplate allocated", "nameplate", plate, "side", in.Side)
	writeJSON(w, map[string]string{"nameplate": plate})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "nameplate")
	var in sideBody
	if !readJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	np, ok := s.nameplates[plate]
	if !ok {
		// Claiming an unallocated nameplate creates it: the side that
		// typed the code in may reach the relay before the allocator's
		// claim, or resume after a restart.
		np = &nameplate{claims: make(map[string]bool)}
		s.nameplates[plate] = np
	}
	if np.mailbox == "" {
		np.mailbox = uuid.NewString()
		s.mailboxes[np.mailbox] = &mailbox{
			closed: make(map[string]domain.Mood),
			notify: make(chan struct{}),
		}
	}
	np.claims[in.Side] = true
	mb := np.mailbox
	s.mu.Unlock()

	s.log.Debug("nameplate claimed", "nameplate", plate, "side", in.Side)
	writeJSON(w, map[string]string{"mailbox": mb})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	plate := chi.URLParam(r, "nameplate")
	var in sideBody
	if !readJSON(w, r, &in) {
		return
	}
	s.mu.Lock()
	if np, ok := s.nameplates[plate]; ok {
		delete(np.claims, in.Side)
		if len(np.claims) == 0 {
			delete(s.nameplates, plate)
		}
	}
	s.mu.Unlock()
	writeJSON(w, struct{}{})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "mailbox")
	var in Message
	if !readJSON(w, r, &in) {
		return
	}

	s.mu.Lock()
	mb, ok := s.mailboxes[id]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "no such mailbox", http.StatusNotFound)
		return
	}
	dup := false
	for _, m := range mb.messages {
		if m.Side == in.Side && m.Phase == in.Phase {
			dup = true
			break
		}
	}
	if !dup {
		in.ID = len(mb.messages) + 1
		mb.messages = append(mb.messages, in)
		close(mb.notify)
		mb.notify = make(chan struct{})
	}
	s.mu.Unlock()

	if !dup {
		s.messagesRelayed.Inc()
	}
	writeJSON(w, struct{}{})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "mailbox")
	since, _ := strconv.Atoi(r.URL.Query().Get("since"))

	deadline := time.After(pollWait)
	for {
		s.mu.Lock()
		mb, ok := s.mailboxes[id]
		if !ok {
			s.mu.Unlock()
			http.Error(w, "no such mailbox", http.StatusNotFound)
			return
		}
		var fresh []Message
		for _, m := range mb.messages {
			if m.ID > since {
				fresh = append(fresh, m)
			}
		}
		notify := mb.notify
		s.mu.Unlock()

		if len(fresh) > 0 {
			writeJSON(w, map[string][]Message{"messages": fresh})
			return
		}
		select {
		case <-notify:
		case <-deadline:
			writeJSON(w, map[string][]Message{"messages": {}})
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "mailbox")
	var in struct {
		Side string      `json:"side"`
		Mood domain.Mood `json:"mood"`
	}
	if !readJSON(w, r, &in) {
		return
	}

	done := false
	s.mu.Lock()
	if mb, ok := s.mailboxes[id]; ok {
		mb.closed[in.Side] = in.Mood
		if len(mb.closed) >= 2 {
			delete(s.mailboxes, id)
			done = true
		}
	}
	s.mu.Unlock()

	if done {
		s.mailboxesClosed.Inc()
	}
	s.log.Debug("mailbox side closed", "mailbox", id, "side", in.Side, "mood", in.Mood)
	writeJSON(w, struct{}{})
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
