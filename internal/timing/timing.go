package timing

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"conduit/internal/domain"
)

// Noop discards all spans. It is the default collector.
type Noop struct{}

// Event implements domain.Timing.
func (Noop) Event(string) func() { return func() {} }

var _ domain.Timing = Noop{}

// Span is one recorded interval.
type Span struct {
	Name     string        `json:"name"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration_ns"`
}

// Collector records spans in memory for a later Dump.
type Collector struct {
	mu    sync.Mutex
	spans []Span
}

// NewCollector returns an empty collector.
func NewCollector() *Collector { return &Collector{} }

// Event implements domain.Timing.
func (c *Collector) Event(name string) func() {
	start := time.Now()
	return func() {
		c.mu.Lock()
		c.spans = append(c.spans, Span{Name: name, Start: start, Duration: time.Since(start)})
		c.mu.Unlock()
	}
}

// Spans returns a copy of everything recorded so far.
func (c *Collector) Spans() []Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Span(nil), c.spans...)
}

// Dump writes the recorded spans as JSON.
func (c *Collector) Dump(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Spans())
}

var _ domain.Timing = (*Collector)(nil)
