package journal

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"conduit/internal/domain"
)

// Immediate runs each queued effect at once. It is the default for
// sessions without a persistence requirement.
type Immediate struct{}

// Queue implements domain.Journal.
func (Immediate) Queue(_ string, fn func()) { fn() }

var _ domain.Journal = Immediate{}

type record struct {
	At   int64  `json:"at"`
	Name string `json:"name"`
}

// File appends a record per queued effect before running it. Records are
// JSON lines; the effect itself is not deferred.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a journal writing to path.
func NewFile(path string) *File { return &File{path: path} }

// Queue implements domain.Journal.
func (j *File) Queue(name string, fn func()) {
	j.mu.Lock()
	if f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
		_ = json.NewEncoder(f).Encode(record{At: time.Now().Unix(), Name: name})
		_ = f.Close()
	}
	j.mu.Unlock()
	fn()
}

var _ domain.Journal = (*File)(nil)
