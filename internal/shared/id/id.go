// Package id provides centralized ID generation for the backend.
//
// All identifiers are ULIDs, optionally behind a short type prefix:
//   - Lexicographic sortability: newer IDs sort after older ones
//   - Monotonic within a millisecond: two IDs from one generator never repeat
//   - Prefixed types for readable logs (sess_*, req_*, span_*)
//
// Task IDs put the target name in front instead of a fixed prefix, so an
// operator can tell from the ID alone which server an install belongs to.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a remote shell session
type SessionID string

// TaskID identifies a provisioning task
type TaskID string

// RequestID identifies an API request trace
type RequestID string

// SpanID identifies one traced operation
type SpanID string

const (
	SessionPrefix = "sess"
	RequestPrefix = "req"
	SpanPrefix    = "span"
)

// generator produces monotonic ULIDs; the mutex guards the entropy source.
type generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *generator
	once             sync.Once
)

func shared() *generator {
	once.Do(func() {
		defaultGenerator = &generator{entropy: ulid.Monotonic(rand.Reader, 0)}
	})
	return defaultGenerator
}

func (g *generator) next() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

func (g *generator) withPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.next())
}

// NewSessionID generates a new shell session ID
func NewSessionID() SessionID {
	return SessionID(shared().withPrefix(SessionPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(shared().withPrefix(RequestPrefix))
}

// NewSpanID generates a new span ID
func NewSpanID() SpanID {
	return SpanID(shared().withPrefix(SpanPrefix))
}

// NewTaskID derives a task ID from the target name and the creation time
// encoded in the ULID.
func NewTaskID(target string) TaskID {
	return TaskID(shared().withPrefix(target))
}

func (id SessionID) String() string { return string(id) }
func (id TaskID) String() string    { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id SpanID) String() string    { return string(id) }
