package terminal

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrAuthentication means the remote end rejected the credentials.
	ErrAuthentication = errors.New("authentication rejected")
	// ErrClosed is returned when writing to a channel that was closed.
	ErrClosed = errors.New("channel closed")
)

// Target identifies the remote shell to open.
type Target struct {
	Host     string
	Port     int // 0 means "from ssh config, else 22"
	Username string
	Secret   string
}

// Address returns host:port for dialing.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Channel is a live interactive shell. Output is buffered in the background;
// callers poll it with ReadAvailable.
type Channel interface {
	// Write sends raw input to the shell.
	Write(p []byte) (int, error)
	// ReadAvailable returns and clears all output buffered since the last call.
	ReadAvailable() []byte
	// Alive probes the transport without sending anything to the shell.
	Alive(ctx context.Context) bool
	// Close releases the transport. Safe to call more than once.
	Close() error
}

// Dialer opens channels.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Channel, error)
}

// Buffer is a thread-safe circular buffer for shell output. When output
// arrives faster than it is drained, the oldest bytes are overwritten.
type Buffer struct {
	mu        sync.Mutex
	data      []byte
	head      int
	length    int
	lastWrite time.Time
}

// NewBuffer creates a new circular buffer
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{data: make([]byte, size)}
}

// Write appends data, dropping the oldest bytes on overflow
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.data)
	n := len(p)
	if n >= size {
		copy(b.data, p[n-size:])
		b.head = 0
		b.length = size
	} else {
		for _, c := range p {
			b.data[(b.head+b.length)%size] = c
			if b.length == size {
				b.head = (b.head + 1) % size
			} else {
				b.length++
			}
		}
	}
	if n > 0 {
		b.lastWrite = time.Now()
	}
	return n, nil
}

// ReadAll returns all buffered data and clears the buffer
func (b *Buffer) ReadAll() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, b.length)
	size := len(b.data)
	first := copy(out, b.data[b.head:min(b.head+b.length, size)])
	copy(out[first:], b.data[:b.length-first])

	b.head = 0
	b.length = 0
	return out
}

// Len reports how many bytes are buffered
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// LastWrite reports when output last arrived
func (b *Buffer) LastWrite() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastWrite
}
