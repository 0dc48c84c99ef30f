package shell

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/HomePanel/backend/internal/providers/terminal"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrAuthentication  = errors.New("authentication failed")
	ErrConnect         = errors.New("connection failed")
	ErrTransport       = errors.New("transport failure")
	ErrNoActiveSession = errors.New("no active session")
	ErrTimeout         = errors.New("command timed out")
)

// ConnectRequest carries the coordinates and credentials for a new session.
// Secret is used once for authentication and never stored.
type ConnectRequest struct {
	Host     string
	Port     int
	Username string
	Secret   string
}

// ConnectResult is returned by a successful connect.
type ConnectResult struct {
	SessionID        string `json:"sessionId"`
	Prompt           string `json:"prompt"`
	CurrentDirectory string `json:"currentDirectory"`
}

// ExecResult is the normalized outcome of one command.
type ExecResult struct {
	Output           string        `json:"output"`
	ExitStatus       int           `json:"exitStatus"`
	Prompt           string        `json:"prompt"`
	CurrentDirectory string        `json:"currentDirectory"`
	Duration         time.Duration `json:"-"`
}

// StatusResult reports transport liveness for a session.
type StatusResult struct {
	Connected bool   `json:"connected"`
	Host      string `json:"host,omitempty"`
	Username  string `json:"username,omitempty"`
}

// SessionInfo is the public view of a registered session.
type SessionInfo struct {
	ID               string    `json:"sessionId"`
	Host             string    `json:"host"`
	Port             int       `json:"port"`
	Username         string    `json:"username"`
	CurrentDirectory string    `json:"currentDirectory"`
	ConnectedAt      time.Time `json:"connectedAt"`
	LastUsed         time.Time `json:"lastUsed"`
}

// Session is one live remote shell. The channel is owned exclusively by the
// session; lock serializes executes so output from two commands never
// interleaves.
type Session struct {
	ID          string
	Host        string
	Port        int
	Username    string
	ConnectedAt time.Time

	channel terminal.Channel
	lock    chan struct{}

	mu       sync.Mutex
	cwd      string
	home     string
	lastUsed time.Time
	closed   bool
}

func newSession(sessionID string, req ConnectRequest, port int, ch terminal.Channel, now time.Time) *Session {
	return &Session{
		ID:          sessionID,
		Host:        req.Host,
		Port:        port,
		Username:    req.Username,
		ConnectedAt: now,
		channel:     ch,
		lock:        make(chan struct{}, 1),
		lastUsed:    now,
	}
}

// acquire waits for the execute lock or the context.
func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryAcquire takes the lock only if it is free.
func (s *Session) tryAcquire() bool {
	select {
	case s.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Session) release() {
	<-s.lock
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) setDirectory(cwd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cwd = cwd
	if s.home == "" {
		s.home = cwd
	}
}

func (s *Session) directory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// prompt synthesizes user@host:dir$ with the login directory shown as ~.
func (s *Session) prompt() string {
	s.mu.Lock()
	cwd, home := s.cwd, s.home
	s.mu.Unlock()

	dir := cwd
	switch {
	case cwd == "" || cwd == home:
		dir = "~"
	case home != "" && home != "/" && strings.HasPrefix(cwd, home+"/"):
		dir = "~" + cwd[len(home):]
	}
	return s.Username + "@" + s.Host + ":" + dir + "$"
}

func (s *Session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:               s.ID,
		Host:             s.Host,
		Port:             s.Port,
		Username:         s.Username,
		CurrentDirectory: s.cwd,
		ConnectedAt:      s.ConnectedAt,
		LastUsed:         s.lastUsed,
	}
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close releases the channel once.
func (s *Session) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.channel.Close()
}
