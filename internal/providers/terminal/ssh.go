package terminal

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const (
	outputBufferSize = 1024 * 1024
	termRows         = 40
	termCols         = 200
)

// SSHDialer opens interactive shells over SSH with password or
// keyboard-interactive authentication.
type SSHDialer struct {
	Timeout         time.Duration
	HostKeyCallback ssh.HostKeyCallback
	Resolver        *HostResolver
	Logger          *zap.Logger
}

// Dial connects, authenticates, requests a dumb PTY with echo off and
// starts the login shell.
func (d *SSHDialer) Dial(ctx context.Context, target Target) (Channel, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hostKeys := d.HostKeyCallback
	if hostKeys == nil {
		hostKeys = ssh.InsecureIgnoreHostKey()
	}

	host, port := d.Resolver.Resolve(target.Host, target.Port)
	addr := Target{Host: host, Port: port}.Address()

	config := &ssh.ClientConfig{
		User: target.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(target.Secret),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = target.Secret
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	// Bound the handshake; the deadline is lifted once the client is up.
	deadline, _ := dialCtx.Deadline()
	_ = conn.SetDeadline(deadline)

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		if isAuthFailure(err) {
			return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(clientConn, chans, reqs)

	ch, err := startShell(client)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Debug("SSH shell started",
		zap.String("addr", addr),
		zap.String("user", target.Username),
	)
	return ch, nil
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

type sshChannel struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	out     *Buffer

	done      chan struct{}
	closeOnce sync.Once

	pingMu sync.Mutex
	ping   *keepalive
}

// keepalive is one outstanding keepalive request. Callers that arrive
// while it is unanswered wait on it instead of sending another.
type keepalive struct {
	done chan struct{}
	err  error
}

func startShell(client *ssh.Client) (*sshChannel, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("dumb", termRows, termCols, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	ch := &sshChannel{
		client:  client,
		session: session,
		stdin:   stdin,
		out:     NewBuffer(outputBufferSize),
		done:    make(chan struct{}),
	}
	session.Stdout = ch.out
	session.Stderr = ch.out

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	go func() {
		_ = session.Wait()
		close(ch.done)
	}()

	return ch, nil
}

func (c *sshChannel) Write(p []byte) (int, error) {
	select {
	case <-c.done:
		return 0, ErrClosed
	default:
	}
	return c.stdin.Write(p)
}

func (c *sshChannel) ReadAvailable() []byte {
	return c.out.ReadAll()
}

// Alive sends an OpenSSH keepalive global request. A refusal still proves
// the transport works; only a send error counts as dead. At most one
// request is outstanding per connection; concurrent checks share it.
func (c *sshChannel) Alive(ctx context.Context) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	p := c.pending()
	select {
	case <-p.done:
		return p.err == nil
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

// pending returns the outstanding keepalive, sending a new one if none is.
func (c *sshChannel) pending() *keepalive {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()

	if c.ping != nil {
		return c.ping
	}
	p := &keepalive{done: make(chan struct{})}
	c.ping = p

	go func() {
		_, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil)
		p.err = err

		c.pingMu.Lock()
		c.ping = nil
		c.pingMu.Unlock()
		close(p.done)
	}()
	return p
}

func (c *sshChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stdin.Close()
		c.session.Close()
		err = c.client.Close()
	})
	return err
}
