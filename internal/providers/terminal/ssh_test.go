package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gssh "github.com/gliderlabs/ssh"
	gossh "golang.org/x/crypto/ssh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSSHServer runs an in-process sshd whose "shell" answers each input
// line through respond.
func startSSHServer(t *testing.T, password string, respond func(line string, w io.Writer), configure ...func(*gssh.Server)) (string, int) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &gssh.Server{
		Handler: func(s gssh.Session) {
			scanner := bufio.NewScanner(s)
			for scanner.Scan() {
				respond(scanner.Text(), s)
			}
		},
		PasswordHandler: func(_ gssh.Context, pass string) bool {
			return pass == password
		},
	}
	for _, fn := range configure {
		fn(srv)
	}
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func echoShell(line string, w io.Writer) {
	if rest, ok := strings.CutPrefix(line, "echo "); ok {
		fmt.Fprintf(w, "%s\r\n", rest)
	}
}

func waitFor(t *testing.T, ch Channel, want string) string {
	t.Helper()
	var got strings.Builder
	require.Eventually(t, func() bool {
		got.Write(ch.ReadAvailable())
		return strings.Contains(got.String(), want)
	}, 3*time.Second, 20*time.Millisecond, "never saw %q", want)
	return got.String()
}

func TestSSHDialerRoundTrip(t *testing.T) {
	host, port := startSSHServer(t, "hunter2", echoShell)

	dialer := &SSHDialer{Timeout: 3 * time.Second}
	ch, err := dialer.Dial(context.Background(), Target{Host: host, Port: port, Username: "admin", Secret: "hunter2"})
	require.NoError(t, err)
	defer ch.Close()

	_, err = ch.Write([]byte("echo hello over ssh\n"))
	require.NoError(t, err)

	assert.Contains(t, waitFor(t, ch, "hello over ssh"), "hello over ssh")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, ch.Alive(ctx))
}

func TestSSHDialerRejectsBadPassword(t *testing.T) {
	host, port := startSSHServer(t, "hunter2", echoShell)

	dialer := &SSHDialer{Timeout: 3 * time.Second}
	_, err := dialer.Dial(context.Background(), Target{Host: host, Port: port, Username: "admin", Secret: "wrong"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestSSHDialerUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	dialer := &SSHDialer{Timeout: time.Second}
	_, err = dialer.Dial(context.Background(), Target{Host: "127.0.0.1", Port: port, Username: "admin", Secret: "x"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthentication)
}

func TestSSHChannelDeadAfterClose(t *testing.T) {
	host, port := startSSHServer(t, "pw", echoShell)

	dialer := &SSHDialer{Timeout: 3 * time.Second}
	ch, err := dialer.Dial(context.Background(), Target{Host: host, Port: port, Username: "admin", Secret: "pw"})
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	assert.NoError(t, ch.Close())

	assert.Eventually(t, func() bool {
		return !ch.Alive(context.Background())
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSSHChannelSharesOutstandingKeepalive(t *testing.T) {
	var received atomic.Int32
	slowKeepalive := func(srv *gssh.Server) {
		srv.RequestHandlers = map[string]gssh.RequestHandler{
			"keepalive@openssh.com": func(gssh.Context, *gssh.Server, *gossh.Request) (bool, []byte) {
				received.Add(1)
				time.Sleep(300 * time.Millisecond)
				return true, nil
			},
		}
	}
	host, port := startSSHServer(t, "hunter2", echoShell, slowKeepalive)

	dialer := &SSHDialer{Timeout: 3 * time.Second}
	ch, err := dialer.Dial(context.Background(), Target{Host: host, Port: port, Username: "admin", Secret: "hunter2"})
	require.NoError(t, err)
	defer ch.Close()

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		assert.False(t, ch.Alive(ctx), "check %d should give up before the reply", i)
		cancel()
	}

	// Once the first reply lands, a fresh check sends a new request.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), received.Load(), "checks while one is outstanding send nothing")
	assert.True(t, ch.Alive(ctx))
	assert.Equal(t, int32(2), received.Load())
}

func TestHostResolver(t *testing.T) {
	cfg := `
Host nas
	HostName 192.168.1.20
	Port 2222

Host backup
	HostName backup.lan
`
	resolver, err := NewHostResolverFrom(strings.NewReader(cfg))
	require.NoError(t, err)

	tests := []struct {
		name     string
		host     string
		port     int
		wantHost string
		wantPort int
	}{
		{name: "alias with port", host: "nas", wantHost: "192.168.1.20", wantPort: 2222},
		{name: "explicit port wins", host: "nas", port: 22, wantHost: "192.168.1.20", wantPort: 22},
		{name: "alias without port", host: "backup", wantHost: "backup.lan", wantPort: 22},
		{name: "unknown host", host: "10.0.0.5", wantHost: "10.0.0.5", wantPort: 22},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port := resolver.Resolve(tt.host, tt.port)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}

	var nilResolver *HostResolver
	host, port := nilResolver.Resolve("box", 0)
	assert.Equal(t, "box", host)
	assert.Equal(t, 22, port)
}
