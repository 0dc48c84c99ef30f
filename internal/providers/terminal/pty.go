package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"sync"

	"github.com/creack/pty"
	"go.uber.org/zap"
)

// LocalDialer spawns a shell on the panel's own host behind a PTY. It is
// meant for development and single-host installs: the username must match
// the account the server runs as, and the secret is not checked.
type LocalDialer struct {
	Shell  string
	Logger *zap.Logger
}

// Dial starts the local shell.
func (d *LocalDialer) Dial(ctx context.Context, target Target) (Channel, error) {
	current, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("lookup current user: %w", err)
	}
	if target.Username != current.Username {
		return nil, fmt.Errorf("%w: local shells run as %s", ErrAuthentication, current.Username)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shell := d.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Dir = current.HomeDir
	cmd.Env = append(os.Environ(), "TERM=dumb", "PS1=", "PS2=")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: termRows, Cols: termCols})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	ch := &ptyChannel{
		cmd:  cmd,
		ptmx: ptmx,
		out:  NewBuffer(outputBufferSize),
		done: make(chan struct{}),
	}
	go ch.readOutput()
	go ch.monitorProcess()

	if d.Logger != nil {
		d.Logger.Debug("Local shell started", zap.String("shell", shell), zap.Int("pid", cmd.Process.Pid))
	}
	return ch, nil
}

type ptyChannel struct {
	cmd  *exec.Cmd
	ptmx *os.File
	out  *Buffer

	done      chan struct{}
	closeOnce sync.Once
}

// readOutput copies PTY output into the buffer until the PTY closes
func (c *ptyChannel) readOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := c.ptmx.Read(buf)
		if n > 0 {
			c.out.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// monitorProcess marks the channel dead once the shell exits
func (c *ptyChannel) monitorProcess() {
	_ = c.cmd.Wait()
	close(c.done)
}

func (c *ptyChannel) Write(p []byte) (int, error) {
	select {
	case <-c.done:
		return 0, ErrClosed
	default:
	}
	n, err := c.ptmx.Write(p)
	if errors.Is(err, os.ErrClosed) {
		return n, ErrClosed
	}
	return n, err
}

func (c *ptyChannel) ReadAvailable() []byte {
	return c.out.ReadAll()
}

func (c *ptyChannel) Alive(context.Context) bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *ptyChannel) Close() error {
	c.closeOnce.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.ptmx.Close()
	})
	return nil
}
