package terminal

import (
	"context"
	"os"
	"os/user"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDialerRunsCommands(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a shell")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	current, err := user.Current()
	require.NoError(t, err)

	dialer := &LocalDialer{Shell: "/bin/sh"}
	ch, err := dialer.Dial(context.Background(), Target{Username: current.Username})
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	defer ch.Close()

	_, err = ch.Write([]byte("echo ready_$((40+2))\n"))
	require.NoError(t, err)
	waitFor(t, ch, "ready_42")

	assert.True(t, ch.Alive(context.Background()))

	_, err = ch.Write([]byte("exit\n"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return !ch.Alive(context.Background())
	}, 3*time.Second, 20*time.Millisecond)

	_, err = ch.Write([]byte("echo late\n"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLocalDialerRejectsOtherUsers(t *testing.T) {
	dialer := &LocalDialer{}
	_, err := dialer.Dial(context.Background(), Target{Username: "definitely-not-this-user"})
	assert.ErrorIs(t, err, ErrAuthentication)
}
