package shell

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	second := newSession("b", ConnectRequest{Host: "h", Username: "u"}, 22, newFakeShell("/"), base.Add(time.Second))
	first := newSession("a", ConnectRequest{Host: "h", Username: "u"}, 22, newFakeShell("/"), base)

	require.True(t, r.Add(second))
	require.True(t, r.Add(first))
	assert.False(t, r.Add(first), "duplicate id refused")
	assert.Equal(t, 2, r.Len())

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, "b", snap[1].ID)

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, first, got)

	removed, ok := r.Remove("a")
	require.True(t, ok)
	assert.Same(t, first, removed)
	_, ok = r.Remove("a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := strconv.Itoa(i)
			r.Add(newSession(id, ConnectRequest{}, 22, newFakeShell("/"), time.Now()))
			if i%2 == 0 {
				r.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, r.Len())
	assert.Len(t, r.Snapshot(), 25)
}

func TestSessionPrompt(t *testing.T) {
	tests := []struct {
		name string
		home string
		cwd  string
		want string
	}{
		{name: "unknown directory", want: "pi@box:~$"},
		{name: "home", home: "/home/pi", cwd: "/home/pi", want: "pi@box:~$"},
		{name: "below home", home: "/home/pi", cwd: "/home/pi/src", want: "pi@box:~/src$"},
		{name: "sibling prefix", home: "/home/pi", cwd: "/home/pipe", want: "pi@box:/home/pipe$"},
		{name: "elsewhere", home: "/home/pi", cwd: "/etc", want: "pi@box:/etc$"},
		{name: "root home", home: "/", cwd: "/var", want: "pi@box:/var$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession("x", ConnectRequest{Host: "box", Username: "pi"}, 22, newFakeShell("/"), time.Now())
			if tt.home != "" {
				s.setDirectory(tt.home)
			}
			if tt.cwd != "" {
				s.setDirectory(tt.cwd)
			}
			assert.Equal(t, tt.want, s.prompt())
		})
	}
}

func TestSessionCloseOnce(t *testing.T) {
	ch := newFakeShell("/")
	s := newSession("x", ConnectRequest{}, 22, ch, time.Now())

	require.NoError(t, s.close())
	require.NoError(t, s.close())
	assert.True(t, s.isClosed())
	assert.True(t, ch.closed)
}
