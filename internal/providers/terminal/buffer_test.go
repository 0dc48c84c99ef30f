package terminal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferReadAllClears(t *testing.T) {
	b := NewBuffer(16)
	b.Write([]byte("hello "))
	b.Write([]byte("world"))

	assert.Equal(t, 11, b.Len())
	assert.Equal(t, "hello world", string(b.ReadAll()))
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.ReadAll())
}

func TestBufferOverwritesOldest(t *testing.T) {
	b := NewBuffer(8)
	b.Write([]byte("abcdef"))
	b.Write([]byte("ghij"))

	assert.Equal(t, "cdefghij", string(b.ReadAll()))

	b.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", string(b.ReadAll()))
}

func TestBufferWrapsAfterDrain(t *testing.T) {
	b := NewBuffer(4)
	b.Write([]byte("abc"))
	assert.Equal(t, "abc", string(b.ReadAll()))

	b.Write([]byte("defg"))
	assert.Equal(t, "defg", string(b.ReadAll()))
	assert.False(t, b.LastWrite().IsZero())
}

func TestBufferConcurrentWriters(t *testing.T) {
	b := NewBuffer(4096)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Write([]byte("x"))
			}
		}()
	}
	wg.Wait()
	assert.Len(t, b.ReadAll(), 800)
}
