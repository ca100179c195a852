package transport

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdioReadSplitsOnNewline(t *testing.T) {
	r := strings.NewReader("first\nsecond\n")
	tr := NewStdio(r, io.Discard)

	line, err := tr.Read()
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = tr.Read()
	require.NoError(t, err)
	assert.Equal(t, "second", line)

	_, err = tr.Read()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStdioWriteAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStdio(strings.NewReader(""), &buf)

	require.NoError(t, tr.Write(`{"id":"1"}`))
	assert.Equal(t, "{\"id\":\"1\"}\n", buf.String())
}

func TestStdioWriteSerializesConcurrentWriters(t *testing.T) {
	var buf syncBuffer
	tr := NewStdio(strings.NewReader(""), &buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.Write("line")
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 20)
	for _, l := range lines {
		assert.Equal(t, "line", l)
	}
}

func TestStdioCloseIsIdempotentAndUnblocksRead(t *testing.T) {
	pr, pw := io.Pipe()
	tr := NewStdio(pr, pw)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err := tr.Read()
	assert.ErrorIs(t, err, ErrClosed)

	err = tr.Write("anything")
	assert.ErrorIs(t, err, ErrClosed)
}

// syncBuffer is a mutex-guarded bytes.Buffer for the concurrent-writer test;
// the Stdio transport's own writeMu already serializes Write, this buffer
// just needs to not be bytes.Buffer's documented non-concurrent-safe self.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
