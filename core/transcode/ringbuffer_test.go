package transcode

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferWriteThenRead(t *testing.T) {
	rb := newRingBuffer(1024, 0)
	n, err := rb.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = rb.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestRingBufferReadBlocksUntilData(t *testing.T) {
	rb := newRingBuffer(1024, 0)
	done := make(chan struct{})
	var got string
	go func() {
		buf := make([]byte, 3)
		n, err := rb.Read(buf)
		assert.NoError(t, err)
		got = string(buf[:n])
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	rb.Write([]byte("abc"))

	select {
	case <-done:
		assert.Equal(t, "abc", got)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after write")
	}
}

func TestRingBufferCloseUnblocksReadWithEOF(t *testing.T) {
	rb := newRingBuffer(1024, 0)
	done := make(chan error)
	go func() {
		_, err := rb.Read(make([]byte, 3))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	rb.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after close")
	}
}

func TestRingBufferWriteBlocksWhenFull(t *testing.T) {
	rb := newRingBuffer(4, 0)
	require.NoError(t, writeAll(rb, []byte("abcd")))

	wrote := make(chan struct{})
	go func() {
		rb.Write([]byte("e"))
		close(wrote)
	}()

	select {
	case <-wrote:
		t.Fatal("write should have blocked on a full buffer")
	case <-time.After(50 * time.Millisecond):
	}

	buf := make([]byte, 1)
	rb.Read(buf)

	select {
	case <-wrote:
	case <-time.After(time.Second):
		t.Fatal("write did not unblock after room freed")
	}
}

func writeAll(rb *ringBuffer, p []byte) error {
	_, err := rb.Write(p)
	return err
}
