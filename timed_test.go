package tio

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingWriter struct {
	calls int
	bytes int
	delay time.Duration
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.calls++
	w.bytes += len(p)
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	return len(p), nil
}

type blockingWriter struct {
	unblock chan struct{}
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.unblock
	return 0, io.ErrClosedPipe
}

func (w *blockingWriter) Close() error {
	close(w.unblock)
	return nil
}

type recordingFlusher struct {
	countingWriter
	flushed int
}

func (w *recordingFlusher) Flush() error {
	w.flushed++
	return nil
}

func TestWriteChunking(t *testing.T) {
	sink := &countingWriter{}
	timeout := NewAsyncTimeout(nil)
	writer := timeout.Writer(sink, 100*time.Millisecond)

	payload := make([]byte, 1<<20)
	n, err := writer.Write(payload)
	require.NoError(t, err)
	require.Equal(t, 1<<20, n)
	require.Equal(t, 16, sink.calls)
	require.Equal(t, 1<<20, sink.bytes)
	requireQueueEmpty(t)
}

func TestWriteChunkingSlowSinkSurvives(t *testing.T) {
	// each chunk individually satisfies its deadline even though the
	// whole transfer takes longer than one budget
	sink := &countingWriter{delay: 20 * time.Millisecond}
	timeout := NewAsyncTimeout(nil)
	writer := timeout.Writer(sink, 60*time.Millisecond)

	payload := make([]byte, 4*chunkCeiling)
	n, err := writer.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, 4, sink.calls)
	requireQueueEmpty(t)
}

func TestWriteShortFinalChunk(t *testing.T) {
	sink := &countingWriter{}
	timeout := NewAsyncTimeout(nil)
	writer := timeout.Writer(sink, 0)

	n, err := writer.Write(make([]byte, chunkCeiling+4464))
	require.NoError(t, err)
	require.Equal(t, chunkCeiling+4464, n)
	require.Equal(t, 2, sink.calls)
}

func TestWriteTimeoutKillsStalledSink(t *testing.T) {
	sink := &blockingWriter{unblock: make(chan struct{})}
	timeout := NewAsyncTimeout(sink.Close)
	writer := timeout.Writer(sink, 30*time.Millisecond)

	_, err := writer.Write(make([]byte, 16))
	require.True(t, IsTimeout(err))
	requireQueueEmpty(t)
}

func TestReadPassthroughWithoutTimeout(t *testing.T) {
	timeout := NewAsyncTimeout(nil)
	reader := timeout.Reader(bytes.NewReader([]byte("payload")), 0)

	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "payload", string(out))
	requireQueueEmpty(t)
}

func TestReadPreservesEOF(t *testing.T) {
	timeout := NewAsyncTimeout(nil)
	reader := timeout.Reader(bytes.NewReader(nil), time.Second)

	_, err := reader.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestFlushAndCloseAreTimed(t *testing.T) {
	sink := &recordingFlusher{}
	timeout := NewAsyncTimeout(nil)
	writer := timeout.Writer(sink, 50*time.Millisecond)

	require.NoError(t, writer.Flush())
	require.Equal(t, 1, sink.flushed)
	require.NoError(t, writer.Close())
	requireQueueEmpty(t)
}

func TestConnFailsFastAfterExpiry(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	conn := NewTimedConn(client, 30*time.Millisecond, 30*time.Millisecond)

	_, err := conn.Read(make([]byte, 1))
	require.True(t, IsTimeout(err))

	// the watchdog closed the conn; later operations report the closed
	// resource instead of an opaque transport error
	_, err = conn.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrClosed)
	_, err = conn.Write([]byte{0x00})
	require.ErrorIs(t, err, ErrClosed)
	requireQueueEmpty(t)
}

func TestConnFailsFastAfterClose(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	conn := NewTimedConn(client, 0, 0)
	require.NoError(t, conn.Close())

	_, err := conn.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrClosed)
}
