// MIT License
//
// Copyright (c) 2016-2017 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package tio

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/sagernet/sing/common/logger"
)

const (
	segmentSize = 16 * 1024

	// chunkCeiling bounds the bytes handed to one inner write: four whole
	// segments. Each chunk re-scores its deadline, so a single large write
	// over a slow link survives as long as every chunk makes progress
	// within its own budget.
	chunkCeiling = 4 * segmentSize
)

// TimedReader applies a deadline to every blocking read on the inner
// stream.
type TimedReader struct {
	timeout     *AsyncTimeout
	inner       io.Reader
	readTimeout time.Duration
}

func (r *TimedReader) Read(p []byte) (n int, err error) {
	err = r.timeout.doTimed(r.readTimeout, func() error {
		var opErr error
		n, opErr = r.inner.Read(p)
		return opErr
	})
	return
}

// TimedWriter applies a per-chunk deadline to writes on the inner stream.
// Writes larger than the chunk ceiling are split at segment boundaries so
// that the deadline scores progress, not total transfer time; the final
// chunk may be short.
type TimedWriter struct {
	timeout      *AsyncTimeout
	inner        io.Writer
	writeTimeout time.Duration
}

func (w *TimedWriter) Write(p []byte) (n int, err error) {
	for n < len(p) {
		chunk := len(p) - n
		if chunk > chunkCeiling {
			chunk = chunkCeiling
		}
		var written int
		err = w.timeout.doTimed(w.writeTimeout, func() error {
			var opErr error
			written, opErr = w.inner.Write(p[n : n+chunk])
			return opErr
		})
		n += written
		if err != nil {
			return
		}
	}
	return
}

// Flush forwards to the inner writer under a single timed call when it
// supports flushing.
func (w *TimedWriter) Flush() error {
	flusher, ok := w.inner.(interface{ Flush() error })
	if !ok {
		return nil
	}
	return w.timeout.doTimed(w.writeTimeout, flusher.Flush)
}

// Close closes the inner writer under a single timed call.
func (w *TimedWriter) Close() error {
	closer, ok := w.inner.(io.Closer)
	if !ok {
		return nil
	}
	return w.timeout.doTimed(w.writeTimeout, closer.Close)
}

// TimedConn applies an endpoint's read and write deadlines to a net.Conn.
// Expiry closes the conn, forcing the blocked OS call to return; operations
// started after that fail fast with ErrClosed instead of surfacing an
// opaque OS-level error.
type TimedConn struct {
	net.Conn
	timeout *AsyncTimeout
	reader  *TimedReader
	writer  *TimedWriter
	closed  atomic.Bool
}

func NewTimedConn(conn net.Conn, readTimeout, writeTimeout time.Duration) *TimedConn {
	timed := &TimedConn{Conn: conn}
	timed.timeout = NewAsyncTimeout(timed.closeOnExpiry)
	timed.reader = timed.timeout.Reader(conn, readTimeout)
	timed.writer = timed.timeout.Writer(conn, writeTimeout)
	return timed
}

// SetLogger routes expiry-callback failures from this conn's deadline slot
// to l.
func (c *TimedConn) SetLogger(l logger.Logger) {
	c.timeout.SetLogger(l)
}

func (c *TimedConn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	return c.reader.Read(p)
}

func (c *TimedConn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	return c.writer.Write(p)
}

func (c *TimedConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

func (c *TimedConn) closeOnExpiry() error {
	c.closed.Store(true)
	return c.Conn.Close()
}
