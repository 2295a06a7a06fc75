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
	"errors"
	"io"
	"time"

	"github.com/sagernet/sing/common/logger"
)

// AsyncTimeout binds a deadline slot to one resource. Its expiry callback,
// typically closing that resource, runs on the watchdog goroutine when a
// deadline elapses. Callbacks must not perform long-running operations,
// lest they starve other timeouts; a failure to close is logged and
// swallowed, since the blocked I/O call reports the closure through its
// own error path.
type AsyncTimeout struct {
	onExpire func() error
	logger   logger.Logger
}

func NewAsyncTimeout(onExpire func() error) *AsyncTimeout {
	return &AsyncTimeout{onExpire: onExpire, logger: logger.NOP()}
}

// SetLogger routes expiry-callback failures to l instead of discarding
// them silently.
func (t *AsyncTimeout) SetLogger(l logger.Logger) {
	if l != nil {
		t.logger = l
	}
}

// Handle pairs one Enter with its Exit. A nil handle means Enter found
// nothing to enforce and Exit is a no-op.
type Handle struct {
	node       *deadlineNode
	ownedToken *CancelToken
}

// Enter schedules this slot's deadline for one blocking operation.
//
// With a cancellation scope active on the goroutine, the fire time is the
// scope's: the earlier of its absolute deadline and its per-operation
// budget from now. A scope with neither yields nil, deliberately ignoring
// defaultTimeout — adapters install their defaults into the token instead,
// so an explicitly unlimited scope stays unlimited. With no scope active,
// defaultTimeout governs: zero means nil, otherwise a temporary owned
// token carrying it is pushed for the duration of the operation.
//
// Every non-nil handle must be consumed by exactly one Exit on the same
// goroutine. Callers must not return across an Enter without the matching
// Exit.
func (t *AsyncTimeout) Enter(defaultTimeout time.Duration) *Handle {
	now := nowNanos()
	if token := CurrentToken(); token != nil {
		timeoutMu.Lock()
		fireAt := token.fireTime(now)
		timeoutMu.Unlock()
		if fireAt == 0 {
			return nil
		}
		node := &deadlineNode{fireAt: fireAt, expire: t.expire, token: token, index: -1}
		scheduleNode(node)
		return &Handle{node: node}
	}
	if defaultTimeout <= 0 {
		return nil
	}
	token := &CancelToken{
		timeoutNanos:  int64(defaultTimeout),
		deadlineNanos: now + int64(defaultTimeout),
	}
	pushToken(token)
	node := &deadlineNode{fireAt: token.deadlineNanos, expire: t.expire, token: token, index: -1}
	scheduleNode(node)
	return &Handle{node: node, ownedToken: token}
}

// Exit closes out an Enter. True means the deadline fired first: the
// expiry callback has run or is about to, and the caller should treat the
// resource as closing asynchronously.
func (t *AsyncTimeout) Exit(h *Handle) bool {
	if h == nil {
		return false
	}
	removed := unscheduleNode(h.node)
	if h.ownedToken != nil {
		popToken()
		h.ownedToken.finish()
	}
	return !removed
}

// Do runs op under this slot's deadline and translates the outcome. An
// organic failure (deadline never fired) propagates as-is. A failure with
// the deadline fired becomes a TimeoutError carrying the original as
// cause. A normal return with the deadline fired cancels the scope and
// still reports a TimeoutError: the result may be stale, the resource is
// being closed.
func (t *AsyncTimeout) Do(defaultTimeout time.Duration, op func() error) error {
	h := t.Enter(defaultTimeout)
	err := op()
	timedOut := t.Exit(h)
	if err != nil {
		if !timedOut {
			return err
		}
		return timeoutError(h, err)
	}
	if timedOut {
		if token := h.node.token; token != nil {
			token.Cancel()
		}
		return timeoutError(h, nil)
	}
	return nil
}

// doTimed is Do with the adapter rule applied: an active scope has the
// configured default installed as its per-operation budget for the span of
// the call, no scope and no default skips the bookkeeping entirely.
func (t *AsyncTimeout) doTimed(defaultTimeout time.Duration, op func() error) error {
	if token := CurrentToken(); token != nil && !token.Finished() {
		previous := token.swapTimeout(int64(defaultTimeout))
		defer token.swapTimeout(previous)
		return t.Do(defaultTimeout, op)
	}
	if defaultTimeout <= 0 {
		return op()
	}
	return t.Do(defaultTimeout, op)
}

// Reader wraps inner so that every Read carries this slot's deadline, with
// readTimeout as the per-call default.
func (t *AsyncTimeout) Reader(inner io.Reader, readTimeout time.Duration) *TimedReader {
	return &TimedReader{timeout: t, inner: inner, readTimeout: readTimeout}
}

// Writer wraps inner so that every Write carries this slot's deadline,
// split into bounded chunks, with writeTimeout as the per-chunk default.
func (t *AsyncTimeout) Writer(inner io.Writer, writeTimeout time.Duration) *TimedWriter {
	return &TimedWriter{timeout: t, inner: inner, writeTimeout: writeTimeout}
}

func timeoutError(h *Handle, cause error) error {
	var existing *TimeoutError
	if errors.As(cause, &existing) {
		return cause
	}
	cancelled := false
	if token := h.node.token; token != nil {
		cancelled = token.Cancelled()
	}
	return &TimeoutError{Cancelled: cancelled, Cause: cause}
}

func (t *AsyncTimeout) expire() {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Debug("panic in expiry callback: ", r)
		}
	}()
	if t.onExpire == nil {
		return
	}
	if err := t.onExpire(); err != nil {
		t.logger.Debug("closing timed out resource: ", err)
	}
}
