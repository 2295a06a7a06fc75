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

import "time"

// CancelToken carries the budget and state of one cancellation scope.
//
// timeoutNanos is the relative per-operation budget (0 = unlimited) and
// deadlineNanos the absolute fire time on the package clock (0 = none).
// finished and cancelled are one-way latches: once set they are never
// unset. Fields are mutated under the queue mutex so that manual Cancel
// from another goroutine serialises with the watchdog.
type CancelToken struct {
	timeoutNanos  int64
	deadlineNanos int64
	shielded      bool
	finished      bool
	cancelled     bool
}

// Cancel requests cancellation of the scope. In-flight OS I/O is not
// interrupted: the request becomes visible at the next Check, or when the
// scope's deadline elapses and the watchdog closes the resource. Calling
// Cancel on an already-cancelled token is a no-op.
func (t *CancelToken) Cancel() {
	timeoutMu.Lock()
	t.cancelled = true
	timeoutMu.Unlock()
}

// Cancelled reports whether Cancel has been called on this token.
func (t *CancelToken) Cancelled() bool {
	timeoutMu.Lock()
	defer timeoutMu.Unlock()
	return t.cancelled
}

// Check returns ErrCancelled once the token has been cancelled.
func (t *CancelToken) Check() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Shielded reports whether the scope is isolated from outer cancellation.
func (t *CancelToken) Shielded() bool {
	return t.shielded
}

// Finished reports whether the scope has exited.
func (t *CancelToken) Finished() bool {
	timeoutMu.Lock()
	defer timeoutMu.Unlock()
	return t.finished
}

// Remaining reports the time left before the scope's effective deadline.
// The second return value is false when the token carries no budget.
func (t *CancelToken) Remaining() (time.Duration, bool) {
	now := nowNanos()
	timeoutMu.Lock()
	fireAt := t.fireTime(now)
	timeoutMu.Unlock()
	if fireAt == 0 {
		return 0, false
	}
	return time.Duration(fireAt - now), true
}

// fireTime computes the absolute expiry for an operation started now: the
// earlier of the scope deadline and now + the per-operation budget. Zero
// means nothing to enforce. Caller holds the queue mutex.
func (t *CancelToken) fireTime(now int64) int64 {
	if t.finished {
		return 0
	}
	fireAt := t.deadlineNanos
	if t.timeoutNanos > 0 {
		if byTimeout := now + t.timeoutNanos; fireAt == 0 || byTimeout-fireAt < 0 {
			fireAt = byTimeout
		}
	}
	return fireAt
}

// swapTimeout installs a new per-operation budget and returns the previous
// one. Readers and writers use it to apply their configured defaults for
// the duration of a single call.
func (t *CancelToken) swapTimeout(nanos int64) int64 {
	timeoutMu.Lock()
	previous := t.timeoutNanos
	t.timeoutNanos = nanos
	timeoutMu.Unlock()
	return previous
}

func (t *CancelToken) finish() {
	timeoutMu.Lock()
	t.finished = true
	timeoutMu.Unlock()
}
