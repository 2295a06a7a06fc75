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

// Run executes fn inside a new cancellation scope with no budget of its
// own. The scope still inherits any deadline from an enclosing scope, and
// fn receives the token so another goroutine may Cancel it.
func Run(fn func(*CancelToken) error) error {
	return runScope(0, false, fn)
}

// RunTimeout executes fn inside a scope whose total budget is timeout,
// measured from entry. A zero timeout means unlimited.
func RunTimeout(timeout time.Duration, fn func(*CancelToken) error) error {
	return runScope(timeout, false, fn)
}

// RunDeadline executes fn inside a scope that expires at the given wall
// clock instant.
func RunDeadline(deadline time.Time, fn func(*CancelToken) error) error {
	timeout := time.Until(deadline)
	if timeout <= 0 {
		// an instant already passed yields an expired scope, not an
		// unlimited one
		timeout = 1
	}
	return runScope(timeout, false, fn)
}

// RunShielded executes fn inside a scope that outer cancellation cannot
// reach. A budget set on the shielded scope itself still applies.
func RunShielded(fn func(*CancelToken) error) error {
	return runScope(0, true, fn)
}

// RunShieldedTimeout is RunShielded with a total budget.
func RunShieldedTimeout(timeout time.Duration, fn func(*CancelToken) error) error {
	return runScope(timeout, true, fn)
}

func runScope(timeout time.Duration, shielded bool, fn func(*CancelToken) error) error {
	token := enterScope(timeout, shielded)
	defer exitScope(token)
	return fn(token)
}

// enterScope builds the token and pushes it onto the goroutine's stack.
// The relative budget is converted to an absolute deadline at entry, and a
// non-shielded scope inherits the tighter of its own and its parent's
// deadline, so nesting can only shrink budgets.
func enterScope(timeout time.Duration, shielded bool) *CancelToken {
	now := nowNanos()
	token := &CancelToken{shielded: shielded}
	if timeout > 0 {
		token.deadlineNanos = now + int64(timeout)
	}
	if parent := CurrentToken(); parent != nil && !shielded {
		timeoutMu.Lock()
		if !parent.finished {
			if parent.deadlineNanos > 0 && (token.deadlineNanos == 0 || parent.deadlineNanos-token.deadlineNanos < 0) {
				token.deadlineNanos = parent.deadlineNanos
			}
			if parent.cancelled {
				token.cancelled = true
			}
		}
		timeoutMu.Unlock()
	}
	pushToken(token)
	return token
}

func exitScope(token *CancelToken) {
	popToken()
	token.finish()
}
