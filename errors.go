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
	"net"

	E "github.com/sagernet/sing/common/exceptions"
)

var (
	ErrCancelled      = E.New("operation cancelled")
	ErrClosed         = E.New("resource closed")
	ErrUnknownHost    = E.New("unknown host")
	ErrUnknownService = E.New("unknown service")
	ErrConnectFailed  = E.New("connect failed")
)

// TimeoutError reports that an operation's deadline fired while it was in
// flight. The resource bound to the operation is being closed by the
// watchdog, so any partial result may be stale.
//
// TimeoutError implements net.Error so that callers selecting on
// `net.Error.Timeout()` keep working, e.g. when a wrapped stream backs a
// net.Listener handed to http.Server.
type TimeoutError struct {
	// Cancelled reports whether the operation's scope was cancelled when
	// the timeout was reported: by a manual Cancel, or by Do itself when
	// the operation returned normally after its deadline fired.
	Cancelled bool
	Cause     error
}

func (e *TimeoutError) Error() string {
	msg := "timeout"
	if e.Cancelled {
		msg = "timeout: cancelled"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *TimeoutError) Timeout() bool   { return true }
func (e *TimeoutError) Temporary() bool { return true }
func (e *TimeoutError) Unwrap() error   { return e.Cause }

var _ net.Error = (*TimeoutError)(nil)

// IsTimeout reports whether err carries a TimeoutError anywhere in its
// chain.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
