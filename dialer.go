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
	"context"
	"errors"
	"net"
	"strconv"

	E "github.com/sagernet/sing/common/exceptions"
)

// Dialer opens client connections with an endpoint's timeouts and socket
// options applied. The connect deadline is the intersection of the
// configured ConnectTimeout and the calling goroutine's cancellation
// scope.
type Dialer struct {
	options Options
}

func NewDialer(options Options) *Dialer {
	return &Dialer{options: options.withDefaults()}
}

// Dial connects to a host:port address.
func (d *Dialer) Dial(address string) (net.Conn, error) {
	return d.DialContext(context.Background(), address)
}

func (d *Dialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, E.Cause(err, "parse address")
	}
	if _, numErr := strconv.Atoi(port); numErr != nil {
		if _, lookupErr := net.LookupPort("tcp", port); lookupErr != nil {
			return nil, E.Cause(ErrUnknownService, port)
		}
	}

	if d.options.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.options.ConnectTimeout)
		defer cancel()
	}
	if token := CurrentToken(); token != nil {
		if remaining, ok := token.Remaining(); ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, remaining)
			defer cancel()
		}
	}

	dialer := net.Dialer{Control: d.options.controlChain()}
	conn, err := dialer.DialContext(ctx, d.options.ProtocolFamily.network(), address)
	if err != nil {
		return nil, d.classifyDialError(host, err)
	}
	return conn, nil
}

// DialTimed connects and wraps the conn so reads and writes carry the
// endpoint's deadlines, with expiry closing the conn.
func (d *Dialer) DialTimed(ctx context.Context, address string) (*TimedConn, error) {
	conn, err := d.DialContext(ctx, address)
	if err != nil {
		return nil, err
	}
	timed := NewTimedConn(conn, d.options.ReadTimeout, d.options.WriteTimeout)
	timed.SetLogger(d.options.Logger)
	return timed, nil
}

func (d *Dialer) classifyDialError(host string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return E.Cause(ErrUnknownHost, host)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		cancelled := false
		if token := CurrentToken(); token != nil {
			cancelled = token.Cancelled()
		}
		return &TimeoutError{Cancelled: cancelled, Cause: err}
	}
	return E.Cause(ErrConnectFailed, err.Error())
}
