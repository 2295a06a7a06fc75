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
	"time"

	"github.com/sagernet/sing/common/control"
	"github.com/sagernet/sing/common/logger"
)

// Family selects the protocol family used for address resolution.
type Family int

const (
	FamilyAny Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) network() string {
	switch f {
	case FamilyIPv4:
		return "tcp4"
	case FamilyIPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

const defaultBacklog = 128

// Options configures one network endpoint. The zero value means no
// timeouts, any protocol family, and a default listen backlog.
type Options struct {
	// ConnectTimeout caps the initial connect, 0 = unlimited.
	ConnectTimeout time.Duration
	// ReadTimeout is the per-read default deadline, 0 = unlimited.
	ReadTimeout time.Duration
	// WriteTimeout is the per-chunk write default deadline, 0 = unlimited.
	WriteTimeout time.Duration
	// MaxPendingConnections is the OS listen backlog for server sockets.
	MaxPendingConnections int
	// ProtocolFamily restricts address resolution.
	ProtocolFamily Family
	// SocketOptions are applied to the socket before it is used.
	SocketOptions []control.Func
	Logger        logger.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxPendingConnections <= 0 {
		o.MaxPendingConnections = defaultBacklog
	}
	if o.Logger == nil {
		o.Logger = logger.NOP()
	}
	return o
}

func (o Options) controlChain() control.Func {
	var chain control.Func
	for _, f := range o.SocketOptions {
		chain = control.Append(chain, f)
	}
	return chain
}
