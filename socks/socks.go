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

// Package socks implements the client side of the SOCKS4 and SOCKS5
// CONNECT handshake over an already-connected byte stream. Any protocol
// failure closes both directions of the stream before the error surfaces,
// so a failed negotiation never leaves a half-open socket behind.
package socks

import (
	"strconv"

	E "github.com/sagernet/sing/common/exceptions"
)

const (
	Version4 byte = 0x04
	Version5 byte = 0x05

	CommandConnect byte = 0x01

	AuthMethodNone             byte = 0x00
	AuthMethodUsernamePassword byte = 0x02
	authMethodNoAcceptable     byte = 0xFF

	authSubnegotiationVersion byte = 0x01

	AddressTypeIPv4   byte = 0x01
	AddressTypeDomain byte = 0x03
	AddressTypeIPv6   byte = 0x04
)

// SOCKS4 reply statuses. 90 is the only success; the reply's leading
// version byte is always zero.
const (
	socks4ReplyVersion  byte = 0x00
	socks4Granted       byte = 90
	socks4Rejected      byte = 91
	socks4IdentRequired byte = 92
	socks4IdentMismatch byte = 93
)

// ErrBadReply covers every bounded-read failure mid-handshake (short
// reads, EOF) and SOCKS4 replies with a non-zero version byte or an
// undefined status. A SOCKS5 reply with the wrong version byte is reported
// as an *Error instead.
var ErrBadReply = E.New("SOCKS reply badly formatted")

// ReplyCode is the status byte of a SOCKS5 reply.
type ReplyCode byte

const (
	ReplySuccess                 ReplyCode = 0
	ReplyGeneralFailure          ReplyCode = 1
	ReplyNotAllowed              ReplyCode = 2
	ReplyNetworkUnreachable      ReplyCode = 3
	ReplyHostUnreachable         ReplyCode = 4
	ReplyConnectionRefused       ReplyCode = 5
	ReplyTTLExpired              ReplyCode = 6
	ReplyCommandNotSupported     ReplyCode = 7
	ReplyAddressTypeNotSupported ReplyCode = 8
)

func (c ReplyCode) String() string {
	switch c {
	case ReplySuccess:
		return "succeeded"
	case ReplyGeneralFailure:
		return "general SOCKS server failure"
	case ReplyNotAllowed:
		return "connection not allowed by ruleset"
	case ReplyNetworkUnreachable:
		return "network unreachable"
	case ReplyHostUnreachable:
		return "host unreachable"
	case ReplyConnectionRefused:
		return "connection refused"
	case ReplyTTLExpired:
		return "TTL expired"
	case ReplyCommandNotSupported:
		return "command not supported"
	case ReplyAddressTypeNotSupported:
		return "address type not supported"
	default:
		return "unassigned status " + strconv.Itoa(int(c))
	}
}

// Error is a failure signalled by the proxy, either through a non-zero
// status byte or a semantically invalid reply.
type Error struct {
	Version byte
	Reply   ReplyCode
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return "SOCKS: " + e.Message
	}
	return "SOCKS: " + e.Reply.String()
}

// latin1 encodes s as ISO-8859-1, the charset SOCKS text fields use on the
// wire. Fields are length-prefixed with a single byte, so anything longer
// than 255 bytes or outside code points 0-255 is rejected up front.
func latin1(s string) ([]byte, error) {
	encoded := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return nil, E.New("not ISO-8859-1: ", s)
		}
		encoded = append(encoded, byte(r))
	}
	if len(encoded) > 255 {
		return nil, E.New("field longer than 255 bytes")
	}
	return encoded, nil
}
