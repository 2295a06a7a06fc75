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

package socks

import (
	"encoding/binary"
	"io"
	"net/netip"

	"github.com/sagernet/sing/common"
	"github.com/sagernet/sing/common/buf"
	E "github.com/sagernet/sing/common/exceptions"
	M "github.com/sagernet/sing/common/metadata"
)

// ClientHandshake5 negotiates a SOCKS5 CONNECT to destination over conn
// and returns the proxy's bound address. The greeting always offers both
// NO AUTHENTICATION and USERNAME/PASSWORD; the password may be empty.
func ClientHandshake5(conn io.ReadWriter, destination M.Socksaddr, username string, password string) (M.Socksaddr, error) {
	bound, err := clientHandshake5(conn, destination, username, password)
	if err != nil {
		failConnection(conn)
	}
	return bound, err
}

func clientHandshake5(conn io.ReadWriter, destination M.Socksaddr, username string, password string) (M.Socksaddr, error) {
	greeting := []byte{Version5, 2, AuthMethodNone, AuthMethodUsernamePassword}
	if _, err := conn.Write(greeting); err != nil {
		return M.Socksaddr{}, E.Cause(err, "write greeting")
	}

	var selection [2]byte
	if _, err := io.ReadFull(conn, selection[:]); err != nil {
		return M.Socksaddr{}, ErrBadReply
	}
	if selection[0] != Version5 {
		return M.Socksaddr{}, &Error{Version: selection[0], Message: "unexpected version in method selection"}
	}
	switch selection[1] {
	case AuthMethodNone:
	case AuthMethodUsernamePassword:
		if err := authenticate(conn, username, password); err != nil {
			return M.Socksaddr{}, err
		}
	default:
		return M.Socksaddr{}, &Error{Version: Version5, Message: "no acceptable authentication method"}
	}

	request := buf.New()
	defer request.Release()
	common.Must(
		request.WriteByte(Version5),
		request.WriteByte(CommandConnect),
		request.WriteByte(0x00),
	)
	if err := writeAddress(request, destination); err != nil {
		return M.Socksaddr{}, err
	}
	if _, err := conn.Write(request.Bytes()); err != nil {
		return M.Socksaddr{}, E.Cause(err, "write request")
	}

	var reply [4]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return M.Socksaddr{}, ErrBadReply
	}
	if reply[0] != Version5 {
		return M.Socksaddr{}, &Error{Version: reply[0], Message: "unexpected version in reply"}
	}
	if code := ReplyCode(reply[1]); code != ReplySuccess {
		return M.Socksaddr{}, &Error{Version: Version5, Reply: code}
	}
	bound, err := readAddress(conn, reply[3])
	if err != nil {
		return M.Socksaddr{}, err
	}
	return bound, nil
}

// authenticate runs the RFC 1929 username/password sub-negotiation.
// Success is exactly a zero status byte; anything else fails the
// handshake.
func authenticate(conn io.ReadWriter, username string, password string) error {
	user, err := latin1(username)
	if err != nil {
		return E.Cause(err, "username")
	}
	pass, err := latin1(password)
	if err != nil {
		return E.Cause(err, "password")
	}

	message := buf.NewSize(3 + len(user) + len(pass))
	defer message.Release()
	common.Must(
		message.WriteByte(authSubnegotiationVersion),
		message.WriteByte(byte(len(user))),
		common.Error(message.Write(user)),
		message.WriteByte(byte(len(pass))),
		common.Error(message.Write(pass)),
	)
	if _, err = conn.Write(message.Bytes()); err != nil {
		return E.Cause(err, "write authentication")
	}

	var status [2]byte
	if _, err = io.ReadFull(conn, status[:]); err != nil {
		return ErrBadReply
	}
	if status[1] != 0 {
		return &Error{Version: Version5, Message: "authentication failed"}
	}
	return nil
}

// ClientHandshake4 negotiates a SOCKS4 CONNECT. The protocol carries only
// IPv4 addresses, so unresolved host names and other families are rejected
// before any bytes hit the wire.
func ClientHandshake4(conn io.ReadWriter, destination M.Socksaddr, username string) error {
	err := clientHandshake4(conn, destination, username)
	if err != nil {
		failConnection(conn)
	}
	return err
}

func clientHandshake4(conn io.ReadWriter, destination M.Socksaddr, username string) error {
	if destination.IsFqdn() || !destination.Addr.Unmap().Is4() {
		return E.New("SOCKS4 requires an IPv4 destination, got ", destination.String())
	}
	user, err := latin1(username)
	if err != nil {
		return E.Cause(err, "username")
	}

	addr := destination.Addr.Unmap().As4()
	request := buf.NewSize(9 + len(user))
	defer request.Release()
	common.Must(
		request.WriteByte(Version4),
		request.WriteByte(CommandConnect),
	)
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], destination.Port)
	common.Must(
		common.Error(request.Write(port[:])),
		common.Error(request.Write(addr[:])),
		common.Error(request.Write(user)),
		request.WriteByte(0x00),
	)
	if _, err = conn.Write(request.Bytes()); err != nil {
		return E.Cause(err, "write request")
	}

	var reply [8]byte
	if _, err = io.ReadFull(conn, reply[:]); err != nil {
		return ErrBadReply
	}
	if reply[0] != socks4ReplyVersion {
		return ErrBadReply
	}
	switch reply[1] {
	case socks4Granted:
		return nil
	case socks4Rejected:
		return &Error{Version: Version4, Message: "request rejected or failed"}
	case socks4IdentRequired:
		return &Error{Version: Version4, Message: "identd unreachable"}
	case socks4IdentMismatch:
		return &Error{Version: Version4, Message: "identd user mismatch"}
	default:
		return ErrBadReply
	}
}

// writeAddress appends the SOCKS5 address encoding: one address-type byte,
// the address (domains length-prefixed and Latin-1), then the big-endian
// port.
func writeAddress(buffer *buf.Buffer, destination M.Socksaddr) error {
	if destination.IsFqdn() {
		domain, err := latin1(destination.Fqdn)
		if err != nil {
			return E.Cause(err, "domain")
		}
		common.Must(
			buffer.WriteByte(AddressTypeDomain),
			buffer.WriteByte(byte(len(domain))),
			common.Error(buffer.Write(domain)),
		)
	} else if addr := destination.Addr.Unmap(); addr.Is4() {
		ip := addr.As4()
		common.Must(
			buffer.WriteByte(AddressTypeIPv4),
			common.Error(buffer.Write(ip[:])),
		)
	} else if addr.Is6() {
		ip := addr.As16()
		common.Must(
			buffer.WriteByte(AddressTypeIPv6),
			common.Error(buffer.Write(ip[:])),
		)
	} else {
		return E.New("invalid destination ", destination.String())
	}
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], destination.Port)
	common.Must(common.Error(buffer.Write(port[:])))
	return nil
}

// readAddress consumes the bound-address field of a successful reply. The
// length depends on the address type: 4 for IPv4, 16 for IPv6, one length
// byte plus the name for domains, always followed by the 2-byte port.
func readAddress(conn io.Reader, addressType byte) (M.Socksaddr, error) {
	var bound M.Socksaddr
	switch addressType {
	case AddressTypeIPv4:
		var addr [4]byte
		if _, err := io.ReadFull(conn, addr[:]); err != nil {
			return M.Socksaddr{}, ErrBadReply
		}
		bound.Addr = netip.AddrFrom4(addr)
	case AddressTypeIPv6:
		var addr [16]byte
		if _, err := io.ReadFull(conn, addr[:]); err != nil {
			return M.Socksaddr{}, ErrBadReply
		}
		bound.Addr = netip.AddrFrom16(addr)
	case AddressTypeDomain:
		var length [1]byte
		if _, err := io.ReadFull(conn, length[:]); err != nil {
			return M.Socksaddr{}, ErrBadReply
		}
		domain := make([]byte, length[0])
		if _, err := io.ReadFull(conn, domain); err != nil {
			return M.Socksaddr{}, ErrBadReply
		}
		bound.Fqdn = string(domain)
	default:
		return M.Socksaddr{}, &Error{Version: Version5, Message: "unknown bound address type"}
	}
	var port [2]byte
	if _, err := io.ReadFull(conn, port[:]); err != nil {
		return M.Socksaddr{}, ErrBadReply
	}
	bound.Port = binary.BigEndian.Uint16(port[:])
	return bound, nil
}

// failConnection tears down both directions before an error surfaces.
// Half-close is attempted first so a duplex stream does not linger in a
// half-open state when Close alone is buffered or deferred.
func failConnection(conn any) {
	if closer, ok := conn.(interface{ CloseRead() error }); ok {
		_ = closer.CloseRead()
	}
	if closer, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = closer.CloseWrite()
	}
	_ = common.Close(conn)
}
