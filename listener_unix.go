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

//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package tio

import (
	"net"
	"os"

	E "github.com/sagernet/sing/common/exceptions"
	"golang.org/x/sys/unix"
)

// Listen opens a TCP listener whose accept backlog really is
// MaxPendingConnections. The stdlib listener hardcodes the backlog, so the
// socket is built by hand: socket, socket options, bind, listen, then
// handed back to the runtime poller through net.FileListener.
func Listen(address string, options Options) (net.Listener, error) {
	options = options.withDefaults()
	tcpAddr, err := net.ResolveTCPAddr(options.ProtocolFamily.network(), address)
	if err != nil {
		return nil, E.Cause(ErrUnknownHost, address)
	}

	family := unix.AF_INET
	var sockaddr unix.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
		copy(sa.Addr[:], ip4)
		sockaddr = sa
	} else if tcpAddr.IP == nil && options.ProtocolFamily != FamilyIPv6 {
		sockaddr = &unix.SockaddrInet4{Port: tcpAddr.Port}
	} else {
		family = unix.AF_INET6
		sa := &unix.SockaddrInet6{Port: tcpAddr.Port}
		if ip16 := tcpAddr.IP.To16(); ip16 != nil {
			copy(sa.Addr[:], ip16)
		}
		sockaddr = sa
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, E.Cause(err, "create socket")
	}
	unix.CloseOnExec(fd)
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, E.Cause(err, "set nonblocking")
	}

	file := os.NewFile(uintptr(fd), "listener")
	defer file.Close()

	if chain := options.controlChain(); chain != nil {
		rawConn, rawErr := file.SyscallConn()
		if rawErr != nil {
			return nil, E.Cause(rawErr, "raw conn")
		}
		if err = chain(options.ProtocolFamily.network(), address, rawConn); err != nil {
			return nil, E.Cause(err, "apply socket options")
		}
	}

	if err = unix.Bind(fd, sockaddr); err != nil {
		return nil, E.Cause(err, "bind ", address)
	}
	if err = unix.Listen(fd, options.MaxPendingConnections); err != nil {
		return nil, E.Cause(err, "listen ", address)
	}

	listener, err := net.FileListener(file)
	if err != nil {
		return nil, E.Cause(err, "register listener")
	}
	return listener, nil
}
