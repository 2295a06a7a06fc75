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
	"context"
	"net"

	E "github.com/sagernet/sing/common/exceptions"
	M "github.com/sagernet/sing/common/metadata"

	"github.com/tio-go/tio"
)

// Client dials destinations through a SOCKS proxy. The proxy password is
// held encrypted in memory and decrypted only for the handshake.
type Client struct {
	dialer   *tio.Dialer
	server   string
	version  byte
	username string
	password *tio.SecureString
}

func NewClient(dialer *tio.Dialer, server string, version byte, username string, password string) (*Client, error) {
	if version != Version4 && version != Version5 {
		return nil, E.New("unsupported SOCKS version ", version)
	}
	client := &Client{
		dialer:   dialer,
		server:   server,
		version:  version,
		username: username,
	}
	if password != "" {
		if version == Version4 {
			return nil, E.New("SOCKS4 has no password authentication")
		}
		secure, err := tio.NewSecureString([]byte(password))
		if err != nil {
			return nil, err
		}
		client.password = secure
	}
	return client, nil
}

// DialContext connects to the proxy, negotiates destination, and returns a
// conn relaying data through the established tunnel. Reads and writes on
// the returned conn carry the dialer's configured deadlines, including
// during the handshake itself.
func (c *Client) DialContext(ctx context.Context, destination M.Socksaddr) (net.Conn, error) {
	conn, err := c.dialer.DialTimed(ctx, c.server)
	if err != nil {
		return nil, err
	}
	switch c.version {
	case Version4:
		err = ClientHandshake4(conn, destination, c.username)
	case Version5:
		var password string
		if c.password != nil {
			plaintext := c.password.Decrypt()
			password = string(plaintext)
			for i := range plaintext {
				plaintext[i] = 0
			}
		}
		_, err = ClientHandshake5(conn, destination, c.username, password)
	}
	if err != nil {
		// the handshake already closed the stream
		return nil, err
	}
	return conn, nil
}

// Dial is DialContext with a background context.
func (c *Client) Dial(destination M.Socksaddr) (net.Conn, error) {
	return c.DialContext(context.Background(), destination)
}
