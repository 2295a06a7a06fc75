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
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Scope stacks are keyed by goroutine id. Lookup happens once per timed
// operation, stack depth is typically no more than three, and the map only
// holds entries for goroutines currently inside a scope.
var scopes = struct {
	sync.Mutex
	m map[uint64][]*CancelToken
}{m: make(map[uint64][]*CancelToken)}

func pushToken(token *CancelToken) {
	id := gid()
	scopes.Lock()
	scopes.m[id] = append(scopes.m[id], token)
	scopes.Unlock()
}

func popToken() *CancelToken {
	id := gid()
	scopes.Lock()
	defer scopes.Unlock()
	stack := scopes.m[id]
	if len(stack) == 0 {
		return nil
	}
	token := stack[len(stack)-1]
	stack[len(stack)-1] = nil
	if len(stack) == 1 {
		delete(scopes.m, id)
	} else {
		scopes.m[id] = stack[:len(stack)-1]
	}
	return token
}

// CurrentToken returns the calling goroutine's innermost cancellation
// scope, or nil when none is active.
func CurrentToken() *CancelToken {
	id := gid()
	scopes.Lock()
	defer scopes.Unlock()
	stack := scopes.m[id]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// CheckCancelled returns ErrCancelled when the calling goroutine's scope
// chain has a pending cancellation. The walk runs from the innermost scope
// outward and stops at the first shielded token: a shield hides outer
// cancellation, while its own Cancel still counts.
func CheckCancelled() error {
	id := gid()
	scopes.Lock()
	stack := append([]*CancelToken(nil), scopes.m[id]...)
	scopes.Unlock()

	timeoutMu.Lock()
	defer timeoutMu.Unlock()
	for i := len(stack) - 1; i >= 0; i-- {
		token := stack[i]
		if token.finished {
			continue
		}
		if token.cancelled {
			return ErrCancelled
		}
		if token.shielded {
			return nil
		}
	}
	return nil
}

var gidPrefix = []byte("goroutine ")

// gid parses the goroutine id out of the runtime.Stack header
// ("goroutine 123 [running]:"). The runtime offers no cheaper portable
// accessor; the buffer is small and the parse touches only the first line.
func gid() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	header := bytes.TrimPrefix(buf[:n], gidPrefix)
	end := bytes.IndexByte(header, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(header[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
