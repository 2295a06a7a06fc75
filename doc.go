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

// Package tio makes blocking I/O on byte streams cancellable from another
// goroutine at exactly the right moment.
//
// A single watchdog goroutine services a process-wide queue of deadlines.
// When a deadline elapses, the watchdog invokes a callback registered for
// the operation, typically closing the underlying socket, which forcibly
// unblocks the goroutine stuck in the OS call. When no timeout is
// configured, nothing is enqueued and the per-operation cost is near zero.
//
// Cancellation scopes nest per goroutine: Run and its variants push a
// CancelToken carrying a budget, and every timed operation started inside
// the scope honours it. TimedReader and TimedWriter wrap raw streams and
// enforce per-call deadlines, splitting large writes into bounded chunks so
// a slow but progressing peer is not killed.
package tio
