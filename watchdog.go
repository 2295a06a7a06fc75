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
	"container/heap"
	"sync"
	"time"
)

// Process-wide deadline machinery. One mutex guards the queue, the
// live-watchdog flag, and CancelToken field mutation; the buffered wake
// channel carries at most one pending signal, which is all the watchdog
// needs because it re-reads the queue head after every wakeup.
var (
	timeoutMu     sync.Mutex
	timeoutWake   = make(chan struct{}, 1)
	timeoutQueue  deadlineQueue
	watchdogAlive bool
	watchdogGen   uint64
)

// watchdogIdleTimeout is how long the watchdog lingers on an empty queue
// before retiring. A variable so tests can shorten the cycle.
var watchdogIdleTimeout = 60 * time.Second

func wakeWatchdog() {
	select {
	case timeoutWake <- struct{}{}:
	default:
	}
}

// scheduleNode enqueues the node and wakes or starts the watchdog as
// needed. Signalling only when the node became the head keeps the watchdog
// asleep while later deadlines pile up behind the current one.
func scheduleNode(node *deadlineNode) {
	timeoutMu.Lock()
	newHead := timeoutQueue.enqueue(node)
	if !watchdogAlive {
		watchdogAlive = true
		watchdogGen++
		go watchdog()
	} else if newHead {
		wakeWatchdog()
	}
	timeoutMu.Unlock()
}

// unscheduleNode removes the node, reporting true when it was still
// queued. Removing the head wakes the watchdog so it does not keep
// sleeping toward a deadline that no longer exists.
func unscheduleNode(node *deadlineNode) bool {
	timeoutMu.Lock()
	wasHead := node.index == 0
	removed := timeoutQueue.dequeue(node)
	if removed && wasHead {
		wakeWatchdog()
	}
	timeoutMu.Unlock()
	return removed
}

// watchdogGeneration counts watchdog goroutines started over the process
// lifetime; it only moves when an idle watchdog has retired and a later
// operation starts a fresh one.
func watchdogGeneration() uint64 {
	timeoutMu.Lock()
	defer timeoutMu.Unlock()
	return watchdogGen
}

// watchdog drains the queue: sleep until the head's fire time, pop it, run
// its callback. Callbacks run strictly outside the queue mutex and are
// invoked at most once per enqueue, because only the watchdog pops expired
// nodes and it does so before unlocking. After a full idle interval with
// nothing queued the goroutine retires; the next scheduleNode starts a
// fresh one.
func watchdog() {
	timer := time.NewTimer(watchdogIdleTimeout)
	defer timer.Stop()
	for {
		timeoutMu.Lock()
		node := timeoutQueue.peek()
		if node == nil {
			idle := watchdogIdleTimeout
			timeoutMu.Unlock()
			if sleepFor(timer, idle) {
				continue // woken, re-check
			}
			timeoutMu.Lock()
			if timeoutQueue.Len() == 0 {
				watchdogAlive = false
				timeoutMu.Unlock()
				return
			}
			timeoutMu.Unlock()
			continue
		}
		wait := node.fireAt - nowNanos()
		if wait > 0 {
			timeoutMu.Unlock()
			sleepFor(timer, time.Duration(wait))
			continue
		}
		heap.Pop(&timeoutQueue)
		timeoutMu.Unlock()
		node.expire()
	}
}

// sleepFor blocks until a wake signal or the duration elapses; true means
// woken. Wakeups may be stale (the signalling node might already be gone),
// which is fine: the caller re-reads the head either way.
func sleepFor(timer *time.Timer, d time.Duration) bool {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
	select {
	case <-timeoutWake:
		return true
	case <-timer.C:
		return false
	}
}
