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

import "container/heap"

// deadlineNode is one registration in the watchdog's queue: an absolute
// fire time plus the effect to run when it elapses.
type deadlineNode struct {
	fireAt int64
	expire func() // runs on the watchdog goroutine, outside the queue mutex
	token  *CancelToken
	index  int // heap position; -1 while not enqueued
}

// deadlineQueue is an index-tracked binary min-heap keyed by fire time.
// Each node stores its own position so removing an arbitrary node is
// O(log n) instead of a scan.
type deadlineQueue []*deadlineNode

func (q deadlineQueue) Len() int { return len(q) }

func (q deadlineQueue) Less(i, j int) bool {
	return q[i].fireAt-q[j].fireAt < 0
}

func (q deadlineQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *deadlineQueue) Push(x any) {
	node := x.(*deadlineNode)
	node.index = len(*q)
	*q = append(*q, node)
}

func (q *deadlineQueue) Pop() any {
	old := *q
	last := len(old) - 1
	node := old[last]
	old[last] = nil
	node.index = -1
	*q = old[:last]
	return node
}

// enqueue inserts the node and reports whether it became the new head, in
// which case the caller must wake the watchdog.
func (q *deadlineQueue) enqueue(node *deadlineNode) bool {
	heap.Push(q, node)
	return node.index == 0
}

// dequeue removes the node. False means the node was no longer queued,
// i.e. the watchdog already popped it and its callback has run or is about
// to.
func (q *deadlineQueue) dequeue(node *deadlineNode) bool {
	if node.index < 0 {
		return false
	}
	heap.Remove(q, node.index)
	return true
}

func (q deadlineQueue) peek() *deadlineNode {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}
