package tio

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func verifyHeap(t *testing.T, q deadlineQueue) {
	t.Helper()
	for i := 1; i < len(q); i++ {
		parent := (i - 1) / 2
		require.LessOrEqual(t, q[parent].fireAt, q[i].fireAt)
	}
	for i := range q {
		require.Equal(t, i, q[i].index)
	}
}

func TestQueueOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var q deadlineQueue
	const count = 256
	for i := 0; i < count; i++ {
		q.enqueue(&deadlineNode{fireAt: rng.Int63n(1000), index: -1})
	}
	verifyHeap(t, q)

	last := int64(-1)
	for q.Len() > 0 {
		node := q.peek()
		require.GreaterOrEqual(t, node.fireAt, last)
		last = node.fireAt
		require.True(t, q.dequeue(node))
		require.Equal(t, -1, node.index)
		verifyHeap(t, q)
	}
}

func TestQueueRemoveArbitrary(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	var q deadlineQueue
	nodes := make([]*deadlineNode, 64)
	for i := range nodes {
		nodes[i] = &deadlineNode{fireAt: rng.Int63n(500), index: -1}
		q.enqueue(nodes[i])
	}
	for _, i := range rng.Perm(len(nodes)) {
		require.True(t, q.dequeue(nodes[i]))
		require.Equal(t, -1, nodes[i].index)
		verifyHeap(t, q)
	}
	require.Zero(t, q.Len())
}

func TestQueueDequeueTwice(t *testing.T) {
	var q deadlineQueue
	node := &deadlineNode{fireAt: 10, index: -1}
	q.enqueue(node)
	require.True(t, q.dequeue(node))
	require.False(t, q.dequeue(node))
}

func TestQueueHeadSignal(t *testing.T) {
	var q deadlineQueue
	require.True(t, q.enqueue(&deadlineNode{fireAt: 100, index: -1}))
	require.False(t, q.enqueue(&deadlineNode{fireAt: 200, index: -1}))
	require.True(t, q.enqueue(&deadlineNode{fireAt: 50, index: -1}))
}

func TestQueueRemovalDoesNotDisturbOthers(t *testing.T) {
	var q deadlineQueue
	first := &deadlineNode{fireAt: 10, index: -1}
	second := &deadlineNode{fireAt: 20, index: -1}
	third := &deadlineNode{fireAt: 30, index: -1}
	q.enqueue(third)
	q.enqueue(first)
	q.enqueue(second)
	require.True(t, q.dequeue(second))
	require.Same(t, first, q.peek())
	verifyHeap(t, q)
}
