package tio

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireQueueEmpty(t *testing.T) {
	t.Helper()
	timeoutMu.Lock()
	defer timeoutMu.Unlock()
	require.Zero(t, timeoutQueue.Len())
}

func TestTimeoutFiresCleanly(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	var closed atomic.Int32
	timeout := NewAsyncTimeout(func() error {
		closed.Add(1)
		return client.Close()
	})
	reader := timeout.Reader(client, 50*time.Millisecond)

	start := time.Now()
	_, err := reader.Read(make([]byte, 1))
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.False(t, timeoutErr.Cancelled)
	require.NotNil(t, timeoutErr.Cause)
	require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), closed.Load())
	requireQueueEmpty(t)
}

func TestExpiryAtMostOnce(t *testing.T) {
	var fired atomic.Int32
	timeout := NewAsyncTimeout(func() error {
		fired.Add(1)
		return nil
	})
	err := timeout.Do(100*time.Millisecond, func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	require.Zero(t, fired.Load())
	requireQueueEmpty(t)
}

func TestBalancedEnterExitAcrossGoroutines(t *testing.T) {
	timeout := NewAsyncTimeout(func() error { return nil })
	var group sync.WaitGroup
	for g := 0; g < 8; g++ {
		group.Add(1)
		go func(seed int) {
			defer group.Done()
			for i := 0; i < 50; i++ {
				budget := time.Duration(seed+i%7+1) * 10 * time.Millisecond
				err := timeout.Do(budget, func() error { return nil })
				if err != nil {
					t.Error(err)
					return
				}
			}
		}(g)
	}
	group.Wait()
	requireQueueEmpty(t)

	scopes.Lock()
	defer scopes.Unlock()
	require.Empty(t, scopes.m)
}

func TestZeroTimeoutNoEnqueue(t *testing.T) {
	timeout := NewAsyncTimeout(func() error { return nil })
	require.Nil(t, timeout.Enter(0))
	require.False(t, timeout.Exit(nil))
	requireQueueEmpty(t)
}

func TestWatchdogIdleCycle(t *testing.T) {
	previous := watchdogIdleTimeout
	watchdogIdleTimeout = 50 * time.Millisecond
	defer func() { watchdogIdleTimeout = previous }()

	fireOne := func() {
		client, server := net.Pipe()
		defer server.Close()
		timeout := NewAsyncTimeout(client.Close)
		reader := timeout.Reader(client, 10*time.Millisecond)
		_, err := reader.Read(make([]byte, 1))
		require.True(t, IsTimeout(err))
	}

	fireOne()
	firstGen := watchdogGeneration()
	require.NotZero(t, firstGen)

	// the queue is empty now; the watchdog retires after the idle interval
	time.Sleep(300 * time.Millisecond)

	fireOne()
	require.Greater(t, watchdogGeneration(), firstGen)
}
