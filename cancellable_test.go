package tio

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScopeDeadlineAppliesToRead(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	timeout := NewAsyncTimeout(client.Close)
	reader := timeout.Reader(client, 0)

	err := RunTimeout(50*time.Millisecond, func(*CancelToken) error {
		_, readErr := reader.Read(make([]byte, 1))
		return readErr
	})
	require.True(t, IsTimeout(err))
	requireQueueEmpty(t)
}

func TestCancelSurfacesAsCancelledTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	timeout := NewAsyncTimeout(client.Close)
	reader := timeout.Reader(client, 0)

	start := time.Now()
	err := RunTimeout(150*time.Millisecond, func(token *CancelToken) error {
		go func() {
			time.Sleep(30 * time.Millisecond)
			token.Cancel()
		}()
		_, readErr := reader.Read(make([]byte, 1))
		return readErr
	})
	elapsed := time.Since(start)

	// cancellation alone must not interrupt the blocked read; only the
	// deadline closing the pipe unblocks it
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.True(t, timeoutErr.Cancelled)
	requireQueueEmpty(t)
}

func TestShieldedScopeIgnoresOuterCancel(t *testing.T) {
	err := Run(func(outer *CancelToken) error {
		outer.Cancel()
		return RunShielded(func(inner *CancelToken) error {
			require.NoError(t, CheckCancelled())
			inner.Cancel()
			require.ErrorIs(t, CheckCancelled(), ErrCancelled)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestNestedScopeInheritsDeadline(t *testing.T) {
	err := RunTimeout(time.Minute, func(outer *CancelToken) error {
		return Run(func(inner *CancelToken) error {
			remaining, ok := inner.Remaining()
			require.True(t, ok)
			require.LessOrEqual(t, remaining, time.Minute)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestShieldedScopeDoesNotInheritDeadline(t *testing.T) {
	err := RunTimeout(time.Minute, func(*CancelToken) error {
		return RunShielded(func(inner *CancelToken) error {
			_, ok := inner.Remaining()
			require.False(t, ok)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestCancelIdempotent(t *testing.T) {
	token := &CancelToken{}
	token.Cancel()
	token.Cancel()
	require.True(t, token.Cancelled())
}

func TestCheckCancelledWithoutScope(t *testing.T) {
	require.NoError(t, CheckCancelled())
}

func TestCurrentTokenTracksStack(t *testing.T) {
	require.Nil(t, CurrentToken())
	err := Run(func(outer *CancelToken) error {
		require.Same(t, outer, CurrentToken())
		innerErr := Run(func(inner *CancelToken) error {
			require.Same(t, inner, CurrentToken())
			return nil
		})
		require.Same(t, outer, CurrentToken())
		return innerErr
	})
	require.NoError(t, err)
	require.Nil(t, CurrentToken())
}

func TestScopeFinishedOnExit(t *testing.T) {
	var token *CancelToken
	err := RunTimeout(time.Second, func(scope *CancelToken) error {
		token = scope
		return nil
	})
	require.NoError(t, err)
	require.True(t, token.Finished())
}

func TestOuterCancelSeenByInnerScope(t *testing.T) {
	err := Run(func(outer *CancelToken) error {
		outer.Cancel()
		return Run(func(*CancelToken) error {
			return CheckCancelled()
		})
	})
	require.ErrorIs(t, err, ErrCancelled)
}
