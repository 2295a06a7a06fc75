package tio

import (
	"fmt"
	"sync"
	"testing"
	"time"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/stretchr/testify/require"
)

var errBoom = E.New("boom")

func TestDoPropagatesOrganicError(t *testing.T) {
	timeout := NewAsyncTimeout(func() error { return nil })
	err := timeout.Do(time.Second, func() error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	require.False(t, IsTimeout(err))
	requireQueueEmpty(t)
}

func TestDoWrapsErrorAfterExpiry(t *testing.T) {
	timeout := NewAsyncTimeout(func() error { return nil })
	err := timeout.Do(20*time.Millisecond, func() error {
		time.Sleep(80 * time.Millisecond)
		return errBoom
	})
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.ErrorIs(t, err, errBoom)
	requireQueueEmpty(t)
}

func TestDoNormalReturnAfterExpiry(t *testing.T) {
	timeout := NewAsyncTimeout(func() error { return nil })
	var scope *CancelToken
	err := RunTimeout(20*time.Millisecond, func(token *CancelToken) error {
		scope = token
		return timeout.Do(0, func() error {
			time.Sleep(80 * time.Millisecond)
			return nil
		})
	})
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.True(t, scope.Cancelled())
	requireQueueEmpty(t)
}

func TestDoKeepsExistingTimeoutError(t *testing.T) {
	timeout := NewAsyncTimeout(func() error { return nil })
	original := &TimeoutError{}
	err := timeout.Do(20*time.Millisecond, func() error {
		time.Sleep(80 * time.Millisecond)
		return original
	})
	require.Same(t, original, err.(*TimeoutError))
}

func TestEnterIgnoresDefaultInsideUnlimitedScope(t *testing.T) {
	timeout := NewAsyncTimeout(func() error { return nil })
	err := Run(func(*CancelToken) error {
		require.Nil(t, timeout.Enter(time.Hour))
		return nil
	})
	require.NoError(t, err)
	requireQueueEmpty(t)
}

func TestEnterUsesScopeBudget(t *testing.T) {
	timeout := NewAsyncTimeout(func() error { return nil })
	err := RunTimeout(time.Hour, func(*CancelToken) error {
		handle := timeout.Enter(0)
		require.NotNil(t, handle)
		require.False(t, timeout.Exit(handle))
		return nil
	})
	require.NoError(t, err)
	requireQueueEmpty(t)
}

type recordingLogger struct {
	mu     sync.Mutex
	debugs []string
}

func (l *recordingLogger) record(args []any) {
	l.mu.Lock()
	l.debugs = append(l.debugs, fmt.Sprint(args...))
	l.mu.Unlock()
}

func (l *recordingLogger) Trace(args ...any) {}
func (l *recordingLogger) Debug(args ...any) { l.record(args) }
func (l *recordingLogger) Info(args ...any)  {}
func (l *recordingLogger) Warn(args ...any)  {}
func (l *recordingLogger) Error(args ...any) {}
func (l *recordingLogger) Fatal(args ...any) {}
func (l *recordingLogger) Panic(args ...any) {}

func TestExpiryFailureReachesLogger(t *testing.T) {
	sink := &recordingLogger{}
	timeout := NewAsyncTimeout(func() error { return errBoom })
	timeout.SetLogger(sink)

	err := timeout.Do(20*time.Millisecond, func() error {
		time.Sleep(80 * time.Millisecond)
		return nil
	})
	require.True(t, IsTimeout(err))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.debugs, 1)
	require.Contains(t, sink.debugs[0], "boom")
}
