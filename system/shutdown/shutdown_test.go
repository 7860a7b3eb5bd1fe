package shutdown

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlusher struct {
	calls int
	err   error
}

func (f *fakeFlusher) Flush() error {
	f.calls++
	return f.err
}

func captureExit(t *testing.T) *[]int {
	codes := &[]int{}
	orig := ExitFunc
	ExitFunc = func(code int) { *codes = append(*codes, code) }
	t.Cleanup(func() { ExitFunc = orig })
	return codes
}

func TestShutdown(t *testing.T) {
	codes := captureExit(t)
	f := &fakeFlusher{}

	Shutdown(f)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, []int{0}, *codes)
}

func TestShutdown_FlushFailure(t *testing.T) {
	codes := captureExit(t)
	f := &fakeFlusher{err: errors.New("disk full")}

	ShutdownWithError(f, errors.New("api server stopped"), "Fatal error")
	assert.Equal(t, []int{1}, *codes)
}

func TestOnSignal(t *testing.T) {
	codes := captureExit(t)
	f := &fakeFlusher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		OnSignal(ctx, cancel, f)
		close(done)
	}()

	// give signal.Notify time to register before raising
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnSignal did not return")
	}
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, []int{0}, *codes)
	assert.Error(t, ctx.Err())
}

func TestOnSignal_ContextDone(t *testing.T) {
	codes := captureExit(t)
	f := &fakeFlusher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	OnSignal(ctx, cancel, f)
	assert.Equal(t, 0, f.calls)
	assert.Empty(t, *codes)
}

func TestShutdown_ClosesResourcesAfterFlush(t *testing.T) {
	codes := captureExit(t)
	var order []string
	f := &fakeFlusher{}
	closer := func(name string) func() error {
		return func() error {
			require.Equal(t, 1, f.calls, "flush runs before %s closes", name)
			order = append(order, name)
			return nil
		}
	}

	Shutdown(WithClosers(f, closer("metrics"), closer("db")))
	assert.Equal(t, []string{"metrics", "db"}, order)
	assert.Equal(t, []int{0}, *codes)
}

func TestShutdown_CloserFailure(t *testing.T) {
	codes := captureExit(t)
	f := &fakeFlusher{}
	dbClosed := false

	Shutdown(WithClosers(f,
		func() error { return errors.New("statsd close failed") },
		func() error { dbClosed = true; return nil },
	))
	assert.Equal(t, 1, f.calls)
	assert.True(t, dbClosed, "later closers still run")
	assert.Equal(t, []int{1}, *codes)
}
