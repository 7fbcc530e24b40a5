package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunExecutesWorkerUntilCancel(t *testing.T) {
	sv := New()
	var calls int32
	sv.Register("tick", 5*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sv.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	assert.True(t, atomic.LoadInt32(&calls) > 0)
}

func TestRunOnceRecordsSuccess(t *testing.T) {
	sv := New()
	sv.Register("ok", time.Hour, func(ctx context.Context) error { return nil })
	sv.runOnce(context.Background(), sv.workers[0])

	h := sv.healthFor("ok")
	assert.Equal(t, 1, h.SuccessCount)
	assert.True(t, h.IsHealthy)
}

func TestRunOnceRecordsFailureAndBackoff(t *testing.T) {
	sv := New()
	sv.Register("bad", time.Second, func(ctx context.Context) error { return errors.New("boom") })
	sv.runOnce(context.Background(), sv.workers[0])

	h := sv.healthFor("bad")
	assert.Equal(t, 1, h.ErrorCount)
	assert.Equal(t, 61*time.Second, sv.nextInterval(sv.workers[0]))
}

func TestRunOnceRecoversFromPanic(t *testing.T) {
	sv := New()
	sv.Register("panics", time.Second, func(ctx context.Context) error {
		panic("boom")
	})
	assert.NotPanics(t, func() {
		sv.runOnce(context.Background(), sv.workers[0])
	})
	h := sv.healthFor("panics")
	assert.Equal(t, 1, h.ErrorCount)
}

func TestSnapshotReturnsAllWorkers(t *testing.T) {
	sv := New()
	sv.Register("a", time.Second, func(ctx context.Context) error { return nil })
	sv.Register("b", time.Second, func(ctx context.Context) error { return nil })
	assert.Len(t, sv.Snapshot(), 2)
}
