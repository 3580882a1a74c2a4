package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolExecutesTasks(t *testing.T) {
	pool := NewPool(2, 8, time.Second, zap.NewNop(), nil)
	pool.Start()
	defer pool.Shutdown(context.Background())

	var ran atomic.Int64
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(func(context.Context) {
			if ran.Add(1) == 5 {
				close(done)
			}
		}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}
	require.Equal(t, int64(5), ran.Load())
}

func TestPoolQueueFull(t *testing.T) {
	pool := NewPool(1, 1, time.Second, zap.NewNop(), nil)
	pool.Start()
	defer pool.Shutdown(context.Background())

	block := make(chan struct{})
	// Occupy the single worker, then fill the single queue slot.
	require.NoError(t, pool.Submit(func(context.Context) { <-block }))

	var err error
	deadline := time.After(time.Second)
	for {
		err = pool.Submit(func(context.Context) { <-block })
		if err != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("queue never filled")
		default:
		}
	}
	require.ErrorIs(t, err, ErrQueueFull)
	close(block)
}

func TestPoolShutdownDrains(t *testing.T) {
	pool := NewPool(1, 8, time.Second, zap.NewNop(), nil)
	pool.Start()

	var ran atomic.Int64
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(func(context.Context) {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
	require.Equal(t, int64(4), ran.Load(), "queued tasks drain before shutdown")

	require.ErrorIs(t, pool.Submit(func(context.Context) {}), ErrStopped)
}

func TestPoolSubmitDuringShutdownDoesNotPanic(t *testing.T) {
	pool := NewPool(2, 4, time.Second, zap.NewNop(), nil)
	pool.Start()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := pool.Submit(func(context.Context) {})
				if errors.Is(err, ErrStopped) {
					return
				}
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
	wg.Wait()

	require.ErrorIs(t, pool.Submit(func(context.Context) {}), ErrStopped)
}

func TestPoolRecoversPanics(t *testing.T) {
	pool := NewPool(1, 4, time.Second, zap.NewNop(), nil)
	pool.Start()
	defer pool.Shutdown(context.Background())

	require.NoError(t, pool.Submit(func(context.Context) { panic("boom") }))

	ran := make(chan struct{})
	require.NoError(t, pool.Submit(func(context.Context) { close(ran) }))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}
