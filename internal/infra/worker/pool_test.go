//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(3, nil)
	p.Start(context.Background())

	var done int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		if err := p.Submit(func(context.Context) error {
			defer wg.Done()
			atomic.AddInt32(&done, 1)
			return nil
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	wg.Wait()
	p.Stop()
	if done != 50 {
		t.Fatalf("ran %d tasks", done)
	}
}

func TestPoolStopDrainsQueue(t *testing.T) {
	p := NewPool(1, nil)
	block := make(chan struct{})
	var ran int32

	p.Start(context.Background())
	_ = p.Submit(func(context.Context) error { <-block; return nil })
	for i := 0; i < 5; i++ {
		_ = p.Submit(func(context.Context) error { atomic.AddInt32(&ran, 1); return errors.New("logged, not fatal") })
	}
	close(block)
	p.Stop()

	if atomic.LoadInt32(&ran) != 5 {
		t.Fatalf("queued tasks lost on stop: ran %d", ran)
	}
	if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("submit after stop: %v", err)
	}
	p.Stop() // idempotent
}

func TestPoolOutlivesStartContext(t *testing.T) {
	p := NewPool(2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	var ran atomic.Int32
	var taskErr error
	if err := p.Submit(func(ctx context.Context) error {
		ran.Add(1)
		taskErr = ctx.Err()
		return nil
	}); err != nil {
		t.Fatalf("submit after cancel: %v", err)
	}
	p.Stop()

	if ran.Load() != 1 {
		t.Fatal("task queued after cancellation was lost")
	}
	if taskErr != nil {
		t.Fatalf("task saw a cancelled context: %v", taskErr)
	}
}

func TestPoolQueueFull(t *testing.T) {
	p := NewPool(1, nil) // not started: nothing drains the queue
	var err error
	for i := 0; i < cap(p.jobs)+1; i++ {
		err = p.Submit(func(context.Context) error { return nil })
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got %v", err)
	}
	if p.Submit(nil) == nil {
		t.Fatal("nil task accepted")
	}
}
