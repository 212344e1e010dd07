//go:build !integration

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func nopLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(time.Second, nopLogger())
	var fast, failing, panicking atomic.Int32
	s.Every("fast", 10*time.Millisecond, func(context.Context) error {
		fast.Add(1)
		return nil
	})
	s.Every("failing", 10*time.Millisecond, func(context.Context) error {
		failing.Add(1)
		return errors.New("boom")
	})
	s.Every("panicking", 10*time.Millisecond, func(context.Context) error {
		panicking.Add(1)
		panic("oops")
	})

	s.Start(context.Background())
	s.Start(context.Background()) // no-op

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fast.Load() >= 3 && failing.Load() >= 3 && panicking.Load() >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	if fast.Load() < 3 || failing.Load() < 3 || panicking.Load() < 3 {
		t.Fatalf("jobs did not keep running: fast=%d failing=%d panicking=%d", fast.Load(), failing.Load(), panicking.Load())
	}

	after := fast.Load()
	time.Sleep(50 * time.Millisecond)
	if fast.Load() != after {
		t.Fatal("jobs ran after Stop")
	}
}

func TestSchedulerRunsImmediatelyAndBoundsJobs(t *testing.T) {
	s := New(20*time.Millisecond, nopLogger())
	got := make(chan error, 1)
	s.Every("slow", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	})
	s.Start(context.Background())
	defer s.Stop()

	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("want deadline exceeded, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("job did not run right after Start")
	}
}
