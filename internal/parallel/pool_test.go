package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

func TestRunRespectsCapacity(t *testing.T) {
	p := NewPool(2)
	var inFlight, peak int64
	tasks := make([]func(context.Context) (int, error), 8)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (int, error) {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			atomic.AddInt64(&inFlight, -1)
			return i, nil
		}
	}
	results, err := Run(context.Background(), p, tasks)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("got %d results, want 8", len(results))
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestRunPropagatesTaskError(t *testing.T) {
	p := NewPool(4)
	want := errors.New("boom")
	tasks := []func(context.Context) (int, error){
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, want },
	}
	_, err := Run(context.Background(), p, tasks)
	if !errors.Is(err, want) {
		t.Errorf("Run error = %v, want %v", err, want)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	p := NewPool(1)
	tasks := []func(context.Context) (int, error){
		func(ctx context.Context) (int, error) { panic("oops") },
	}
	_, err := Run(context.Background(), p, tasks)
	if err == nil {
		t.Fatal("expected an error recovered from the panicking task")
	}
}

func TestRunStopsAdmittingAfterCancel(t *testing.T) {
	p := NewPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tasks := []func(context.Context) (int, error){
		func(ctx context.Context) (int, error) { return 0, fmt.Errorf("should not run") },
	}
	_, err := Run(ctx, p, tasks)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}
