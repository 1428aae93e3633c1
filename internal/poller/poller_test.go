package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	_ = ctx
	c.calls.Add(1)
	return c.err
}

func TestPollerRefreshesOnTrigger(t *testing.T) {
	target := &countingRefresher{}
	p := New(target, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.TriggerRefresh()
	deadline := time.Now().Add(2 * time.Second)
	for target.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("trigger did not cause a refresh")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerKeepsRunningAfterError(t *testing.T) {
	target := &countingRefresher{err: errors.New("broadcast failed")}
	p := New(target, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go p.Run(ctx)

	for target.calls.Load() < 3 {
		if ctx.Err() != nil {
			t.Fatalf("expected repeated refreshes, got %d", target.calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTriggerRefreshCoalesces(t *testing.T) {
	p := New(&countingRefresher{}, 0, nil)
	p.TriggerRefresh()
	p.TriggerRefresh()
	if len(p.refreshCh) != 1 {
		t.Fatalf("expected one pending trigger, got %d", len(p.refreshCh))
	}
	if p.interval != defaultInterval {
		t.Fatalf("expected default interval, got %s", p.interval)
	}
}
