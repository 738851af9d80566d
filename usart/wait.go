package usart

import (
	"context"
	"runtime"
	"time"
)

// Waiter blocks until ready reports true or ctx is done. Implementations must call
// ready before every decision; a wake-up is only a hint. A nil error means ready
// reported true. The blocking Port calls wait again after any error.
type Waiter interface {
	Wait(ctx context.Context, ready func() bool) error
}

// WaitFunc adapts a function to Waiter.
type WaitFunc func(ctx context.Context, ready func() bool) error

func (f WaitFunc) Wait(ctx context.Context, ready func() bool) error { return f(ctx, ready) }

// BusyWait polls the status flag in a tight loop. It is the default strategy and the
// only one that makes sense on the bare-metal target.
var BusyWait Waiter = WaitFunc(func(ctx context.Context, ready func() bool) error {
	done := ctx.Done()
	for !ready() {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
	}
	return nil
})

// YieldWait polls like BusyWait but yields the processor between polls so that a
// simulated peer on another goroutine can make progress.
var YieldWait Waiter = WaitFunc(func(ctx context.Context, ready func() bool) error {
	done := ctx.Done()
	for !ready() {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		runtime.Gosched()
	}
	return nil
})

// NotifyWait sleeps on a coalesced notification channel instead of spinning. The
// channel carries no data and may drop signals, so the status is re-checked on every
// wake and on a fallback Tick.
type NotifyWait struct {
	C    <-chan struct{}
	Tick time.Duration // 0 means 1ms
}

func (w NotifyWait) Wait(ctx context.Context, ready func() bool) error {
	tick := w.Tick
	if tick <= 0 {
		tick = time.Millisecond
	}
	var t *time.Timer
	for !ready() {
		if t == nil {
			t = time.NewTimer(tick)
			defer t.Stop()
		} else {
			t.Reset(tick)
		}
		select {
		case <-w.C:
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
