// Package runloop implements the cooperative, single-logical-thread event loop that
// spec.md §5 calls for: timer expirations, fd readiness, and signals are all
// delivered as callbacks that execute one at a time, in the order they are posted,
// even though the underlying implementation uses goroutines to watch for readiness.
// This is the idiomatic-Go stand-in for the original's libevent-based reactor: rather
// than a literal single OS thread blocked in epoll, a single dispatch goroutine drains
// a channel that every timer/fd watcher goroutine posts onto, so handler code never
// runs concurrently with itself or with other handlers.
package runloop

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Func is a callback posted to the loop for serialized execution.
type Func func()

// Loop is a single-consumer dispatcher for timer and signal events. All Funcs posted
// to it via Post run strictly one at a time, on the goroutine that calls Run.
type Loop struct {
	events chan Func
	done   chan struct{}

	mu      sync.Mutex
	timers  []*Timer
	closed  bool
}

// New creates an idle Loop. Call Run to start dispatching.
func New() *Loop {
	return &Loop{
		events: make(chan Func, 64),
		done:   make(chan struct{}),
	}
}

// Post enqueues fn for execution on the loop's dispatch goroutine. Safe to call from
// any goroutine, including from within a handler itself.
func (l *Loop) Post(fn Func) {
	select {
	case l.events <- fn:
	case <-l.done:
	}
}

// Run drains posted events until the loop is interrupted or ctx is done. It returns
// when Interrupt is called or ctx.Err() becomes non-nil.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case fn := <-l.events:
			fn()
		case <-l.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Interrupt stops Run and tears down all timers registered on this loop.
func (l *Loop) Interrupt() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	timers := l.timers
	l.timers = nil
	l.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	close(l.done)
}

// Timer is a periodic timer whose callback is posted to a Loop.
type Timer struct {
	loop     *Loop
	ticker   *time.Ticker
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewTimer creates and starts a periodic timer. fn is invoked on the loop's dispatch
// goroutine every interval until Stop is called or the loop is interrupted.
func (l *Loop) NewTimer(interval time.Duration, fn Func) *Timer {
	t := &Timer{
		loop:   l,
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}

	l.mu.Lock()
	l.timers = append(l.timers, t)
	l.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.ticker.C:
				l.Post(fn)
			case <-t.stopCh:
				return
			}
		}
	}()

	return t
}

// Stop halts the timer; it is safe to call multiple times.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		t.ticker.Stop()
		close(t.stopCh)
	})
}

// FDWatcher posts fn to the loop every time fd becomes readable. It is used for the
// IRQ GPIO line's event fd, and for the RPC listener/client sockets.
type FDWatcher struct {
	stop chan struct{}
}

// WatchReadable starts a goroutine that waits for fd to be readable (via poll) and
// posts fn to the loop each time it is, until Stop is called.
func (l *Loop) WatchReadable(fd int, fn Func) *FDWatcher {
	w := &FDWatcher{stop: make(chan struct{})}

	go func() {
		pfd := []pollFd{{fd: fd, events: pollIn}}
		for {
			select {
			case <-w.stop:
				return
			default:
			}

			n, err := poll(pfd, 250)
			if err != nil {
				if err == syscall.EINTR {
					continue
				}
				return
			}
			if n > 0 {
				l.Post(fn)
			}
		}
	}()

	return w
}

// Stop halts the watcher.
func (w *FDWatcher) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

// WatchSignals returns a channel that receives each of sigs as it arrives, until the
// returned stop function is called. Signals are not posted to the loop.
func (l *Loop) WatchSignals(sigs ...os.Signal) (ch <-chan os.Signal, stop func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, sigs...)
	return c, func() { signal.Stop(c) }
}
