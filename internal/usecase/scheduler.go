package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
)

// Scheduler runs callbacks after a delay. Callbacks scheduled on the same
// scheduler never run concurrently with each other.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// EventLoop serialises all callbacks of one browsing context onto a single
// goroutine. Timers never run work themselves; they post it to the loop.
type EventLoop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewEventLoop creates a loop with a bounded task queue. Call Run to start it.
func NewEventLoop(queueSize int, logger *zap.Logger) *EventLoop {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLoop{
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger.Named("eventloop"),
	}
}

// Run processes tasks until ctx is cancelled or Close is called
func (l *EventLoop) Run(ctx context.Context) {
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case task := <-l.tasks:
			l.runTask(task)
		}
	}
}

func (l *EventLoop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

// Post queues f to run on the loop. It returns false once the loop is closed.
func (l *EventLoop) Post(f func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- f:
		return true
	case <-l.done:
		return false
	}
}

// AfterFunc posts f to the loop once d has elapsed
func (l *EventLoop) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, func() {
		if !l.Post(f) {
			l.logger.Debug("dropped timer on closed loop")
		}
	})
}

// Do runs f on the loop and waits for it to finish.
// It must not be called from a task already running on the loop.
func (l *EventLoop) Do(f func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		f()
	}) {
		return domain.ErrContextClosed
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return domain.ErrContextClosed
	}
}

// Close stops the loop. Pending tasks are discarded.
func (l *EventLoop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

// Done is closed when the loop stops
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}
