// Package scheduler provides a cancellable delay queue keyed by id. The
// assignment coordinator uses it for acceptance-window timers: one entry per
// order, cancelled when the vendor responds before the deadline, re-pushed
// on reassignment.
package scheduler

import (
	"sync"
	"time"

	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
)

type DelayQueue[T any] struct {
	mu     sync.Mutex
	heap   timerHeap[T]
	byID   map[string]*Entry[T]
	out    chan Entry[T]
	wakeUp chan struct{}
	closed bool
}

func NewQueue[T any](popBuf int) *DelayQueue[T] {
	dq := &DelayQueue[T]{
		byID:   make(map[string]*Entry[T]),
		out:    make(chan Entry[T], popBuf),
		wakeUp: make(chan struct{}, 1),
	}
	go dq.loop()
	return dq
}

// Out delivers entries whose deadline has passed. Closed after Close once
// the queue drains.
func (dq *DelayQueue[T]) Out() <-chan Entry[T] {
	return dq.out
}

// Schedule arms a timer for the given id, replacing any existing entry with
// the same id.
func (dq *DelayQueue[T]) Schedule(id string, value T, readyAt time.Time) error {
	dq.mu.Lock()
	defer dq.mu.Unlock()

	if dq.closed {
		return svcerror.New(
			svcerror.ErrInternalError,
			svcerror.WithOp("Scheduler.Schedule"),
			svcerror.WithMsg("delay queue is closed"),
			svcerror.WithTime(time.Now().UTC()),
		)
	}

	if old := dq.byID[id]; old != nil {
		dq.heap.Remove(old.Index)
		delete(dq.byID, id)
	}

	entry := Entry[T]{ID: id, Value: value, ReadyAt: readyAt}
	dq.heap.Push(&entry)
	dq.byID[id] = &entry

	dq.notify()
	return nil
}

// Cancel disarms the timer for the given id. Returns false when no timer is
// pending, which is fine: the entry may already have fired.
func (dq *DelayQueue[T]) Cancel(id string) bool {
	dq.mu.Lock()
	defer dq.mu.Unlock()

	entry := dq.byID[id]
	if entry == nil {
		return false
	}
	dq.heap.Remove(entry.Index)
	delete(dq.byID, entry.ID)

	dq.notify()
	return true
}

func (dq *DelayQueue[T]) Close() {
	dq.mu.Lock()
	dq.closed = true
	dq.mu.Unlock()
	dq.notify()
}

func (dq *DelayQueue[T]) notify() {
	select {
	case dq.wakeUp <- struct{}{}:
	default:
	}
}

func (dq *DelayQueue[T]) loop() {
	var timer *time.Timer

	for {
		empty, closed, next := dq.state()

		if closed && empty {
			close(dq.out)
			return
		}

		if empty {
			<-dq.wakeUp // wait for schedule/cancel/close
			continue
		}

		delay := time.Until(next)
		if delay <= 0 {
			dq.popReady()
			continue
		}

		timer = dq.resetTimer(timer, delay)
		dq.waitForTimerOrWakeUp(timer)
	}
}

func (dq *DelayQueue[T]) state() (empty, closed bool, next time.Time) {
	dq.mu.Lock()
	defer dq.mu.Unlock()
	empty = dq.heap.Len() == 0
	closed = dq.closed
	if !empty {
		next = dq.heap.Peek().ReadyAt
	}
	return
}

func (dq *DelayQueue[T]) popReady() {
	now := time.Now()
	for {
		dq.mu.Lock()
		head := dq.heap.Peek()
		if head == nil || head.ReadyAt.After(now) {
			dq.mu.Unlock()
			break
		}
		entry := dq.heap.Pop()
		delete(dq.byID, entry.ID)
		dq.mu.Unlock()

		dq.out <- *entry
	}
}

func (dq *DelayQueue[T]) resetTimer(timer *time.Timer, delay time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(delay)
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(delay)
	return timer
}

func (dq *DelayQueue[T]) waitForTimerOrWakeUp(timer *time.Timer) {
	select {
	case <-timer.C:
	case <-dq.wakeUp:
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}
