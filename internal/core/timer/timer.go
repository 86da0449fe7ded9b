// Package timer provides register-once deferred callbacks driven by the game
// loop. Time only moves when Advance is called, so callbacks always run on
// the tick goroutine and never concurrently with world mutation.
package timer

import (
	"container/heap"
	"time"
)

// Handle references one deferred callback.
type Handle struct {
	due       time.Duration
	seq       uint64
	fn        func()
	index     int
	fired     bool
	cancelled bool
}

// Cancel prevents the callback from running. It returns false when the
// callback already ran or was cancelled before.
func (h *Handle) Cancel() bool {
	if h == nil || h.fired || h.cancelled {
		return false
	}
	h.cancelled = true
	h.fn = nil
	return true
}

// Active reports whether the callback is still waiting to fire.
func (h *Handle) Active() bool {
	return h != nil && !h.fired && !h.cancelled
}

// Due returns the scheduler time at which the callback fires.
func (h *Handle) Due() time.Duration { return h.due }

// Scheduler orders pending callbacks by due time, then registration order.
// Not safe for concurrent use.
type Scheduler struct {
	now   time.Duration
	seq   uint64
	queue queue
}

func New() *Scheduler {
	return &Scheduler{}
}

// Once registers fn to run after delay. Negative delays are treated as zero.
// A callback registered while Advance is running fires on a later Advance
// even when its delay is zero.
func (s *Scheduler) Once(delay time.Duration, fn func()) *Handle {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	h := &Handle{due: s.now + delay, seq: s.seq, fn: fn}
	heap.Push(&s.queue, h)
	return h
}

// Advance moves the clock forward by dt and runs every callback that became
// due, returning how many ran.
func (s *Scheduler) Advance(dt time.Duration) int {
	if dt > 0 {
		s.now += dt
	}

	// Collect first so callbacks registered below wait for the next Advance.
	var due []*Handle
	for s.queue.Len() > 0 {
		next := s.queue[0]
		if next.due > s.now {
			break
		}
		heap.Pop(&s.queue)
		due = append(due, next)
	}

	ran := 0
	for _, h := range due {
		if h.cancelled {
			continue
		}
		h.fired = true
		fn := h.fn
		h.fn = nil
		fn()
		ran++
	}
	s.compact()
	return ran
}

// CancelAll cancels every pending callback.
func (s *Scheduler) CancelAll() int {
	n := 0
	for _, h := range s.queue {
		if h.Cancel() {
			n++
		}
	}
	s.queue = s.queue[:0]
	return n
}

// Len returns the number of callbacks still waiting to fire.
func (s *Scheduler) Len() int {
	n := 0
	for _, h := range s.queue {
		if h.Active() {
			n++
		}
	}
	return n
}

// Now returns the scheduler clock.
func (s *Scheduler) Now() time.Duration { return s.now }

// compact drops cancelled handles once they dominate the heap.
func (s *Scheduler) compact() {
	if s.queue.Len() < 64 || s.Len()*2 > s.queue.Len() {
		return
	}
	kept := s.queue[:0]
	for _, h := range s.queue {
		if h.Active() {
			h.index = len(kept)
			kept = append(kept, h)
		}
	}
	s.queue = kept
	heap.Init(&s.queue)
}

type queue []*Handle

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	h := x.(*Handle)
	h.index = len(*q)
	*q = append(*q, h)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	h := old[n-1]
	old[n-1] = nil
	h.index = -1
	*q = old[:n-1]
	return h
}
