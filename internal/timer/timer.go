// Package timer provides the reactor's single timer-wheel primitive: a
// multiset of scheduled callbacks ordered by next-fire-time. It is driven
// by one goroutine that sleeps until the next entry is due; all callbacks
// run on that goroutine, so core state they touch must itself only be
// mutated from the reactor (see pkg/facade for the thread-safe boundary).
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Handle identifies a scheduled callback so it can be cancelled.
type Handle uint64

type entry struct {
	handle Handle
	fire   time.Time
	fn     func()
	index  int // heap index, maintained by container/heap
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].fire.Before(h[j].fire) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Wheel is a single-threaded timer multiset. All public methods except Run
// must be called from the reactor goroutine that owns the Wheel; Run itself
// blocks until Stop is called.
type Wheel struct {
	mu      sync.Mutex
	heap    entryHeap
	byHandle map[Handle]*entry
	nextHandle Handle
	wake    chan struct{}
	stop    chan struct{}
	stopped bool
}

// New creates an empty Wheel.
func New() *Wheel {
	return &Wheel{
		byHandle: make(map[Handle]*entry),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// After schedules fn to run after d elapses, returning a Handle that can be
// passed to Cancel.
func (w *Wheel) After(d time.Duration, fn func()) Handle {
	return w.At(time.Now().Add(d), fn)
}

// At schedules fn to run at the given time.
func (w *Wheel) At(t time.Time, fn func()) Handle {
	w.mu.Lock()
	w.nextHandle++
	h := w.nextHandle
	e := &entry{handle: h, fire: t, fn: fn}
	heap.Push(&w.heap, e)
	w.byHandle[h] = e
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return h
}

// Cancel removes a scheduled callback if it has not yet fired. Returns false
// if the handle is unknown (already fired or already cancelled).
func (w *Wheel) Cancel(h Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.byHandle[h]
	if !ok {
		return false
	}
	delete(w.byHandle, h)
	if e.index >= 0 {
		heap.Remove(&w.heap, e.index)
	}
	return true
}

// Len returns the number of pending callbacks.
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.heap)
}

// Run drives the wheel until Stop is called, firing due callbacks on the
// calling goroutine. The caller is expected to dedicate one goroutine (the
// reactor) to this loop.
func (w *Wheel) Run() {
	for {
		w.mu.Lock()
		var sleep time.Duration
		if len(w.heap) == 0 {
			sleep = time.Hour
		} else {
			sleep = time.Until(w.heap[0].fire)
		}
		w.mu.Unlock()

		if sleep < 0 {
			sleep = 0
		}

		timer := time.NewTimer(sleep)
		select {
		case <-w.stop:
			timer.Stop()
			return
		case <-w.wake:
			timer.Stop()
		case <-timer.C:
		}

		w.fireDue()
	}
}

func (w *Wheel) fireDue() {
	now := time.Now()
	for {
		w.mu.Lock()
		if len(w.heap) == 0 || w.heap[0].fire.After(now) {
			w.mu.Unlock()
			return
		}
		e := heap.Pop(&w.heap).(*entry)
		delete(w.byHandle, e.handle)
		w.mu.Unlock()

		e.fn()
	}
}

// Stop halts Run and prevents further callbacks from firing.
func (w *Wheel) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()
	close(w.stop)
}
