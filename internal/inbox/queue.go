package inbox

import (
	"container/heap"
	"time"

	"github.com/federatedforum/fedcore/internal/ap"
)

// item is one queued inbound activity awaiting ordered dispatch.
type item struct {
	activity  *ap.Activity
	queuedAt  time.Time
	published time.Time // zero if the activity had no "published" field
	index     int       // heap.Interface bookkeeping
}

// readyAt is when item becomes eligible for dispatch: queuedAt plus the
// receive delay, unless the activity had no published timestamp at
// all, in which case it is dispatched immediately (§4.3: "absence of a
// published timestamp triggers immediate processing").
func (it *item) readyAt(delay time.Duration) time.Time {
	if it.published.IsZero() {
		return it.queuedAt
	}
	return it.queuedAt.Add(delay)
}

// minHeap orders queued items by published time so that activities
// from one source instance are dispatched in the order their sender
// claims to have produced them, not the order they happened to arrive
// over the wire (§4.3).
type minHeap []*item

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	pi, pj := h[i].published, h[j].published
	if pi.IsZero() != pj.IsZero() {
		return pi.IsZero() // no-published-field items sort first
	}
	if pi.Equal(pj) {
		return h[i].queuedAt.Before(h[j].queuedAt)
	}
	return pi.Before(pj)
}
func (h minHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *minHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// instanceQueue is the ordered receive queue for a single source
// instance (§4.3). Its high-water mark implements backpressure: once
// full, Push refuses new activities so the inbox handler can return a
// retryable error to the sender rather than growing unbounded memory.
type instanceQueue struct {
	heap         minHeap
	highWaterMark int
}

func newInstanceQueue(highWaterMark int) *instanceQueue {
	return &instanceQueue{highWaterMark: highWaterMark}
}

// errQueueFull is returned by tryPush when the instance queue is at its
// high-water mark.
var errQueueFull = queueFullError{}

type queueFullError struct{}

func (queueFullError) Error() string { return "inbox: source instance queue at high-water mark" }

func (q *instanceQueue) tryPush(it *item) error {
	if len(q.heap) >= q.highWaterMark {
		return errQueueFull
	}
	heap.Push(&q.heap, it)
	return nil
}

// popReady removes and returns every item whose readyAt has passed, in
// published order.
func (q *instanceQueue) popReady(now time.Time, delay time.Duration) []*item {
	var ready []*item
	for len(q.heap) > 0 && !q.heap[0].readyAt(delay).After(now) {
		ready = append(ready, heap.Pop(&q.heap).(*item))
	}
	return ready
}

func (q *instanceQueue) len() int { return len(q.heap) }
