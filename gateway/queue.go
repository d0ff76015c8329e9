package gateway

import (
	"container/heap"
	"sync"
	"time"
)

// item is one queued request together with the channel its caller is
// blocked on. The channel is buffered so workers never block delivering
// a result to a caller that gave up.
type item struct {
	req      Request
	enqueued time.Time
	seq      uint64
	result   chan Response
}

// itemHeap orders items by priority, then by arrival sequence so equal
// priorities stay FIFO.
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority > h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// queue is a bounded priority queue with blocking pop. Capacity bounds
// the number of requests waiting for a worker; a push may additionally
// succeed for every worker currently blocked in pop, which is what
// makes capacity zero behave as a synchronous handoff.
type queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    itemHeap
	capacity int
	waiting  int
	seq      uint64
	closed   bool
}

func newQueue(capacity int) *queue {
	q := &queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// push enqueues it, failing fast with ErrOverloaded when no slot is
// free and no worker is idle, or ErrShuttingDown after close.
func (q *queue) push(it *item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrShuttingDown
	}
	if len(q.items) >= q.capacity+q.waiting {
		return ErrOverloaded
	}
	q.seq++
	it.seq = q.seq
	it.enqueued = time.Now()
	heap.Push(&q.items, it)
	q.notEmpty.Signal()
	return nil
}

// pop blocks until an item is available or the queue is closed and
// drained. The second return is false only when no more items will
// ever arrive.
func (q *queue) pop() (*item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.waiting++
		q.notEmpty.Wait()
		q.waiting--
	}
	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*item), true
}

// close stops accepting new items. Queued items remain poppable so
// workers can drain them.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

// drain removes and returns every queued item. Used after the grace
// period so abandoned requests can be failed instead of left hanging.
func (q *queue) drain() []*item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*item, 0, len(q.items))
	for len(q.items) > 0 {
		out = append(out, heap.Pop(&q.items).(*item))
	}
	return out
}

func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
