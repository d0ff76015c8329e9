package errors

import "sync"

// Window retains a bounded rolling window of classification records for
// analytics. When full, the oldest record is dropped.
type Window struct {
	mu      sync.Mutex
	records []Record
	next    int
	full    bool
	counts  map[Category]uint64
}

// NewWindow creates a Window holding at most size records.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 256
	}
	return &Window{
		records: make([]Record, size),
		counts:  make(map[Category]uint64),
	}
}

// Add appends a record, evicting the oldest when the window is full.
func (w *Window) Add(rec Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records[w.next] = rec
	w.next++
	if w.next == len(w.records) {
		w.next = 0
		w.full = true
	}
	w.counts[rec.Category]++
}

// Recent returns the retained records, oldest first.
func (w *Window) Recent() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.full {
		out := make([]Record, w.next)
		copy(out, w.records[:w.next])
		return out
	}
	out := make([]Record, 0, len(w.records))
	out = append(out, w.records[w.next:]...)
	out = append(out, w.records[:w.next]...)
	return out
}

// Counts returns cumulative per-category counts since creation.
func (w *Window) Counts() map[Category]uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[Category]uint64, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}
