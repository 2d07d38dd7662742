package writer

import "sync"

// Queue is a thread-safe FIFO ring that doubles its capacity when it
// reaches 70% full, up to a maximum. Once the maximum is reached, Push
// rejects new items instead of blocking the producer.
type Queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	max      int // 0 means unbounded
	closed   bool

	pushed  int64
	drained int64
	dropped int64
	resizes int
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Count    int   `json:"count"`
	Capacity int   `json:"capacity"`
	Pushed   int64 `json:"pushed"`
	Drained  int64 `json:"drained"`
	Dropped  int64 `json:"dropped"`
	Resizes  int   `json:"resizes"`
}

// NewQueue creates a queue with the given initial and maximum capacity.
func NewQueue[T any](initialCapacity, maxCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity > 0 && initialCapacity > maxCapacity {
		initialCapacity = maxCapacity
	}
	return &Queue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		max:      maxCapacity,
	}
}

// Push appends an item. It returns false if the queue is closed or full.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold && (q.max == 0 || q.capacity < q.max) {
		q.grow()
	}
	if q.count == q.capacity {
		q.dropped++
		return false
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.pushed++
	return true
}

// DrainTo removes up to max items in FIFO order. max <= 0 drains everything.
func (q *Queue[T]) DrainTo(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	n := q.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	var zero T
	for i := range n {
		out[i] = q.buf[q.head]
		q.buf[q.head] = zero
		q.head = (q.head + 1) % q.capacity
	}
	q.count -= n
	q.drained += int64(n)
	return out
}

// Close rejects further pushes. Items already queued can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Count:    q.count,
		Capacity: q.capacity,
		Pushed:   q.pushed,
		Drained:  q.drained,
		Dropped:  q.dropped,
		Resizes:  q.resizes,
	}
}

// grow doubles the capacity, capped at max. Must be called with lock held.
func (q *Queue[T]) grow() {
	newCapacity := q.capacity * 2
	if q.max > 0 && newCapacity > q.max {
		newCapacity = q.max
	}
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizes++
}
