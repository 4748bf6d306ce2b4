package searcher

// PriorityQueue is a binary heap ordered by less; the top is the element for
// which less reports true against every other element.
//
// It does NOT implement container/heap to avoid interface overhead.
type PriorityQueue[T any] struct {
	less  func(a, b T) bool
	items []T
}

// NewPriorityQueue creates a new priority queue.
func NewPriorityQueue[T any](less func(a, b T) bool, capacity int) *PriorityQueue[T] {
	return &PriorityQueue[T]{
		less:  less,
		items: make([]T, 0, max(capacity, 16)),
	}
}

// Reset clears the priority queue for reuse.
func (pq *PriorityQueue[T]) Reset() {
	pq.items = pq.items[:0]
}

// Len returns the number of elements in the heap.
func (pq *PriorityQueue[T]) Len() int {
	return len(pq.items)
}

// Top returns the top element of the heap.
func (pq *PriorityQueue[T]) Top() (T, bool) {
	if len(pq.items) == 0 {
		var zero T
		return zero, false
	}
	return pq.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (pq *PriorityQueue[T]) Push(item T) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushBounded inserts an item into a heap holding at most capacity items.
// When full, the item replaces the top only if the top sorts before it.
// It reports whether the item was kept.
func (pq *PriorityQueue[T]) PushBounded(item T, capacity int) bool {
	if len(pq.items) < capacity {
		pq.Push(item)
		return true
	}
	if capacity <= 0 || !pq.less(pq.items[0], item) {
		return false
	}
	pq.items[0] = item
	pq.siftDown(0)
	return true
}

// Pop removes and returns the top element from the heap.
func (pq *PriorityQueue[T]) Pop() (T, bool) {
	n := len(pq.items)
	if n == 0 {
		var zero T
		return zero, false
	}

	item := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]

	if len(pq.items) > 0 {
		pq.siftDown(0)
	}

	return item, true
}

// Items returns the heap's backing slice in heap order. It is only valid
// until the next mutation.
func (pq *PriorityQueue[T]) Items() []T {
	return pq.items
}

func (pq *PriorityQueue[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.less(pq.items[i], pq.items[parent]) {
			break
		}
		pq.items[i], pq.items[parent] = pq.items[parent], pq.items[i]
		i = parent
	}
}

func (pq *PriorityQueue[T]) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		right := left + 1
		if right < n && pq.less(pq.items[right], pq.items[left]) {
			child = right
		}
		if !pq.less(pq.items[child], pq.items[i]) {
			break
		}
		pq.items[i], pq.items[child] = pq.items[child], pq.items[i]
		i = child
	}
}
