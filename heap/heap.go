package heap

// Heap is a binary min-heap. Elements comparing equal are popped in the
// order they were pushed.
type Heap[T any] struct {
	data []entry[T]
	less func(a, b T) bool
	seq  uint64
}

type entry[T any] struct {
	value T
	seq   uint64
}

func New[T any](less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{
		less: less,
	}
}

func (h *Heap[T]) before(a, b entry[T]) bool {
	if h.less(a.value, b.value) {
		return true
	}
	if h.less(b.value, a.value) {
		return false
	}
	return a.seq < b.seq
}

func (h *Heap[T]) Push(value T) {
	h.data = append(h.data, entry[T]{value: value, seq: h.seq})
	h.seq++
	h.bubbleUp(len(h.data) - 1)
}

func (h *Heap[T]) Pop() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	top := h.data[0].value
	last := len(h.data) - 1
	h.data[0] = h.data[last]
	h.data[last] = entry[T]{}
	h.data = h.data[:last]
	h.bubbleDown(0)
	return top, true
}

func (h *Heap[T]) Peek() (T, bool) {
	if len(h.data) == 0 {
		var zero T
		return zero, false
	}
	return h.data[0].value, true
}

// PopWhile pops and returns every leading element for which keep returns true.
func (h *Heap[T]) PopWhile(keep func(T) bool) []T {
	var res []T
	for top, found := h.Peek(); found && keep(top); top, found = h.Peek() {
		h.Pop()
		res = append(res, top)
	}
	return res
}

// Clear drops every element.
func (h *Heap[T]) Clear() {
	h.data = nil
}

func (h *Heap[T]) bubbleUp(index int) {
	for index > 0 {
		parent := (index - 1) / 2
		if !h.before(h.data[index], h.data[parent]) {
			break
		}
		h.data[index], h.data[parent] = h.data[parent], h.data[index]
		index = parent
	}
}

func (h *Heap[T]) bubbleDown(index int) {
	size := len(h.data)
	for {
		left := 2*index + 1
		right := 2*index + 2
		smallest := index

		if left < size && h.before(h.data[left], h.data[smallest]) {
			smallest = left
		}
		if right < size && h.before(h.data[right], h.data[smallest]) {
			smallest = right
		}
		if smallest == index {
			break
		}

		h.data[index], h.data[smallest] = h.data[smallest], h.data[index]
		index = smallest
	}
}

func (h *Heap[T]) Size() int {
	return len(h.data)
}
