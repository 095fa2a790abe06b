package vector

// topK keeps the k best neighbors seen so far in a max-heap rooted at the worst one.
// A neighbor is worse when its distance is larger, or equal with a higher slot.
type topK struct {
	k     int
	items []Neighbor
}

func newTopK(k int) *topK {
	return &topK{k: k, items: make([]Neighbor, 0, k)}
}

func worse(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.Slot > b.Slot
}

func (h *topK) offer(n Neighbor) {
	if len(h.items) < h.k {
		h.items = append(h.items, n)
		h.siftUp(len(h.items) - 1)
		return
	}
	if worse(h.items[0], n) {
		h.items[0] = n
		h.siftDown(0)
	}
}

// sorted drains the heap and returns neighbors best first.
func (h *topK) sorted() []Neighbor {
	out := make([]Neighbor, len(h.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = h.items[0]
		last := len(h.items) - 1
		h.items[0] = h.items[last]
		h.items = h.items[:last]
		if last > 0 {
			h.siftDown(0)
		}
	}
	return out
}

func (h *topK) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worse(h.items[i], h.items[parent]) {
			return
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *topK) siftDown(i int) {
	n := len(h.items)
	for {
		largest := i
		left, right := 2*i+1, 2*i+2
		if left < n && worse(h.items[left], h.items[largest]) {
			largest = left
		}
		if right < n && worse(h.items[right], h.items[largest]) {
			largest = right
		}
		if largest == i {
			return
		}
		h.items[i], h.items[largest] = h.items[largest], h.items[i]
		i = largest
	}
}
