package scheduler

import (
	"time"
)

type Entry[T any] struct {
	ID      string
	Index   int // position in the heap
	Value   T
	ReadyAt time.Time
}

type timerHeap[T any] struct {
	entries []*Entry[T]
}

func (h timerHeap[T]) Peek() *Entry[T] {
	if h.Len() == 0 {
		return nil
	}
	return h.entries[0]
}

func (h timerHeap[T]) Len() int { return len(h.entries) }

func (h timerHeap[T]) Less(i, j int) bool {
	return h.entries[i].ReadyAt.Before(h.entries[j].ReadyAt)
}

func (h timerHeap[T]) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].Index = i
	h.entries[j].Index = j
}

func (h *timerHeap[T]) Push(item *Entry[T]) {
	item.Index = len(h.entries)
	h.entries = append(h.entries, item)
	h.shiftUp(item.Index)
}

func (h *timerHeap[T]) Pop() *Entry[T] {
	n := h.Len()
	if n == 0 {
		return nil
	}

	h.Swap(0, n-1)
	min := h.entries[n-1]
	h.entries[n-1] = nil
	h.entries = h.entries[:n-1]
	min.Index = -1
	if len(h.entries) > 0 {
		h.shiftDown(0)
	}

	return min
}

func (h *timerHeap[T]) Remove(index int) *Entry[T] {
	n := h.Len()
	if index < 0 || index >= n {
		return nil
	}

	h.Swap(index, n-1)
	removed := h.entries[n-1]
	h.entries[n-1] = nil
	h.entries = h.entries[:n-1]
	removed.Index = -1
	if len(h.entries) > 0 {
		h.fix(index)
	}
	return removed
}

func (h *timerHeap[T]) fix(index int) {
	if index < 0 || h.Len() <= index {
		return
	}

	if !h.shiftDown(index) {
		h.shiftUp(index)
	}
}

func (h *timerHeap[T]) shiftUp(index int) {
	for {
		if index == 0 {
			return
		}
		p := (index - 1) / 2
		if !h.Less(index, p) {
			return
		}
		h.Swap(index, p)
		index = p
	}
}

func (h *timerHeap[T]) shiftDown(index int) bool {
	moved := false
	n := h.Len()

	for {
		left := 2*index + 1
		if left >= n {
			break
		}
		smallest := left
		right := left + 1
		if right < n && h.Less(right, left) {
			smallest = right
		}
		if !h.Less(smallest, index) {
			break
		}
		h.Swap(index, smallest)
		index = smallest
		moved = true
	}

	return moved
}
