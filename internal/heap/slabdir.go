package heap

// Slab directory bucket operations (§3, §4.4). Each (band, maxrun)
// bucket is a doubly-linked FIFO of page indices, threaded through the
// pages' own next/prev trailer fields — no side allocation, same as the
// teacher's overflow-page chain in internal/storage/pager/overflow.go.

// dirDetach removes idx from its bucket's list, relinking its
// neighbors, and clears idx's own next/prev.
func (h *Heap) dirDetach(band, maxrun int, idx int64) {
	v := h.pageView(idx)
	prev, next := v.Prev(), v.Next()
	b := &h.sb.slabDir[band][maxrun]

	if prev != noPage {
		h.pageView(prev).SetNext(next)
	} else {
		b.head = next
	}
	if next != noPage {
		h.pageView(next).SetPrev(prev)
	} else {
		b.tail = prev
	}
	v.SetNext(noPage)
	v.SetPrev(noPage)
}

// dirAppend adds idx to the tail of bucket (band, maxrun).
func (h *Heap) dirAppend(band, maxrun int, idx int64) {
	b := &h.sb.slabDir[band][maxrun]
	v := h.pageView(idx)
	v.SetPrev(b.tail)
	v.SetNext(noPage)
	if b.tail != noPage {
		h.pageView(b.tail).SetNext(idx)
	} else {
		b.head = idx
	}
	b.tail = idx
}

// dirPopHead removes and returns the head of bucket (band, maxrun), or
// (0, false) if the bucket is empty.
func (h *Heap) dirPopHead(band, maxrun int) (int64, bool) {
	idx := h.sb.slabDir[band][maxrun].head
	if idx == noPage {
		return 0, false
	}
	h.dirDetach(band, maxrun, idx)
	return idx, true
}
