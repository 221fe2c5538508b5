package heap

// free(p)/realloc(p,n) dispatch (§4.9, §4.10). A pointer carries no
// type tag of its own; the dispatcher recovers whether it names a
// reserved-pool reservation, a block head, or a slab allocation purely
// from its address and the per-page block-size array.

// Free releases the allocation at p. A nil-equivalent pointer (0) is a
// no-op, matching free(NULL) semantics.
func (h *Heap) Free(p int64) error {
	if p == 0 {
		return nil
	}
	if h.isReservedPointer(p) {
		return h.reservedFree(p)
	}

	idx, off := decodePointer(p)
	if idx < 0 || int(idx) >= h.dataPages {
		return h.fatal("free", "%w", ErrInvalidPointer)
	}
	if h.sb.blockSize[idx] > 0 {
		if off != 0 {
			return h.fatal("free", "%w: mid-block pointer", ErrInvalidPointer)
		}
		return h.BlockFree(idx)
	}
	return h.SlabFree(idx, off)
}

// SizeOf returns the usable payload size, in bytes, of the live
// allocation at p.
func (h *Heap) SizeOf(p int64) (int, error) {
	if p == 0 {
		return 0, nil
	}
	if h.isReservedPointer(p) {
		return h.reservedSizeOf(p), nil
	}

	idx, off := decodePointer(p)
	if idx < 0 || int(idx) >= h.dataPages {
		return 0, h.fatal("size_of", "%w", ErrInvalidPointer)
	}
	if h.sb.blockSize[idx] > 0 {
		return int(h.sb.blockSize[idx]) * PageSize, nil
	}
	return slabFreeSize(h.pageView(idx), off) * SlotSize, nil
}

// Realloc resizes the allocation at p to n bytes, copying the live
// prefix when a new allocation is required. p == 0 behaves as
// Allocate(n); n == 0 behaves as Free(p).
func (h *Heap) Realloc(p int64, n int) (int64, error) {
	if p == 0 {
		return h.Allocate(n)
	}
	if n == 0 {
		return 0, h.Free(p)
	}

	old, err := h.SizeOf(p)
	if err != nil {
		return 0, err
	}
	if n <= old {
		return p, nil
	}

	np, err := h.Allocate(n)
	if err != nil {
		return 0, err
	}
	copy(h.bytesAt(np, n), h.bytesAt(p, old))
	if err := h.Free(p); err != nil {
		return 0, err
	}
	return np, nil
}

// Allocate dispatches to the block or slab path by size (§2's data flow:
// requests of more than 63 slots' worth of bytes go to the block path).
// allocate(0) is an Ignored case per §7: it returns Nil with no error,
// the same way free(NULL) is a no-op rather than a Fatal condition.
func (h *Heap) Allocate(n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	if n > slotsPerPage*SlotSize {
		return h.BlockMalloc(n)
	}
	slots := (n + SlotSize - 1) / SlotSize
	return h.SlabMalloc(slots)
}

// AllocateZero is Allocate followed by zeroing the requested n bytes,
// backing nvmalloc.Callocate.
func (h *Heap) AllocateZero(n int) (int64, error) {
	p, err := h.Allocate(n)
	if err != nil || p == 0 {
		return p, err
	}
	buf := h.bytesAt(p, n)
	for i := range buf {
		buf[i] = 0
	}
	return p, nil
}

// bytesAt returns the n-byte window of the region that pointer p
// addresses. Data-arena pointers carry pointerBias and are un-biased
// first; reserved-pool pointers are plain byte offsets.
func (h *Heap) bytesAt(p int64, n int) []byte {
	if !h.isReservedPointer(p) {
		p -= pointerBias
	}
	return h.region.Bytes()[p : p+int64(n)]
}
