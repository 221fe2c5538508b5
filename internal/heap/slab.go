package heap

// Slab allocation (§4.4). A slab request carves a run of 64-byte slots
// out of a single page's free bitmap, preferring a page that already
// has a matching free run before reaching for a fresh page or a reform
// scan. Grounded on SlabMalloc / find_array_suit / reset_page /
// putToSlabZero in original_source/zmalloc.c, generalized with the band
// dimension this draft adds on top of the original's flat slab_array[64].
//
// Variant B (the normative choice, §4.4): a page that has no slot free
// or no free run at all is marked Zero (blockSize[idx] = -1) and pulled
// out of the slab directory rather than eagerly recomputed; only the
// reform scan brings it back.

// SlabMalloc carves a run of slots 64-byte slots and returns the
// encoded pointer to it. Unlike BlockMalloc, it never reaches for the
// reserved pool: the original draft's reserved-pool fallback is wired
// only into the block path (original_source/zmalloc.c BlockMalloc).
func (h *Heap) SlabMalloc(slots int) (int64, error) {
	if slots <= 0 || slots > slotsPerPage {
		return 0, h.fatal("slab_malloc", "invalid slot count %d", slots)
	}

	for k := 0; k < h.sb.listNum; k++ {
		band := h.sb.band(k)

		if idx, ok := h.slabFindInBand(band, slots); ok {
			return h.placeInSlab(idx, slots)
		}

		if idx, ok := h.freeListPop1(band); ok {
			initPage(h.pageBuf(idx))
			h.pageView(idx).SetEndurance(h.sb.pageEndurance[idx])
			return h.placeInSlab(idx, slots)
		}

		if idx, ok := h.reform(slots); ok {
			return h.placeInSlab(idx, slots)
		}
	}

	if h.invokeOOM("slab_malloc", slots*SlotSize) {
		return h.SlabMalloc(slots)
	}
	return 0, h.fatalNoRetry("slab_malloc", "%w: no slab page available", ErrOutOfMemory)
}

// freeListPop1 pulls a single fresh page off band's free-page-run list.
func (h *Heap) freeListPop1(band int) (int64, bool) {
	idx, _, ok := h.freeListPop(band, 1)
	return idx, ok
}

// slabFindInBand returns the first page in band whose longest free run
// is at least slots slots long, searching buckets from the tightest fit
// upward so the allocator doesn't fragment a large run for a small
// request (§4.4 step 1).
func (h *Heap) slabFindInBand(band, slots int) (int64, bool) {
	for m := slots; m < len(h.sb.slabDir[band]); m++ {
		if idx, ok := h.dirPopHead(band, m); ok {
			return idx, true
		}
	}
	return 0, false
}

// placeInSlab commits a slots-slot allocation on page idx, trusting the
// page's own offset/maxrun bookkeeping rather than rescanning the
// bitmap (§4.4 step 4) — correct because every path that can leave
// those fields stale (SlabFree) recomputes them before returning.
func (h *Heap) placeInSlab(idx int64, slots int) (int64, error) {
	v := h.pageView(idx)
	off := v.Offset()

	v.SetBits(off, slots)
	recordSlabSize(v, off, slots)
	v.SetOffset(off + slots)
	v.SetMaxRun(v.MaxRun() - slots)
	v.SetFreeNum(v.FreeNum() - slots)

	h.debitEndurance(idx, uint64(slots))

	if v.FreeNum() == 0 || v.MaxRun() == 0 {
		h.sb.blockSize[idx] = -1
	} else {
		h.dirAppend(h.pageBand[idx], v.MaxRun(), idx)
	}

	if err := h.persistPage(idx); err != nil {
		return 0, err
	}
	h.liveBytes += slots * SlotSize
	return encodePointer(idx, off), nil
}

// SlabFree releases the allocation starting at slot off on page idx,
// recovering its length from the size bitmap. Per §4.9 step 4 the page
// is not re-bucketed here — its slab-directory membership (or Zero
// marker) is left exactly as it was, and only a later reform touch
// moves it. This implementation does recompute maxrun/offset
// immediately (beyond what §4.9 requires), so right after a free they
// describe the page's longest free run; see DESIGN.md. A later
// placeInSlab updates them by arithmetic only, so after a placement
// maxrun can be shorter than the longest free run elsewhere in the page.
func (h *Heap) SlabFree(idx int64, off int) error {
	if idx < 0 || int(idx) >= h.dataPages+h.cfg.ReservedPages {
		return h.fatal("slab_free", "%w", ErrInvalidPointer)
	}
	v := h.pageView(idx)
	if !v.GetBit(off) {
		return h.fatal("slab_free", "%w: double free at page %d slot %d", ErrInvalidPointer, idx, off)
	}

	length := slabFreeSize(v, off)
	v.ResetBits(off, length)
	v.SetFreeNum(v.FreeNum() + length)
	v.RecomputeMaxRun()
	h.liveBytes -= length * SlotSize

	return h.persistPage(idx)
}
