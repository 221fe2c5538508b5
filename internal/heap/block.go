package heap

// Block allocation (§4.6). A block request spans one or more whole
// pages and is tracked only at its first (head) page via
// Superblock.blockSize; member pages carry no slab bitmap state.
// Grounded on BlockMalloc / BlockFree / insert_to_free_list in
// original_source/zmalloc.c, generalized with the band dimension: the
// original's single flat free list becomes one free-page-run list per
// band, searched in rotation order the same way SlabMalloc does.

func pagesFor(bytes int) int {
	return (bytes + PageSize - 1) / PageSize
}

// BlockMalloc reserves pages pages contiguous in the region and returns
// the byte offset of the first one, falling back to the reserved pool
// when the data arena cannot supply a long-enough run (including when
// the request is larger than the whole arena).
func (h *Heap) BlockMalloc(bytes int) (int64, error) {
	pages := pagesFor(bytes)
	if pages <= 0 {
		return 0, h.fatal("block_malloc", "invalid size %d", bytes)
	}

	if pages <= h.dataPages {
		if idx, ok := h.blockFreshRun(pages); ok {
			return h.placeBlock(idx, pages)
		}
	}

	if ptr, ok := h.reservedAllocPages(pagesFor(bytes + rsvdHeaderSize)); ok {
		return ptr, nil
	}

	if h.invokeOOM("block_malloc", bytes) {
		return h.BlockMalloc(bytes)
	}
	return 0, h.fatalNoRetry("block_malloc", "%w: no block run available after reserved pool", ErrOutOfMemory)
}

// blockFreshRun searches every band's free-page-run list, in rotation
// order, for a run of at least pages contiguous free pages.
func (h *Heap) blockFreshRun(pages int) (int64, bool) {
	for k := 0; k < h.sb.listNum; k++ {
		band := h.sb.band(k)
		if idx, _, ok := h.freeListPop(band, pages); ok {
			return idx, true
		}
	}
	return 0, false
}

func (h *Heap) placeBlock(idx int64, pages int) (int64, error) {
	h.sb.blockSize[idx] = int32(pages)
	for i := 0; i < pages; i++ {
		p := idx + int64(i)
		h.debitEndurance(p, SlotSize) // debited per-64-byte-slot, §4.5: a full page costs SlotSize units
		if err := h.persistPage(p); err != nil {
			return 0, err
		}
	}
	h.liveBytes += pages * PageSize
	return encodePointer(idx, 0), nil
}

// BlockFree releases the pages-page block headed at idx, returning it
// to the head page's band as a single free run of that many pages.
func (h *Heap) BlockFree(idx int64) error {
	if idx < 0 || int(idx) >= h.dataPages {
		return h.fatal("block_free", "%w", ErrInvalidPointer)
	}
	pages := int(h.sb.blockSize[idx])
	if pages <= 0 {
		return h.fatal("block_free", "%w: page %d is not a block head", ErrInvalidPointer, idx)
	}

	h.sb.blockSize[idx] = 0
	for i := 0; i < pages; i++ {
		p := idx + int64(i)
		endurance := h.sb.pageEndurance[p]
		v := initPage(h.pageBuf(p))
		v.SetEndurance(endurance)
	}
	h.freeListInsertSorted(h.pageBand[idx], idx, int64(pages))
	for i := 0; i < pages; i++ {
		if err := h.persistPage(idx + int64(i)); err != nil {
			return err
		}
	}
	h.liveBytes -= pages * PageSize
	return nil
}
