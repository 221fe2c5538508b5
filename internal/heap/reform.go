package heap

// Reform scan (§4.7). A linear sweep of the data arena's block-size
// array starting at reform_pointer, looking for Zero-marked slab pages
// (blockSize[i] == -1) that have quietly become usable again because
// SlabFree has since raised their freenum above zero. Grounded on
// reform_thread in original_source/zmalloc.c.

// recomputeMaxRunScratch recomputes v's maxrun/offset via a borrowed
// scratch copy of its bitmap rather than scanning the live trailer
// in place, so a crash mid-scan can never leave the live bitmap
// observed half-read. Falls back to scanning the live page directly
// if the scratch pool is momentarily exhausted.
func (h *Heap) recomputeMaxRunScratch(v PageView) {
	i, buf, ok := h.scratch.borrow()
	if !ok {
		v.RecomputeMaxRun()
		return
	}
	defer h.scratch.release(i)

	copy(buf, v.bitmap())
	length, off := longestZeroRun(buf, 0, slotsPerPage)
	v.SetMaxRun(length)
	v.SetOffset(off)
}

// reform sweeps at most once around the full data arena looking for a
// Zero-marked page whose recomputed maxrun satisfies slots. Pages it
// passes over that turn out to have freenum > 0 but not enough of a
// run are reinserted into their endurance band's directory and left
// for a future allocation to find; reform_pointer always advances past
// whatever it examined; pages still genuinely full (freenum == 0) are
// left untouched.
func (h *Heap) reform(slots int) (int64, bool) {
	start := h.sb.reformPointer
	for i := 0; i < h.dataPages; i++ {
		idx := int64((start + i) % h.dataPages)

		if h.sb.blockSize[idx] != -1 {
			continue
		}

		v := h.pageView(idx)
		if v.FreeNum() == 0 {
			continue
		}

		h.recomputeMaxRunScratch(v)
		h.sb.blockSize[idx] = 0

		if v.MaxRun() >= slots {
			h.sb.reformPointer = int(idx+1) % h.dataPages
			return idx, true
		}
		if v.MaxRun() > 0 {
			band := h.sb.bandFor(v.Endurance())
			h.pageBand[idx] = band
			h.dirAppend(band, v.MaxRun(), idx)
		} else {
			h.sb.blockSize[idx] = -1
		}
	}
	h.sb.reformPointer = start
	return 0, false
}
