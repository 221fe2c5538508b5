package heap

// Pointers are represented as a plain byte offset into the region
// rather than a Go pointer: the region is an off-heap mmap'd buffer, so
// there is nothing for the garbage collector to track, and an offset
// survives being copied into caller-owned storage the way a moving GC
// pointer would not.
//
// Offset 0 is reserved as the nil-pointer sentinel (nvmalloc.Nil), so
// every real pointer is biased by one slot: the data arena's very first
// byte-addressable slot (page 0, slot 0) would otherwise itself encode
// to 0 and be indistinguishable from nil.
const pointerBias = SlotSize

// encodePointer packs a page index and an in-page slot offset into the
// byte offset the caller gets back.
func encodePointer(idx int64, slot int) int64 {
	return idx*PageSize + int64(slot)*SlotSize + pointerBias
}

// decodePointer splits a byte offset back into a page index and slot
// offset.
func decodePointer(p int64) (idx int64, slot int) {
	p -= pointerBias
	idx = p / PageSize
	slot = int(p%PageSize) / SlotSize
	return
}
