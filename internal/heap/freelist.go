package heap

import "encoding/binary"

// Free-page-run lists (§4.6, §9). A run of k contiguous free pages is
// recorded only at its first page: bytes [0:8) hold the run length in
// pages, bytes [8:16) hold the page index of the next run in this
// band's list (noPage if last). This embeds the link node in the page
// itself rather than a side table, the same trick the teacher's
// freelist.FreeListPage uses for its on-disk free-page chain, and
// matches §9's requirement that free-run headers live in the region.
const (
	runLenOff  = 0
	runNextOff = 8
)

func readRunHeader(pageBuf []byte) (length int64, next int64) {
	length = int64(binary.LittleEndian.Uint64(pageBuf[runLenOff:]))
	next = int64(binary.LittleEndian.Uint64(pageBuf[runNextOff:]))
	return
}

func writeRunHeader(pageBuf []byte, length, next int64) {
	binary.LittleEndian.PutUint64(pageBuf[runLenOff:], uint64(length))
	binary.LittleEndian.PutUint64(pageBuf[runNextOff:], uint64(next))
}

// freeListPop removes and returns the first run in band's list with at
// least minPages pages, splitting off any excess into a new, shorter run
// left in the list. It returns (headPage, gotPages, ok).
func (h *Heap) freeListPop(band, minPages int) (int64, int, bool) {
	var prev int64 = noPage
	cur := h.sb.freeHead[band]
	for cur != noPage {
		buf := h.pageBuf(cur)
		length, next := readRunHeader(buf)
		if int(length) >= minPages {
			h.freeListUnlink(band, prev, cur, next)
			if int(length) > minPages {
				rest := cur + int64(minPages)
				restBuf := h.pageBuf(rest)
				writeRunHeader(restBuf, length-int64(minPages), noPage)
				h.freeListInsertSorted(band, rest, length-int64(minPages))
			}
			return cur, minPages, true
		}
		prev = cur
		cur = next
	}
	return 0, 0, false
}

func (h *Heap) freeListUnlink(band int, prev, cur, next int64) {
	if prev == noPage {
		h.sb.freeHead[band] = next
		return
	}
	prevBuf := h.pageBuf(prev)
	length, _ := readRunHeader(prevBuf)
	writeRunHeader(prevBuf, length, next)
}

// freeListInsertSorted inserts a run starting at page idx of length
// pages into band's list, keeping the list address-sorted. It does not
// coalesce with address-adjacent runs: the spec leaves coalescing
// optional and the original draft omits it, so free() is one linear
// walk to the insertion point with no extra neighbor-merge step (§9).
func (h *Heap) freeListInsertSorted(band int, idx, length int64) {
	var prev int64 = noPage
	cur := h.sb.freeHead[band]
	for cur != noPage && cur < idx {
		prev = cur
		_, next := readRunHeader(h.pageBuf(cur))
		cur = next
	}

	writeRunHeader(h.pageBuf(idx), length, cur)
	if prev == noPage {
		h.sb.freeHead[band] = idx
	} else {
		prevLen, _ := readRunHeader(h.pageBuf(prev))
		writeRunHeader(h.pageBuf(prev), prevLen, idx)
	}
}

// freeListPushSingle records one newly-freed page as a length-1 run.
func (h *Heap) freeListPushSingle(band int, idx int64) {
	h.freeListInsertSorted(band, idx, 1)
}
