// Package heap implements the placement engine: the dual-granularity
// block/slab allocator, the intra-page bitmap + longest-run tracker, the
// wear-banded page index, and the reclamation/reform scan (spec §4).
//
// The package follows the teacher's internal/storage/pager layout: one
// small file per concern, package-private offset constants, and thin
// wrapper types around a []byte rather than raw pointers.
//
// The engine is single-threaded and non-reentrant (§5): it takes no
// locks anywhere, so callers must serialize every call themselves.
package heap

import "fmt"

// bucket is one (band, maxrun) slot in the slab directory: a FIFO of
// pages sharing the same longest free run, linked through each page's
// own PageView.next/prev fields (§3, slab_dir[LIST_NUM][64]).
type bucket struct {
	head int64 // page index, noPage if empty
	tail int64
}

// Superblock is the allocator's handle state (§3, §9). Per §9 it is kept
// behind a Go handle rather than byte-serialized into the region itself:
// the region only needs to carry the data arena and reserved pool (whose
// contents — page trailers, free-run headers — must be real
// byte-addressable storage so that embedded link nodes survive a crash
// per §9); the bookkeeping arrays below are volatile-on-restart anyway
// since this allocator has no recovery path (§1 non-goals).
type Superblock struct {
	listNum          int
	bandPointer      int
	immigrationLimit int

	slabDir  [][64]bucket // [band][maxrun]
	freeHead []int64      // [band] head of free-page-run list, noPage if empty

	pageEndurance []uint64 // length nDataPages
	blockSize     []int32  // length nDataPages: >0 block head, 0 none, -1 Zero-marked slab page

	bandThresholds []uint64
	bandPopulation []int // number of pages currently assigned to each band

	minEnd, maxEnd uint64 // endurance bounds thresholds are derived from
	rotationEpoch  int    // number of rotate_band() calls so far

	reservedBits  []byte
	reservedStart int

	reformPointer int

	nDataPages     int
	nReservedPages int
}

// newSuperblock builds the bookkeeping state for a region of nDataPages
// data-arena pages and nReservedPages reserved-pool pages, with listNum
// endurance bands whose thresholds are derived from [minEnd, maxEnd]
// per §4.5's band_thresholds formula.
func newSuperblock(nDataPages, nReservedPages, listNum, immigrationLimit int, minEnd, maxEnd uint64) (*Superblock, error) {
	if listNum <= 0 {
		return nil, fmt.Errorf("heap: list_num must be positive")
	}
	if maxEnd <= minEnd {
		return nil, fmt.Errorf("heap: max_endurance must exceed min_endurance")
	}

	sb := &Superblock{
		listNum:          listNum,
		immigrationLimit: immigrationLimit,
		slabDir:          make([][64]bucket, listNum),
		freeHead:         make([]int64, listNum),
		pageEndurance:    make([]uint64, nDataPages),
		blockSize:        make([]int32, nDataPages),
		bandThresholds:   make([]uint64, listNum),
		bandPopulation:   make([]int, listNum),
		reservedBits:     make([]byte, (nReservedPages+7)/8),
		minEnd:           minEnd,
		maxEnd:           maxEnd,
		nDataPages:       nDataPages,
		nReservedPages:   nReservedPages,
	}

	for b := 0; b < listNum; b++ {
		for m := range sb.slabDir[b] {
			sb.slabDir[b][m] = bucket{head: noPage, tail: noPage}
		}
		sb.freeHead[b] = noPage
	}

	sb.recomputeThresholds()
	for i := range sb.pageEndurance {
		sb.pageEndurance[i] = maxEnd
	}

	return sb, nil
}

// recomputeThresholds rebuilds bandThresholds from scratch using the
// current rotationEpoch, per §4.5's band_thresholds formula generalized
// with an epoch term: rotationEpoch==0 reproduces the init-time formula
// exactly, and each increment slides every boundary down by one slot,
// the "shifts band thresholds down by one slot" step of rotate_band().
// Recomputing from minEnd/maxEnd/epoch rather than repeatedly
// subtracting in place avoids compounding integer-division error.
func (sb *Superblock) recomputeThresholds() {
	span := sb.maxEnd - sb.minEnd
	listNum := uint64(sb.listNum)
	epoch := uint64(sb.rotationEpoch)
	for i := 0; i < sb.listNum; i++ {
		steps := uint64(i+1) + epoch
		drop := (span * steps) / listNum
		if drop >= sb.maxEnd {
			sb.bandThresholds[i] = 0
			continue
		}
		sb.bandThresholds[i] = sb.maxEnd - drop
	}
}

// bandFor returns the band index whose range (bandThresholds[b],
// bandThresholds[b-1]] contains endurance, with bandThresholds[-1]
// implicitly +infinity (so fresh, full-endurance pages fall in band 0)
// and the last band catching everything down to zero. This is the
// resolution of §4.5/§9's "intent unclear" band-threshold ambiguity
// recorded in DESIGN.md.
func (sb *Superblock) bandFor(endurance uint64) int {
	for b := 0; b < sb.listNum-1; b++ {
		if endurance > sb.bandThresholds[b] {
			return b
		}
	}
	return sb.listNum - 1
}

// band returns (band+k) mod listNum, the outer-loop rotation order used
// by §4.4 step 1 and §4.6's block-allocation fallback order.
func (sb *Superblock) band(k int) int {
	return (sb.bandPointer + k) % sb.listNum
}
