package heap

import "testing"

// TestRotateBandSplicesBucketsAndShiftsThresholds drives rotate_band()
// directly and checks both halves of its contract (§4.5): every bucket
// of the rotating-out band is spliced onto the same-maxrun bucket of
// the next band, and band_thresholds actually shifts.
func TestRotateBandSplicesBucketsAndShiftsThresholds(t *testing.T) {
	h := newTestHeap(t, 8, 1)

	const maxrun = 5
	h.dirAppend(0, maxrun, 0)
	h.pageBand[0] = 0
	h.dirAppend(1, maxrun, 2) // pre-existing page already in band 1's same bucket
	h.pageBand[2] = 1

	before := append([]uint64(nil), h.sb.bandThresholds...)

	h.rotateBand()

	if h.sb.bandPointer != 1 {
		t.Fatalf("bandPointer = %d, want 1", h.sb.bandPointer)
	}

	if head := h.sb.slabDir[0][maxrun].head; head != noPage {
		t.Fatalf("band 0 bucket %d still has head %d after rotation, want empty", maxrun, head)
	}

	// idx 2 was already at the tail of band 1's bucket; idx 0 must now
	// be spliced onto the end of that same bucket, preserving order.
	gotHead := h.sb.slabDir[1][maxrun].head
	gotTail := h.sb.slabDir[1][maxrun].tail
	if gotHead != 2 {
		t.Fatalf("band 1 bucket %d head = %d, want 2 (pre-existing page kept first)", maxrun, gotHead)
	}
	if gotTail != 0 {
		t.Fatalf("band 1 bucket %d tail = %d, want 0 (spliced page appended)", maxrun, gotTail)
	}
	if h.pageView(2).Next() != 0 {
		t.Fatalf("band 1 bucket %d: page 2's next = %d, want 0", maxrun, h.pageView(2).Next())
	}
	if h.pageView(0).Prev() != 2 {
		t.Fatalf("band 1 bucket %d: page 0's prev = %d, want 2", maxrun, h.pageView(0).Prev())
	}

	if h.pageBand[0] != 1 {
		t.Fatalf("pageBand[0] = %d after splice, want 1", h.pageBand[0])
	}

	same := true
	for i := range before {
		if before[i] != h.sb.bandThresholds[i] {
			same = false
		}
	}
	if same {
		t.Fatal("bandThresholds unchanged after rotate_band, want a shift")
	}
}

// TestFatalConditionPanicsRatherThanReturningError confirms §7's Fatal
// classification: a condition the allocator cannot recover from
// in-band crashes the call instead of handing back a silently
// ignorable error.
func TestFatalConditionPanicsRatherThanReturningError(t *testing.T) {
	h := newTestHeap(t, 4, 1)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("BlockFree on a non-block-head page did not panic")
		}
		fe, ok := r.(*FatalError)
		if !ok {
			t.Fatalf("recovered value is %T, want *FatalError", r)
		}
		if fe.Op != "block_free" {
			t.Fatalf("FatalError.Op = %q, want block_free", fe.Op)
		}
	}()

	_ = h.BlockFree(0) // page 0 was never allocated as a block head
	t.Fatal("unreachable: BlockFree should have panicked")
}

// TestSlabMallocExhaustionPanicsWithNoOOMHandler confirms that running
// out of placement options with no OOM handler passed to Open is Fatal,
// not a returned error a caller could ignore.
func TestSlabMallocExhaustionPanicsWithNoOOMHandler(t *testing.T) {
	h := newTestHeap(t, 1, 0)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("SlabMalloc exhaustion did not panic")
		}
		if _, ok := r.(*FatalError); !ok {
			t.Fatalf("recovered value is %T, want *FatalError", r)
		}
	}()

	for i := 0; i < slotsPerPage+1; i++ {
		if _, err := h.SlabMalloc(1); err != nil {
			t.Fatalf("SlabMalloc: %v", err)
		}
	}
	t.Fatal("unreachable: single-page heap must exhaust and panic")
}
