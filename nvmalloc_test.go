package nvmalloc

import (
	"testing"

	"github.com/ohnvm/nvmalloc/internal/heap"
)

func newTestAllocator(t *testing.T, dataPages int) *Allocator {
	t.Helper()
	cfg := Defaults(dataPages)
	a, err := Open(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// S1: a small slab allocation reports at least the requested size and
// can then be freed.
func TestScenarioS1SmallSlabAndFree(t *testing.T) {
	a := newTestAllocator(t, 4)

	p, err := a.Allocate(40)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if p == Nil {
		t.Fatal("Allocate returned Nil for a live request")
	}

	n, err := a.SizeOf(p)
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if n < 40 {
		t.Fatalf("SizeOf(p) = %d, want at least 40", n)
	}

	if err := a.Deallocate(p); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
}

// S2: 63 slab allocations exactly fill one page; the 64th spills onto a
// second page drawn fresh from the free-page pool.
func TestScenarioS2FullSlabPageSpillsOver(t *testing.T) {
	a := newTestAllocator(t, 4)

	ptrs := make([]Pointer, 0, 64)
	for i := 0; i < 63; i++ {
		p, err := a.Allocate(40)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		ptrs = append(ptrs, p)
	}

	last, err := a.Allocate(40)
	if err != nil {
		t.Fatalf("Allocate #63: %v", err)
	}
	ptrs = append(ptrs, last)

	seen := make(map[Pointer]bool)
	for _, p := range ptrs {
		if seen[p] {
			t.Fatalf("pointer %d reused before being freed", p)
		}
		seen[p] = true
	}

	for _, p := range ptrs {
		if err := a.Deallocate(p); err != nil {
			t.Fatalf("Deallocate(%d): %v", p, err)
		}
	}
}

// S3: a multi-page block allocation rounds up to whole pages and its
// pages return to the free pool on free.
func TestScenarioS3BlockAllocAndFree(t *testing.T) {
	a := newTestAllocator(t, 8)

	p, err := a.Allocate(8192)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	n, err := a.SizeOf(p)
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}
	if n != 8192 {
		t.Fatalf("SizeOf(p) = %d, want 8192", n)
	}
	if err := a.Deallocate(p); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}

	// The freed run must be reusable by a same-sized request.
	q, err := a.Allocate(8192)
	if err != nil {
		t.Fatalf("Allocate after free: %v", err)
	}
	if err := a.Deallocate(q); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
}

// S4: reallocating to a size that still fits in the same slot returns
// the same pointer.
func TestScenarioS4ReallocInPlace(t *testing.T) {
	a := newTestAllocator(t, 4)

	p, err := a.Allocate(40)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	q, err := a.Reallocate(p, 50)
	if err != nil {
		t.Fatalf("Reallocate: %v", err)
	}
	if q != p {
		t.Fatalf("Reallocate(p, 50) = %d, want unchanged %d", q, p)
	}
	if err := a.Deallocate(q); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
}

// S5: reallocating past the current slot's capacity moves the
// allocation to one at least as large as the new size.
func TestScenarioS5ReallocGrowsAndMoves(t *testing.T) {
	a := newTestAllocator(t, 8)

	p, err := a.Allocate(40)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	old, err := a.SizeOf(p)
	if err != nil {
		t.Fatalf("SizeOf: %v", err)
	}

	q, err := a.Reallocate(p, 200)
	if err != nil {
		t.Fatalf("Reallocate: %v", err)
	}
	if q == p {
		t.Fatal("Reallocate(p, 200) should not fit in the original slot")
	}

	n, err := a.SizeOf(q)
	if err != nil {
		t.Fatalf("SizeOf(q): %v", err)
	}
	if n < 200 {
		t.Fatalf("SizeOf(q) = %d, want at least 200", n)
	}
	_ = old

	if err := a.Deallocate(q); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
}

// S6: allocating well past a small region's capacity ends in a Fatal
// out-of-memory condition (§7) rather than a silent wraparound or an
// ignorable error. With no OOM handler passed to Open, exhaustion
// panics.
func TestScenarioS6BandPressureEndsInOOM(t *testing.T) {
	cfg := Defaults(2)
	cfg.ListNum = 2
	cfg.ImmigrationLimit = 1
	a, err := Open(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	exhausted := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(*heap.FatalError); !ok {
					t.Fatalf("recovered value is %T, want *heap.FatalError", r)
				}
				exhausted = true
			}
		}()
		for i := 0; i < 4096; i++ {
			if _, err := a.Allocate(40); err != nil {
				t.Fatalf("Allocate #%d returned an error instead of panicking: %v", i, err)
			}
		}
	}()
	if !exhausted {
		t.Fatal("expected the region to exhaust and panic with a Fatal error")
	}

	st := a.Stats()
	if len(st.BandPopulation) != cfg.ListNum {
		t.Fatalf("BandPopulation has %d entries, want %d", len(st.BandPopulation), cfg.ListNum)
	}
}

func TestDeallocateNilIsNoop(t *testing.T) {
	a := newTestAllocator(t, 2)
	if err := a.Deallocate(Nil); err != nil {
		t.Fatalf("Deallocate(Nil): %v", err)
	}
}

func TestStatsStringFormatsHumanReadable(t *testing.T) {
	a := newTestAllocator(t, 4)
	if _, err := a.Allocate(40); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	s := a.Stats().String()
	if s == "" {
		t.Fatal("Stats().String() returned empty string")
	}
}
