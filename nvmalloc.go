// Package nvmalloc implements an endurance-aware dynamic memory
// allocator for a byte-addressable non-volatile memory region: a
// dual-granularity block/slab placement engine over a wear-banded page
// index, with a reclamation scan and a reserved-page fallback pool.
//
// The allocator is single-threaded and non-reentrant by design (see
// internal/heap's package doc) — callers that need concurrent access
// must serialize it themselves, the same way the host program is
// expected to serialize access to the underlying NVM device.
package nvmalloc

import (
	"fmt"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/ohnvm/nvmalloc/internal/config"
	"github.com/ohnvm/nvmalloc/internal/heap"
	"github.com/ohnvm/nvmalloc/internal/region"
)

// Config is the set of tunables for opening a region. See
// internal/config for field documentation and defaults.
type Config = config.Config

// Defaults returns a Config for dataPages data-arena pages with every
// other tunable at its default.
func Defaults(dataPages int) Config { return config.Defaults(dataPages) }

// LoadConfig reads a Config from a YAML file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Pointer is an offset into the allocator's region. It is not a Go
// pointer: the region lives off-heap in an mmap'd buffer the garbage
// collector never scans, so an offset is both cheaper to pass around
// and immune to anything a moving collector might otherwise do.
type Pointer int64

// Nil is the pointer value returned for a zero-length or failed
// request, analogous to a NULL return from malloc.
const Nil Pointer = 0

// OOMHandler reacts to an allocation the placement engine could not
// satisfy. Returning true asks the allocator to retry once; false lets
// the request fail with heap.ErrOutOfMemory.
type OOMHandler = heap.OOMHandler

// Allocator is a handle to one opened region (§9's "handle whose
// construction maps R and whose destruction unmaps"). The zero value is
// not usable; construct one with Open.
type Allocator struct {
	h   *heap.Heap
	r   *region.Region
	log *log.Logger
}

// Open maps a region per cfg and initializes the placement engine over
// it. If cfg.Path is empty the region is a volatile anonymous mapping;
// otherwise it is file-backed and Persist calls reach the file via
// msync. logger may be nil to disable logging.
func Open(cfg Config, onOOM OOMHandler, logger *log.Logger) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("nvmalloc: %w", err)
	}
	r, err := region.Map(cfg.Path, cfg.RegionBytes())
	if err != nil {
		return nil, fmt.Errorf("nvmalloc: map region: %w", err)
	}
	h, err := heap.Open(cfg, r, onOOM, logger)
	if err != nil {
		_ = r.Unmap()
		return nil, err
	}
	return &Allocator{h: h, r: r, log: logger}, nil
}

// SessionID identifies this Allocator instance for log correlation
// across Open/Close pairs, the way the teacher's storage layer tags
// requests with a github.com/google/uuid value.
func (a *Allocator) SessionID() uuid.UUID { return a.h.SessionID() }

// Allocate carves out n bytes and returns a pointer to them. Requests
// of more than 63 slots' worth of bytes (see the glossary's "Slot")
// take the block path; smaller ones take the slab path.
func (a *Allocator) Allocate(n int) (Pointer, error) {
	p, err := a.h.Allocate(n)
	return Pointer(p), wrap("allocate", err)
}

// Callocate allocates count*size bytes, like Allocate, with the
// returned memory zeroed.
func (a *Allocator) Callocate(count, size int) (Pointer, error) {
	p, err := a.h.AllocateZero(count * size)
	return Pointer(p), wrap("callocate", err)
}

// Reallocate resizes the allocation at p to n bytes, preserving its
// live prefix. p == Nil behaves as Allocate(n); n == 0 behaves as
// Deallocate(p) and returns Nil.
func (a *Allocator) Reallocate(p Pointer, n int) (Pointer, error) {
	np, err := a.h.Realloc(int64(p), n)
	return Pointer(np), wrap("reallocate", err)
}

// Deallocate releases the allocation at p. Deallocate(Nil) is a no-op.
func (a *Allocator) Deallocate(p Pointer) error {
	return wrap("deallocate", a.h.Free(int64(p)))
}

// SizeOf returns the usable payload size, in bytes, of the live
// allocation at p.
func (a *Allocator) SizeOf(p Pointer) (int, error) {
	n, err := a.h.SizeOf(int64(p))
	return n, wrap("size_of", err)
}

// Close unmaps the region. The Allocator must not be used afterward.
func (a *Allocator) Close() error {
	return a.h.Close()
}

// Stats summarizes current band occupancy and live-byte count.
type Stats struct {
	DataPages      int
	ReservedPages  int
	LiveBytes      int
	BandPopulation []int
	BandThresholds []uint64
}

// String renders Stats with human-readable byte counts, the way the
// teacher's CLI tools format sizes via github.com/dustin/go-humanize.
func (s Stats) String() string {
	return fmt.Sprintf("data=%s live=%s bands=%v",
		humanize.Bytes(uint64(s.DataPages)*config.PageSize),
		humanize.Bytes(uint64(s.LiveBytes)),
		s.BandPopulation)
}

// Stats returns a snapshot of current occupancy.
func (a *Allocator) Stats() Stats {
	s := a.h.Stats()
	return Stats{
		DataPages:      s.DataPages,
		ReservedPages:  s.ReservedPages,
		LiveBytes:      s.LiveBytes,
		BandPopulation: s.BandPopulation,
		BandThresholds: s.BandThresholds,
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("nvmalloc: %s: %w", op, err)
}
