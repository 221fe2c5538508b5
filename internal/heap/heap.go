package heap

import (
	"log"

	"github.com/google/uuid"

	"github.com/ohnvm/nvmalloc/internal/config"
	"github.com/ohnvm/nvmalloc/internal/region"
)

// OOMHandler is invoked when a request cannot be satisfied by any
// placement strategy. It may free memory itself (e.g. evict a cache)
// and return true to ask the heap to retry once, or return false to let
// the request fail with ErrOutOfMemory. Modeled on the original draft's
// installable zmalloc OOM callback (original_source/zmalloc.c).
type OOMHandler func(op string, size int) (retry bool)

// Heap is the placement engine: a mapped region plus the bookkeeping
// state (Superblock) needed to carve it into blocks and slabs. A Heap
// is not safe for concurrent use — see the package doc for why.
type Heap struct {
	region *region.Region
	cfg    config.Config
	sb     *Superblock

	pageBand []int // cached band membership per data page
	scratch  *scratch

	dataPages     int
	reservedBase  int64 // first page index of the reserved pool
	onOOM         OOMHandler
	sessionID     uuid.UUID
	log           *log.Logger

	liveBytes int
}

// Open builds a fresh Heap over a newly mapped region. r must be sized
// cfg.RegionBytes() bytes.
func Open(cfg config.Config, r *region.Region, onOOM OOMHandler, logger *log.Logger) (*Heap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fatalf("open", "%w", err)
	}
	if r.Len() != cfg.RegionBytes() {
		return nil, fatalf("open", "region size %d does not match config %d", r.Len(), cfg.RegionBytes())
	}

	sb, err := newSuperblock(cfg.DataPages, cfg.ReservedPages, cfg.ListNum, cfg.ImmigrationLimit, cfg.MinEndurance, cfg.MaxEndurance)
	if err != nil {
		return nil, err
	}

	h := &Heap{
		region:       r,
		cfg:          cfg,
		sb:           sb,
		pageBand:     make([]int, cfg.DataPages),
		scratch:      newScratch(8),
		dataPages:    cfg.DataPages,
		reservedBase: int64(cfg.DataPages),
		onOOM:        onOOM,
		sessionID:    uuid.New(),
		log:          logger,
	}

	// Every data page starts in the free-page pool (§3): none are slab
	// pages or block allocations yet, so the slab directory starts
	// empty and the whole arena is one contiguous free run.
	band0 := sb.bandFor(cfg.MaxEndurance)
	for i := 0; i < cfg.DataPages; i++ {
		initPage(h.pageBuf(int64(i))).SetEndurance(cfg.MaxEndurance)
		h.pageBand[i] = band0
	}
	h.sb.bandPopulation[band0] = cfg.DataPages
	if cfg.DataPages > 0 {
		writeRunHeader(h.pageBuf(0), int64(cfg.DataPages), noPage)
		h.sb.freeHead[band0] = 0
	}

	for i := 0; i < cfg.ReservedPages; i++ {
		initPage(h.pageBuf(h.reservedBase + int64(i)))
	}

	if h.log != nil {
		h.log.Printf("heap: opened session=%s data_pages=%d reserved_pages=%d list_num=%d",
			h.sessionID, cfg.DataPages, cfg.ReservedPages, cfg.ListNum)
	}
	return h, nil
}

// pageBuf returns the PageSize-byte window of the region backing page
// index idx (idx may address either the data arena or the reserved pool).
func (h *Heap) pageBuf(idx int64) []byte {
	off := idx * PageSize
	return h.region.Bytes()[off : off+PageSize]
}

func (h *Heap) pageView(idx int64) PageView { return wrapPage(h.pageBuf(idx)) }

func (h *Heap) blockSize(idx int64) int32 { return h.sb.blockSize[idx] }

func (h *Heap) persistPage(idx int64) error {
	return h.region.Persist(int(idx*PageSize), PageSize)
}

// SessionID identifies this Heap instance for log correlation.
func (h *Heap) SessionID() uuid.UUID { return h.sessionID }

// Close unmaps the underlying region. The Heap must not be used
// afterward.
func (h *Heap) Close() error {
	if h.log != nil {
		h.log.Printf("heap: closing session=%s live_bytes=%d", h.sessionID, h.liveBytes)
	}
	return h.region.Unmap()
}

// Stats summarizes current occupancy for diagnostics and the wear
// reporter (internal/maintenance).
type Stats struct {
	DataPages      int
	ReservedPages  int
	LiveBytes      int
	BandPopulation []int
	BandThresholds []uint64
}

func (h *Heap) Stats() Stats {
	pop := make([]int, len(h.sb.bandPopulation))
	copy(pop, h.sb.bandPopulation)
	thr := make([]uint64, len(h.sb.bandThresholds))
	copy(thr, h.sb.bandThresholds)
	return Stats{
		DataPages:      h.dataPages,
		ReservedPages:  h.cfg.ReservedPages,
		LiveBytes:      h.liveBytes,
		BandPopulation: pop,
		BandThresholds: thr,
	}
}

func (h *Heap) invokeOOM(op string, size int) bool {
	if h.onOOM == nil {
		return false
	}
	return h.onOOM(op, size)
}
