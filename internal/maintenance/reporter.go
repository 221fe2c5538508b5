// Package maintenance runs periodic, read-only wear reporting over a
// live heap on its own goroutine, independent of the allocator's
// single-threaded core. Structured the way the teacher's
// internal/storage.Scheduler wraps github.com/robfig/cron/v3: a thin
// wrapper around *cron.Cron plus an injected callback interface so the
// scheduler carries no allocator-specific logic itself.
package maintenance

import (
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// WearSnapshot is a read-only view of band occupancy and endurance
// drain, reported on each tick. It must not be used to mutate the heap
// it was captured from.
type WearSnapshot struct {
	BandPopulation []int
	BandThresholds []uint64
	LiveBytes      int
}

// SnapshotFunc captures a WearSnapshot from a live heap. Per §5, the
// heap itself is never safe to touch from a second goroutine — the
// host must supply a SnapshotFunc that has already serialized access to
// it (e.g. by only calling into the heap from the same goroutine this
// reporter invokes the callback from, or behind a host-level lock).
type SnapshotFunc func() WearSnapshot

// WearReporter logs a one-line wear summary on a cron schedule.
type WearReporter struct {
	cron   *cron.Cron
	snap   SnapshotFunc
	log    *log.Logger
	mu     sync.Mutex
	ticks  int
}

// NewWearReporter builds a reporter that calls snap and logs the result
// every time spec fires, using the standard five-field cron syntax
// (github.com/robfig/cron/v3's default parser).
func NewWearReporter(spec string, snap SnapshotFunc, logger *log.Logger) (*WearReporter, error) {
	r := &WearReporter{
		cron: cron.New(),
		snap: snap,
		log:  logger,
	}
	if _, err := r.cron.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("maintenance: invalid schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start begins invoking snap on the configured schedule.
func (r *WearReporter) Start() { r.cron.Start() }

// Stop halts the scheduler, waiting for any in-flight tick to finish.
func (r *WearReporter) Stop() { <-r.cron.Stop().Done() }

func (r *WearReporter) tick() {
	r.mu.Lock()
	r.ticks++
	n := r.ticks
	r.mu.Unlock()

	s := r.snap()
	if r.log != nil {
		r.log.Printf("wear report #%d: live_bytes=%d band_population=%v band_thresholds=%v",
			n, s.LiveBytes, s.BandPopulation, s.BandThresholds)
	}
}
