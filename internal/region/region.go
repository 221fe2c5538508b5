// Package region acquires the contiguous byte-addressable mapping that the
// allocator treats as non-volatile memory, and provides the durability
// primitive the core calls after metadata mutations that must survive a
// crash.
//
// On real NVM hardware this would be a persistent-memory file mapped with
// MAP_SYNC; here an anonymous mapping (or a plain file-backed mapping, when
// a path is configured) stands in for the device, matching the teacher
// pack's "volatile memory is an acceptable stand-in for NVM" stance.
package region

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Region is a contiguous mapped byte range acting as the allocator's
// backing store. It owns no file descriptor when anonymous.
type Region struct {
	buf  []byte
	file *os.File
}

// Map acquires a Region of exactly size bytes. If path is empty, the
// mapping is anonymous and private (volatile). If path is non-empty, the
// backing file is created/truncated to size and mapped MAP_SHARED so that
// Persist can meaningfully msync it.
func Map(path string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("region: size must be positive, got %d", size)
	}
	if path == "" {
		buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			return nil, fmt.Errorf("region: anonymous mmap: %w", err)
		}
		return &Region{buf: buf}, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("region: open %s: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("region: truncate %s: %w", path, err)
	}
	buf, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("region: mmap %s: %w", path, err)
	}
	return &Region{buf: buf, file: f}, nil
}

// Bytes returns the mapped region as a byte slice. Offsets into it are the
// only addressing the allocator core uses.
func (r *Region) Bytes() []byte { return r.buf }

// Len returns the mapped region size in bytes.
func (r *Region) Len() int { return len(r.buf) }

// Persist orders writes to buf[off:off+n] such that they are durable
// before this call returns. For an anonymous (volatile) mapping this is a
// deliberate no-op: there is nothing backing the pages beyond process
// memory, so ordering guarantees would be theater. For a file-backed
// mapping it is an msync over the affected range.
func (r *Region) Persist(off, n int) error {
	if r.file == nil {
		return nil
	}
	if off < 0 || n < 0 || off+n > len(r.buf) {
		return fmt.Errorf("region: persist range [%d,%d) out of bounds (len=%d)", off, off+n, len(r.buf))
	}
	return unix.Msync(r.buf[off:off+n], unix.MS_SYNC)
}

// Unmap releases the mapping and closes the backing file, if any.
func (r *Region) Unmap() error {
	err := unix.Munmap(r.buf)
	r.buf = nil
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
