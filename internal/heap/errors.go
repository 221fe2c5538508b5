package heap

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// FatalError marks a condition the placement engine cannot recover from
// in-band per §7's Fatal classification: out-of-memory after the
// reserved pool, a corrupted block_size at free, an unaligned or
// otherwise invalid pointer, or size recovery yielding an out-of-range
// run length. It carries the session it occurred in so a crash log can
// be correlated back to the Open() call that produced it.
//
// A FatalError is panicked, not returned, by every Heap method past
// construction: the facade's exported methods do not recover, so by
// default a fatal condition crashes the host process, matching §7's
// "all other failures terminate the process because the allocator's
// invariants cannot be restored locally." A host that wants custom
// supervision can wrap its own call in recover() and type-assert
// *FatalError.
type FatalError struct {
	Op        string
	Err       error
	SessionID uuid.UUID
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("heap: %s: %v (session=%s)", e.Op, e.Err, e.SessionID)
}
func (e *FatalError) Unwrap() error { return e.Err }

// fatalf builds a FatalError value without panicking. It exists only
// for Open(): before a Heap is constructed there is no OOM handler or
// logger yet to hand the error to, so construction failures are
// returned as ordinary errors the way any Go constructor reports bad
// input, rather than panicking a process that never finished starting.
func fatalf(op, format string, args ...any) error {
	return &FatalError{Op: op, Err: fmt.Errorf(format, args...)}
}

// fatal builds a FatalError, gives the configured OOM handler one shot
// to react (the OOMHandler passed to Open, invoked once), and panics. Used for
// every Fatal-class condition this heap detects after it has invoked
// the handler for the first time; callers that already invoked the OOM
// handler themselves (the retry path in SlabMalloc/BlockMalloc) panic
// via fatalNoRetry instead, to avoid invoking it twice for one failure.
func (h *Heap) fatal(op, format string, args ...any) error {
	if h.onOOM != nil {
		h.onOOM(op, 0)
	}
	return h.fatalNoRetry(op, format, args...)
}

// fatalNoRetry builds a FatalError, writes the stderr message §7 calls
// for (and logs it, if a logger is configured, for session correlation),
// and panics with it. It never returns.
func (h *Heap) fatalNoRetry(op, format string, args ...any) error {
	fe := &FatalError{Op: op, Err: fmt.Errorf(format, args...), SessionID: h.sessionID}
	fmt.Fprintln(os.Stderr, fe)
	if h.log != nil {
		h.log.Printf("%v", fe)
	}
	panic(fe)
}

// ErrOutOfMemory names the condition wrapped by the FatalError panicked
// when no placement strategy — fresh page, reform scan, reserved pool,
// OOM-handler-driven retry — can satisfy a request.
var ErrOutOfMemory = fmt.Errorf("heap: out of memory")

// ErrInvalidPointer names the condition wrapped by the FatalError
// panicked when a pointer passed to Free/SizeOf/Realloc was not issued
// by this heap, or has already been freed.
var ErrInvalidPointer = fmt.Errorf("heap: invalid pointer")
