package ringio

import (
	"sync"
	"sync/atomic"

	"github.com/Nugine/ring-io/internal/sys"
)

// Completer is the user-space consumer half of the completion ring.
type Completer struct {
	shared *sharedRing

	// popMu guards SyncPopBatchCQE the same way sharedRing.submitMu
	// guards the locked submission-side variants.
	popMu sync.Mutex
}

// Close releases this handle's share of the underlying ring.
func (c *Completer) Close() error {
	return c.shared.release()
}

// Ready returns the number of completions available to pop.
func (c *Completer) Ready() uint32 {
	cq := &c.shared.cq
	ktail := atomic.LoadUint32(cq.ktail)
	khead := atomic.LoadUint32(cq.khead)
	return ktail - khead
}

// PeekCQE returns a live pointer into the completion ring for the next
// entry, without advancing khead. The pointer is only valid until the
// next Advance/PopCQE/PopBatchCQE call.
func (c *Completer) PeekCQE() (*sys.CQE, bool) {
	cq := &c.shared.cq
	if c.Ready() == 0 {
		return nil, false
	}
	khead := atomic.LoadUint32(cq.khead)
	return &cq.cqes[khead&cq.ringMask], true
}

// PeekBatchCQE fills out with live pointers to up to min(Ready(),
// len(out)) completions, without advancing khead.
func (c *Completer) PeekBatchCQE(out []*sys.CQE) int {
	cq := &c.shared.cq
	ready := c.Ready()
	n := ready
	if int(n) > len(out) {
		n = uint32(len(out))
	}
	khead := atomic.LoadUint32(cq.khead)
	for i := uint32(0); i < n; i++ {
		out[i] = &cq.cqes[(khead+i)&cq.ringMask]
	}
	return int(n)
}

// PopCQE reads the next completion by value and advances khead.
func (c *Completer) PopCQE() (sys.CQE, bool) {
	cqe, ok := c.PeekCQE()
	if !ok {
		return sys.CQE{}, false
	}
	val := *cqe
	c.Advance(1)
	return val, true
}

// PopBatchCQE reads up to min(Ready(), len(out)) completions by value
// into out and advances khead by that count.
func (c *Completer) PopBatchCQE(out []sys.CQE) int {
	cq := &c.shared.cq
	ready := c.Ready()
	n := ready
	if int(n) > len(out) {
		n = uint32(len(out))
	}
	khead := atomic.LoadUint32(cq.khead)
	for i := uint32(0); i < n; i++ {
		out[i] = cq.cqes[(khead+i)&cq.ringMask]
	}
	c.Advance(n)
	return int(n)
}

// Advance releases n completions back to the kernel. n must not
// exceed Ready(); violating that precondition is a caller bug.
func (c *Completer) Advance(n uint32) {
	cq := &c.shared.cq
	if n > c.Ready() {
		panic("ringio: Advance(n) exceeds Ready()")
	}
	khead := atomic.LoadUint32(cq.khead)
	atomic.StoreUint32(cq.khead, khead+n)
}

// NeedsFlush reports whether the kernel has completions it could not
// fit in the completion ring and is waiting for a drain, as signalled
// by IORING_SQ_CQ_OVERFLOW in the shared SQ flags word.
func (c *Completer) NeedsFlush() bool {
	sq := &c.shared.sq
	if sq.kflags == nil {
		return false
	}
	return atomic.LoadUint32(sq.kflags)&sys.IORING_SQ_CQ_OVERFLOW != 0
}

// Flush enters the kernel to drain overflowed completions, but only
// when NeedsFlush reports there is something to drain.
func (c *Completer) Flush() error {
	if c.shared.closed.Load() {
		return ErrRingClosed
	}
	if !c.NeedsFlush() {
		return nil
	}
	_, err := c.shared.enter(0, 0, sys.IORING_ENTER_GETEVENTS)
	return err
}

// WaitCQEs blocks until at least n completions are ready.
func (c *Completer) WaitCQEs(n uint32) error {
	if c.shared.closed.Load() {
		return ErrRingClosed
	}
	if c.Ready() >= n {
		return nil
	}
	_, err := c.shared.enter(0, n, sys.IORING_ENTER_GETEVENTS)
	return err
}

// SyncPopBatchCQE is the lock-guarded equivalent of PopBatchCQE.
func (c *Completer) SyncPopBatchCQE(out []sys.CQE) int {
	c.popMu.Lock()
	defer c.popMu.Unlock()
	return c.PopBatchCQE(out)
}
