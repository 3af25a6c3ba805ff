package ringio

import (
	"sync/atomic"

	"github.com/Nugine/ring-io/internal/sys"
)

// Submitter is the user-space producer half of the submission ring.
// Exactly one goroutine may use the unlocked methods at a time; use
// the Sync* variants to share a Submitter across goroutines without
// external synchronization.
type Submitter struct {
	shared *sharedRing
}

// Close releases this handle's share of the underlying ring. The ring
// is only actually torn down once the Ring, Completer, and Registrar
// have also released theirs.
func (s *Submitter) Close() error {
	return s.shared.release()
}

// Available returns the number of free slots the caller may PopSQE.
func (s *Submitter) Available() uint32 {
	sq := &s.shared.sq
	khead := atomic.LoadUint32(sq.khead)
	rhead := sq.rhead.Load()
	return khead - rhead
}

// Prepared returns the number of slots acquired and published into
// array[] (via PushSQE) but not yet consumed by the kernel.
func (s *Submitter) Prepared() uint32 {
	sq := &s.shared.sq
	rtail := sq.rtail.Load()
	khead := atomic.LoadUint32(sq.khead)
	return rtail - khead
}

// PopSQE acquires one free slot and returns its SQE-table index. The
// second return value is false if the queue has no free slots.
func (s *Submitter) PopSQE() (uint32, bool) {
	sq := &s.shared.sq
	khead := atomic.LoadUint32(sq.khead)
	rhead := sq.rhead.Load()
	if khead-rhead == 0 {
		return 0, false
	}
	idx := sq.array[rhead&sq.ringMask]
	sq.rhead.Store(rhead + 1)
	return idx, true
}

// PopBatchSQE fills out with up to min(Available(), len(out)) acquired
// indices and returns the number filled.
func (s *Submitter) PopBatchSQE(out []uint32) int {
	sq := &s.shared.sq
	khead := atomic.LoadUint32(sq.khead)
	rhead := sq.rhead.Load()
	n := khead - rhead
	if int(n) > len(out) {
		n = uint32(len(out))
	}
	for i := uint32(0); i < n; i++ {
		out[i] = sq.array[(rhead+i)&sq.ringMask]
	}
	sq.rhead.Store(rhead + n)
	return int(n)
}

// ModifySQE gives f mutable access to the SQE-table slot at idx. idx
// must have come from PopSQE/PopBatchSQE and not yet been pushed.
func (s *Submitter) ModifySQE(idx uint32, f func(*sys.SQE)) {
	f(&s.shared.sq.sqes[idx])
}

// PushSQE publishes idx as the next entry the kernel will consume.
func (s *Submitter) PushSQE(idx uint32) {
	sq := &s.shared.sq
	rtail := sq.rtail.Load()
	sq.array[rtail&sq.ringMask] = idx
	sq.rtail.Store(rtail + 1)
}

// PushBatchSQE publishes ids in order.
func (s *Submitter) PushBatchSQE(ids []uint32) {
	sq := &s.shared.sq
	rtail := sq.rtail.Load()
	for i, idx := range ids {
		sq.array[(rtail+uint32(i))&sq.ringMask] = idx
	}
	sq.rtail.Store(rtail + uint32(len(ids)))
}

// Submit publishes prepared entries to the kernel without waiting for
// any completions. Equivalent to SubmitAndWait(0).
func (s *Submitter) Submit() (int, error) {
	return s.SubmitAndWait(0)
}

// SubmitAndWait publishes prepared entries to the kernel and, if the
// kernel requires a syscall or n > 0, enters the kernel, waiting for
// at least n completions to be ready.
func (s *Submitter) SubmitAndWait(n uint32) (int, error) {
	if s.shared.closed.Load() {
		return 0, ErrRingClosed
	}
	sq := &s.shared.sq
	rtail := sq.rtail.Load()
	khead := atomic.LoadUint32(sq.khead)
	atomic.StoreUint32(sq.ktail, rtail)
	toSubmit := rtail - khead

	var enterFlags uint32
	needsEnter := true
	if s.shared.params.Flags&sys.IORING_SETUP_SQPOLL != 0 {
		kflags := atomic.LoadUint32(sq.kflags)
		if kflags&sys.IORING_SQ_NEED_WAKEUP != 0 {
			enterFlags |= sys.IORING_ENTER_SQ_WAKEUP
		} else {
			needsEnter = n > 0
		}
	}

	if n > 0 {
		enterFlags |= sys.IORING_ENTER_GETEVENTS
	}

	if !needsEnter {
		return int(toSubmit), nil
	}
	return s.shared.enter(toSubmit, n, enterFlags)
}

// SyncPopBatchSQE is the lock-guarded equivalent of PopBatchSQE, safe
// to call from multiple goroutines without external synchronization.
func (s *Submitter) SyncPopBatchSQE(out []uint32) int {
	s.shared.submitMu.Lock()
	defer s.shared.submitMu.Unlock()
	return s.PopBatchSQE(out)
}

// SyncPushBatchSQE is the lock-guarded equivalent of PushBatchSQE.
func (s *Submitter) SyncPushBatchSQE(ids []uint32) {
	s.shared.submitMu.Lock()
	defer s.shared.submitMu.Unlock()
	s.PushBatchSQE(ids)
}
