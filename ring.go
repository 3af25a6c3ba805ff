// Package ringio is a thin user-space driver for the Linux io_uring
// kernel interface: the three mmap'd shared-memory rings and the three
// syscalls (io_uring_setup, io_uring_enter, io_uring_register) that
// drive them. It does not prepare operations beyond the minimum needed
// to exercise the protocol (see the ops subpackage for that) and it
// does not run an executor or dispatch loop of its own.
package ringio

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/Nugine/ring-io/internal/sys"
)

// paddedCounter keeps a producer-private cursor off the cache line of
// its neighbors, avoiding false sharing with the adjacent kernel-shared
// words during high-rate submission.
type paddedCounter struct {
	v   atomic.Uint32
	pad [60]byte
}

func (p *paddedCounter) Load() uint32            { return p.v.Load() }
func (p *paddedCounter) Store(val uint32)        { p.v.Store(val) }
func (p *paddedCounter) Add(delta uint32) uint32 { return p.v.Add(delta) }

// Option configures the parameters passed to io_uring_setup.
type Option func(*sys.Params)

// WithSQPoll enables kernel-side polling of the submission queue.
func WithSQPoll(idleMillis uint32) Option {
	return func(p *sys.Params) {
		p.Flags |= sys.IORING_SETUP_SQPOLL
		p.SQThreadIdle = idleMillis
	}
}

// WithSQPollCPU pins the SQPOLL kernel thread to the given CPU.
func WithSQPollCPU(cpu uint32) Option {
	return func(p *sys.Params) {
		p.Flags |= sys.IORING_SETUP_SQ_AFF
		p.SQThreadCPU = cpu
	}
}

// WithIOPoll enables busy-polling completions instead of interrupts.
func WithIOPoll() Option {
	return func(p *sys.Params) { p.Flags |= sys.IORING_SETUP_IOPOLL }
}

// WithCQSize requests an explicit completion-queue entry count rather
// than the kernel's default of 2x the submission-queue size.
func WithCQSize(entries uint32) Option {
	return func(p *sys.Params) {
		p.Flags |= sys.IORING_SETUP_CQSIZE
		p.CQEntries = entries
	}
}

// WithFlags ORs arbitrary IORING_SETUP_* bits into the setup request,
// for flags this package does not expose a dedicated option for.
func WithFlags(flags uint32) Option {
	return func(p *sys.Params) { p.Flags |= flags }
}

// sqView is the decoded submission-queue half of the shared mapping.
type sqView struct {
	khead    *uint32
	ktail    *uint32
	kflags   *uint32
	kdropped *uint32
	array    []uint32
	sqes     []sys.SQE

	ringMask    uint32
	ringEntries uint32

	rhead paddedCounter
	rtail paddedCounter
}

// cqView is the decoded completion-queue half of the shared mapping.
type cqView struct {
	khead     *uint32
	ktail     *uint32
	kflags    *uint32 // nil if the kernel did not report a flags offset
	koverflow *uint32
	cqes      []sys.CQE

	ringMask    uint32
	ringEntries uint32
}

// sharedRing is the reference-counted guts of a Ring. It is created
// once by New and torn down exactly once, when the last reference
// (the Ring's own, plus one per Submitter, Completer, and Registrar
// after Split) is released.
type sharedRing struct {
	fd       int
	params   sys.Params
	features uint32

	sqMap  []byte
	cqMap  []byte // aliases sqMap when singleMmap is true
	sqeMap []byte

	singleMmap bool

	sq sqView
	cq cqView

	handles   atomic.Int32
	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool

	// submitMu guards the locked Sync* variants of the submission-
	// queue operations against concurrent callers; the unlocked fast
	// path is the caller's responsibility to serialize.
	submitMu sync.Mutex
}

// Ring owns one io_uring instance before it has been split into its
// three independent handles.
type Ring struct {
	shared *sharedRing
}

// New creates an io_uring instance with the given submission-queue
// depth and applies opts to the setup parameters.
func New(entries uint32, opts ...Option) (*Ring, error) {
	if entries == 0 {
		return nil, ErrEntriesZero
	}

	var params sys.Params
	for _, opt := range opts {
		opt(&params)
	}

	fd, err := sys.Setup(entries, &params)
	if err != nil {
		return nil, err
	}
	fdGuard := sys.NewGuard(func() { unix.Close(fd) })
	defer fdGuard.Run()

	sr := &sharedRing{fd: fd, params: params, features: params.Features}
	sr.handles.Store(1)

	if err := sr.mapRings(); err != nil {
		return nil, err
	}

	fdGuard.Disarm()
	return &Ring{shared: sr}, nil
}

// mapRings performs the mmap half of setup: compute region sizes, mmap
// the SQ ring, the CQ ring (or alias the SQ ring under SINGLE_MMAP),
// and the SQE table, then decode all kernel-shared pointers and seed
// the SQ index array to the identity permutation.
func (sr *sharedRing) mapRings() error {
	p := &sr.params

	sqRingSize := int(p.SQOff.Array) + int(p.SQEntries)*4
	cqRingSize := int(p.CQOff.CQEs) + int(p.CQEntries)*16

	sr.singleMmap = p.Features&sys.IORING_FEAT_SINGLE_MMAP != 0
	if sr.singleMmap && cqRingSize > sqRingSize {
		sqRingSize = cqRingSize
	}

	sqMap, err := sys.Mmap(sr.fd, sys.IORING_OFF_SQ_RING, sqRingSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return err
	}
	sr.sqMap = sqMap
	sqGuard := sys.NewGuard(func() { sys.Munmap(sqMap) })
	defer sqGuard.Run()

	var cqMap []byte
	if sr.singleMmap {
		cqMap = sqMap
	} else {
		cqMap, err = sys.Mmap(sr.fd, sys.IORING_OFF_CQ_RING, cqRingSize,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			return err
		}
	}
	sr.cqMap = cqMap
	cqGuard := sys.NewGuard(func() {
		if !sr.singleMmap {
			sys.Munmap(cqMap)
		}
	})
	defer cqGuard.Run()

	sqeSize := int(p.SQEntries) * int(unsafe.Sizeof(sys.SQE{}))
	sqeMap, err := sys.Mmap(sr.fd, sys.IORING_OFF_SQES, sqeSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return err
	}
	sr.sqeMap = sqeMap
	sqeGuard := sys.NewGuard(func() { sys.Munmap(sqeMap) })
	defer sqeGuard.Run()

	sr.decodeSQ(sqMap, &p.SQOff, p.SQEntries)
	sr.decodeCQ(cqMap, &p.CQOff, p.CQEntries)
	sr.sq.sqes = unsafe.Slice((*sys.SQE)(unsafe.Pointer(&sqeMap[0])), p.SQEntries)

	sr.seedSQArray()

	sqGuard.Disarm()
	cqGuard.Disarm()
	sqeGuard.Disarm()
	return nil
}

func ptrAt(base []byte, offset uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&base[offset]))
}

func (sr *sharedRing) decodeSQ(base []byte, off *sys.SQRingOffsets, entries uint32) {
	sr.sq.khead = ptrAt(base, off.Head)
	sr.sq.ktail = ptrAt(base, off.Tail)
	sr.sq.kflags = ptrAt(base, off.Flags)
	sr.sq.kdropped = ptrAt(base, off.Dropped)
	sr.sq.ringMask = *ptrAt(base, off.RingMask)
	sr.sq.ringEntries = *ptrAt(base, off.RingEntries)
	sr.sq.array = unsafe.Slice((*uint32)(unsafe.Pointer(&base[off.Array])), entries)
}

func (sr *sharedRing) decodeCQ(base []byte, off *sys.CQRingOffsets, entries uint32) {
	sr.cq.khead = ptrAt(base, off.Head)
	sr.cq.ktail = ptrAt(base, off.Tail)
	if off.Flags != 0 {
		sr.cq.kflags = ptrAt(base, off.Flags)
	}
	sr.cq.koverflow = ptrAt(base, off.Overflow)
	sr.cq.ringMask = *ptrAt(base, off.RingMask)
	sr.cq.ringEntries = *ptrAt(base, off.RingEntries)
	sr.cq.cqes = unsafe.Slice((*sys.CQE)(unsafe.Pointer(&base[off.CQEs])), entries)
}

// seedSQArray fills the kernel-visible index array with the identity
// permutation while khead == ktail still holds (no submissions have
// happened yet), so ring slot i always maps to SQE table slot i. The
// private cursors start at the point the array wraps back to index 0,
// matching where the kernel's own head/tail already sit.
func (sr *sharedRing) seedSQArray() {
	khead := atomic.LoadUint32(sr.sq.khead)
	ktail := atomic.LoadUint32(sr.sq.ktail)
	if khead != ktail {
		panic("ringio: SQ khead != ktail at setup")
	}
	entries := sr.sq.ringEntries

	rhead := khead - entries
	for i := uint32(0); i < entries; i++ {
		sr.sq.array[(rhead+i)&sr.sq.ringMask] = i
	}
	sr.sq.rhead.Store(rhead)
	sr.sq.rtail.Store(ktail)
}

// Fd returns the ring's file descriptor.
func (r *Ring) Fd() int { return r.shared.fd }

// Features returns the IORING_FEAT_* bits the kernel reported.
func (r *Ring) Features() uint32 { return r.shared.features }

// HasFeature reports whether a given IORING_FEAT_* bit is set.
func (r *Ring) HasFeature(feat uint32) bool { return r.shared.features&feat != 0 }

// Close tears the ring down. Safe to call on a Ring that has already
// been Split: it releases only the Ring's own reference, and the
// underlying mappings stay alive until Submitter, Completer, and
// Registrar also release theirs.
func (r *Ring) Close() error {
	return r.shared.release()
}

// Split returns three independent handles that share the underlying
// mappings. Split does not release the Ring's own reference: the real
// teardown (unmap, close) runs exactly once, when the Ring and all
// three handles have been closed, and not before.
func (r *Ring) Split() (*Submitter, *Completer, *Registrar) {
	sr := r.shared
	sr.handles.Add(3) // was 1 (the Ring itself); now 4, one per descendant plus the Ring's own
	return &Submitter{shared: sr}, &Completer{shared: sr}, &Registrar{shared: sr}
}

// release drops one reference; the last one tears the ring down.
func (sr *sharedRing) release() error {
	if sr.handles.Add(-1) > 0 {
		return nil
	}
	sr.closeOnce.Do(func() {
		sr.closed.Store(true)
		sr.closeErr = sys.Munmap(sr.sqeMap)
		if err := sys.Munmap(sr.sqMap); err != nil && sr.closeErr == nil {
			sr.closeErr = err
		}
		if !sr.singleMmap {
			if err := sys.Munmap(sr.cqMap); err != nil && sr.closeErr == nil {
				sr.closeErr = err
			}
		}
		if err := unix.Close(sr.fd); err != nil && sr.closeErr == nil {
			sr.closeErr = err
		}
	})
	return sr.closeErr
}

// enter is the single call-site for io_uring_enter.
func (sr *sharedRing) enter(toSubmit, minComplete, flags uint32) (int, error) {
	if sr.closed.Load() {
		return 0, ErrRingClosed
	}
	return sys.Enter(sr.fd, toSubmit, minComplete, flags)
}
