// Package ops prepares a handful of io_uring submission entries. It is
// an external collaborator of ringio, not part of the core: ringio
// only requires that an SQE be an opaque, pointer-writable record, and
// these helpers are one way to fill that record for a few common
// operations (nop, readv, writev, fsync). Callers write their own
// helpers the same way for any operation this package doesn't cover.
package ops

import (
	"golang.org/x/sys/unix"

	"github.com/Nugine/ring-io/internal/sys"
)

// PrepNop prepares a no-op submission entry, useful for exercising the
// ring protocol without touching a real file descriptor.
func PrepNop(sqe *sys.SQE, userData uint64) {
	sqe.Reset()
	sqe.Opcode = uint8(sys.IORING_OP_NOP)
	sqe.Fd = -1
	sqe.UserData = userData
}

// PrepReadv prepares a vectored read from fd at offset into iovecs.
func PrepReadv(sqe *sys.SQE, fd int, iovecs []unix.Iovec, offset uint64, userData uint64) {
	sqe.Reset()
	sqe.Opcode = uint8(sys.IORING_OP_READV)
	sqe.Fd = int32(fd)
	sqe.Off = offset
	sqe.Addr = iovecBase(iovecs)
	sqe.Len = uint32(len(iovecs))
	sqe.UserData = userData
}

// PrepWritev prepares a vectored write to fd at offset from iovecs.
func PrepWritev(sqe *sys.SQE, fd int, iovecs []unix.Iovec, offset uint64, userData uint64) {
	sqe.Reset()
	sqe.Opcode = uint8(sys.IORING_OP_WRITEV)
	sqe.Fd = int32(fd)
	sqe.Off = offset
	sqe.Addr = iovecBase(iovecs)
	sqe.Len = uint32(len(iovecs))
	sqe.UserData = userData
}

// PrepFsync prepares an fsync of fd; flags may include
// sys.IORING_FSYNC_DATASYNC to request fdatasync semantics.
func PrepFsync(sqe *sys.SQE, fd int, flags uint32, userData uint64) {
	sqe.Reset()
	sqe.Opcode = uint8(sys.IORING_OP_FSYNC)
	sqe.Fd = int32(fd)
	sqe.OpFlags = flags
	sqe.UserData = userData
}
