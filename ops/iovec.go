package ops

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// iovecBase returns the address of the first iovec as a uint64, the
// form the kernel expects in SQE.Addr for vectored operations. The
// caller owns the slice and must keep it alive until the operation
// completes.
func iovecBase(iovecs []unix.Iovec) uint64 {
	if len(iovecs) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&iovecs[0])))
}
