//go:build linux

package sys

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Setup creates a new io_uring instance and returns its file descriptor.
func Setup(entries uint32, params *Params) (int, error) {
	fd, _, errno := unix.Syscall(
		SYS_IO_URING_SETUP,
		uintptr(entries),
		uintptr(unsafe.Pointer(params)),
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return int(fd), nil
}

// Enter submits toSubmit SQEs and, if flags includes
// IORING_ENTER_GETEVENTS, waits for at least minComplete CQEs.
func Enter(fd int, toSubmit, minComplete, flags uint32) (int, error) {
	n, _, errno := unix.Syscall6(
		SYS_IO_URING_ENTER,
		uintptr(fd),
		uintptr(toSubmit),
		uintptr(minComplete),
		uintptr(flags),
		0,
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// EnterExt is Enter with an extended argument (timed wait), passed via
// IORING_ENTER_EXT_ARG.
func EnterExt(fd int, toSubmit, minComplete, flags uint32, arg *GetEventsArg) (int, error) {
	n, _, errno := unix.Syscall6(
		SYS_IO_URING_ENTER,
		uintptr(fd),
		uintptr(toSubmit),
		uintptr(minComplete),
		uintptr(flags|IORING_ENTER_EXT_ARG),
		uintptr(unsafe.Pointer(arg)),
		unsafe.Sizeof(*arg),
	)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// Register performs an io_uring_register operation.
func Register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	_, _, errno := unix.Syscall6(
		SYS_IO_URING_REGISTER,
		uintptr(fd),
		uintptr(opcode),
		uintptr(arg),
		uintptr(nrArgs),
		0,
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// RegisterBuffers registers fixed buffers for I/O.
func RegisterBuffers(fd int, iovecs []unix.Iovec) error {
	if len(iovecs) == 0 {
		return unix.EINVAL
	}
	return Register(fd, IORING_REGISTER_BUFFERS, unsafe.Pointer(&iovecs[0]), uint32(len(iovecs)))
}

// UnregisterBuffers removes registered buffers.
func UnregisterBuffers(fd int) error {
	return Register(fd, IORING_UNREGISTER_BUFFERS, nil, 0)
}

// RegisterFiles registers fixed file descriptors.
func RegisterFiles(fd int, fds []int32) error {
	if len(fds) == 0 {
		return unix.EINVAL
	}
	return Register(fd, IORING_REGISTER_FILES, unsafe.Pointer(&fds[0]), uint32(len(fds)))
}

// UnregisterFiles removes registered files.
func UnregisterFiles(fd int) error {
	return Register(fd, IORING_UNREGISTER_FILES, nil, 0)
}

// Mmap wraps mmap(2) for mapping one of the ring regions.
func Mmap(fd int, offset uint64, length int, prot, flags int) ([]byte, error) {
	return unix.Mmap(fd, int64(offset), length, prot, flags)
}

// Munmap unmaps a previously mapped region.
func Munmap(data []byte) error {
	return unix.Munmap(data)
}

func errnoFromRes(res int32) error {
	return unix.Errno(-res)
}
