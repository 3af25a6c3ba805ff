//go:build !linux

package sys

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// This driver only talks to the Linux io_uring ABI; on any other OS
// every entry point fails closed with ENOSYS instead of failing to
// build, mirroring how the rest of the corpus handles non-Linux stubs.

func Setup(entries uint32, params *Params) (int, error) {
	return 0, unix.ENOSYS
}

func Enter(fd int, toSubmit, minComplete, flags uint32) (int, error) {
	return 0, unix.ENOSYS
}

func EnterExt(fd int, toSubmit, minComplete, flags uint32, arg *GetEventsArg) (int, error) {
	return 0, unix.ENOSYS
}

func Register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	return unix.ENOSYS
}

func RegisterBuffers(fd int, iovecs []unix.Iovec) error {
	return unix.ENOSYS
}

func UnregisterBuffers(fd int) error {
	return unix.ENOSYS
}

func RegisterFiles(fd int, fds []int32) error {
	return unix.ENOSYS
}

func UnregisterFiles(fd int) error {
	return unix.ENOSYS
}

func Mmap(fd int, offset uint64, length int, prot, flags int) ([]byte, error) {
	return nil, unix.ENOSYS
}

func Munmap(data []byte) error {
	return unix.ENOSYS
}

func errnoFromRes(res int32) error {
	return unix.Errno(-res)
}
