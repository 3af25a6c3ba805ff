package ringio

import (
	"golang.org/x/sys/unix"

	"github.com/Nugine/ring-io/internal/sys"
)

// Registrar is a thin facade over io_uring_register for fixed buffers
// and fixed files. The caller must keep any registered buffer or file
// descriptor valid until it is unregistered or the Ring is destroyed;
// this package does not track or enforce that lifetime.
type Registrar struct {
	shared *sharedRing
}

// Close releases this handle's share of the underlying ring.
func (r *Registrar) Close() error {
	return r.shared.release()
}

// RegisterBuffers registers bufs as fixed buffers for use with
// IORING_OP_READ_FIXED/WRITE_FIXED-style operations.
func (r *Registrar) RegisterBuffers(bufs [][]byte) error {
	if r.shared.closed.Load() {
		return ErrRingClosed
	}
	if len(bufs) == 0 {
		return ErrNoBuffers
	}
	iovecs := make([]unix.Iovec, len(bufs))
	for i, b := range bufs {
		if len(b) == 0 {
			iovecs[i].Base = nil
		} else {
			iovecs[i].SetLen(len(b))
			iovecs[i].Base = &b[0]
		}
	}
	return sys.RegisterBuffers(r.shared.fd, iovecs)
}

// UnregisterBuffers removes any buffers registered with RegisterBuffers.
func (r *Registrar) UnregisterBuffers() error {
	if r.shared.closed.Load() {
		return ErrRingClosed
	}
	return sys.UnregisterBuffers(r.shared.fd)
}

// RegisterFiles registers fds as fixed files, addressable by their
// index in this slice instead of by raw fd in later submissions.
func (r *Registrar) RegisterFiles(fds []int) error {
	if r.shared.closed.Load() {
		return ErrRingClosed
	}
	if len(fds) == 0 {
		return ErrNoBuffers
	}
	raw := make([]int32, len(fds))
	for i, fd := range fds {
		raw[i] = int32(fd)
	}
	return sys.RegisterFiles(r.shared.fd, raw)
}

// UnregisterFiles removes any files registered with RegisterFiles.
func (r *Registrar) UnregisterFiles() error {
	if r.shared.closed.Load() {
		return ErrRingClosed
	}
	return sys.UnregisterFiles(r.shared.fd)
}
