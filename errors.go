package ringio

import "errors"

var (
	// ErrEntriesZero is returned by New when entries == 0.
	ErrEntriesZero = errors.New("ringio: entries must be non-zero")

	// ErrRingClosed is returned by Submit/SubmitAndWait, Flush,
	// WaitCQEs, and the Registrar's register/unregister methods after
	// the owning ring has been torn down.
	ErrRingClosed = errors.New("ringio: ring is closed")

	// ErrNoBuffers is returned by RegisterBuffers/RegisterFiles when
	// called with an empty slice.
	ErrNoBuffers = errors.New("ringio: no buffers or files to register")
)
