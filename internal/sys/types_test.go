//go:build linux

package sys

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestCQEResultErrorNegative(t *testing.T) {
	c := CQE{Res: -int32(unix.EBADF)}
	err := c.ResultError()
	if err == nil {
		t.Fatal("expected an error for negative Res")
	}
	if errno, ok := err.(unix.Errno); !ok || errno != unix.EBADF {
		t.Fatalf("expected EBADF, got %v", err)
	}
}

func TestCQEResultErrorNonNegative(t *testing.T) {
	c := CQE{Res: 4096}
	if err := c.ResultError(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
