package ringio

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// skipIfNoIOURing skips the test on kernels/sandboxes that don't
// support io_uring at all (ENOSYS) or don't permit it (EPERM, common
// in seccomp-restricted containers and CI).
func skipIfNoIOURing(t *testing.T, err error) {
	t.Helper()
	if err == unix.ENOSYS || err == unix.EPERM {
		t.Skipf("io_uring not available in this environment: %v", err)
	}
}

func TestNewRejectsZeroEntries(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, ErrEntriesZero)
}

func TestNewAndClose(t *testing.T) {
	r, err := New(32)
	if err != nil {
		skipIfNoIOURing(t, err)
		require.NoError(t, err)
	}
	defer r.Close()

	require.Equal(t, uint32(32), r.shared.sq.ringEntries)
	require.Contains(t, []uint32{32, 64}, r.shared.cq.ringEntries)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "Close must be idempotent")
}

func TestNewEntriesOne(t *testing.T) {
	r, err := New(1)
	if err != nil {
		skipIfNoIOURing(t, err)
		require.NoError(t, err)
	}
	defer r.Close()
	require.Equal(t, uint32(1), r.shared.sq.ringEntries)
}

func TestSeedSQArrayIsPermutation(t *testing.T) {
	r, err := New(8)
	if err != nil {
		skipIfNoIOURing(t, err)
		require.NoError(t, err)
	}
	defer r.Close()

	seen := make(map[uint32]bool)
	for _, v := range r.shared.sq.array {
		seen[v] = true
	}
	require.Len(t, seen, 8)
	for i := uint32(0); i < 8; i++ {
		require.True(t, seen[i], "index %d missing from seeded array", i)
	}
}

func TestSplitSharesTeardown(t *testing.T) {
	r, err := New(4)
	if err != nil {
		skipIfNoIOURing(t, err)
		require.NoError(t, err)
	}

	sub, comp, reg := r.Split()
	require.NoError(t, r.Close())

	// the ring is still usable: Ring's own Close only dropped its
	// reference, the other three handles still hold theirs.
	require.Equal(t, uint32(4), sub.Available())

	require.NoError(t, sub.Close())
	require.NoError(t, comp.Close())
	require.NoError(t, reg.Close())
}
