package ringio

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nugine/ring-io/internal/sys"
	"github.com/Nugine/ring-io/ops"
)

func newSplitRing(t *testing.T, entries uint32) (*Submitter, *Completer, *Registrar, func()) {
	t.Helper()
	r, err := New(entries)
	if err != nil {
		skipIfNoIOURing(t, err)
		require.NoError(t, err)
	}
	sub, comp, reg := r.Split()
	return sub, comp, reg, func() {
		r.Close()
		sub.Close()
		comp.Close()
		reg.Close()
	}
}

func TestPopSQEExactlyRingEntriesTimes(t *testing.T) {
	sub, _, _, cleanup := newSplitRing(t, 16)
	defer cleanup()

	require.EqualValues(t, 16, sub.Available())
	require.EqualValues(t, 0, sub.Prepared())

	for i := 0; i < 16; i++ {
		_, ok := sub.PopSQE()
		require.True(t, ok, "pop %d should succeed", i)
	}
	_, ok := sub.PopSQE()
	require.False(t, ok, "17th pop on a 16-entry ring must fail")
	require.EqualValues(t, 0, sub.Available())
}

func TestPushWithoutSubmitLeavesKernelTailUntouched(t *testing.T) {
	sub, comp, _, cleanup := newSplitRing(t, 8)
	defer cleanup()

	idxs := make([]uint32, 4)
	n := sub.PopBatchSQE(idxs)
	require.Equal(t, 4, n)
	for _, idx := range idxs {
		sub.ModifySQE(idx, func(s *sys.SQE) {})
	}
	sub.PushBatchSQE(idxs)

	require.EqualValues(t, 4, sub.Prepared())
	require.EqualValues(t, 0, comp.Ready())
	require.Equal(t, atomic.LoadUint32(sub.shared.sq.khead), atomic.LoadUint32(sub.shared.sq.ktail))
}

func TestNopRoundTrip(t *testing.T) {
	sub, comp, _, cleanup := newSplitRing(t, 8)
	defer cleanup()

	idx, ok := sub.PopSQE()
	require.True(t, ok)
	sub.ModifySQE(idx, func(s *sys.SQE) {
		ops.PrepNop(s, 42)
	})
	sub.PushSQE(idx)

	n, err := sub.SubmitAndWait(1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.GreaterOrEqual(t, comp.Ready(), uint32(1))
	cqe, ok := comp.PopCQE()
	require.True(t, ok)
	require.Equal(t, uint64(42), cqe.UserData)
	require.GreaterOrEqual(t, cqe.Res, int32(0))
}
