package ringio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nugine/ring-io/internal/sys"
	"github.com/Nugine/ring-io/ops"
)

func TestFlushIsConditionalOnNeedsFlush(t *testing.T) {
	_, comp, _, cleanup := newSplitRing(t, 4)
	defer cleanup()

	require.False(t, comp.NeedsFlush())
	require.NoError(t, comp.Flush(), "Flush must be a no-op when NeedsFlush is false")
	require.False(t, comp.NeedsFlush(), "Flush is idempotent")
}

func TestAdvancePastReadyPanics(t *testing.T) {
	_, comp, _, cleanup := newSplitRing(t, 4)
	defer cleanup()

	require.Panics(t, func() {
		comp.Advance(1)
	})
}

func TestWaitCQEsZeroReturnsImmediately(t *testing.T) {
	_, comp, _, cleanup := newSplitRing(t, 4)
	defer cleanup()

	require.NoError(t, comp.WaitCQEs(0))
}

func TestPeekThenPopDiffer(t *testing.T) {
	sub, comp, _, cleanup := newSplitRing(t, 4)
	defer cleanup()

	idx, ok := sub.PopSQE()
	require.True(t, ok)
	sub.ModifySQE(idx, func(sqe *sys.SQE) { ops.PrepNop(sqe, 7) })
	sub.PushSQE(idx)
	_, err := sub.SubmitAndWait(1)
	require.NoError(t, err)

	first, ok := comp.PeekCQE()
	require.True(t, ok)
	second, ok := comp.PeekCQE()
	require.True(t, ok)
	require.Equal(t, first.UserData, second.UserData, "repeated Peek without Pop yields the same entry")

	popped, ok := comp.PopCQE()
	require.True(t, ok)
	require.Equal(t, first.UserData, popped.UserData)

	require.EqualValues(t, 0, comp.Ready())
	_, ok = comp.PeekCQE()
	require.False(t, ok, "Peek after Pop no longer yields the popped entry")
}
