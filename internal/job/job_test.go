package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	j := New(42)

	assert.Equal(t, uint64(42), j.ID)
	assert.Equal(t, StateNew, j.State)
	assert.Equal(t, PriorityUnset, j.Priority)
	assert.Equal(t, 1, j.Refcount())
}

func TestDependencies_AddRemove(t *testing.T) {
	j := New(1)

	require.NoError(t, j.DependencyAdd("after=7"))
	require.NoError(t, j.DependencyAdd("license=gpu"))
	assert.Equal(t, 2, j.DependencyCount())

	require.NoError(t, j.DependencyRemove("after=7"))
	assert.Equal(t, 1, j.DependencyCount())
}

func TestDependencies_DuplicateAdd(t *testing.T) {
	j := New(1)

	require.NoError(t, j.DependencyAdd("after=7"))
	err := j.DependencyAdd("after=7")
	assert.Error(t, err)
	assert.Equal(t, 1, j.DependencyCount())
}

func TestDependencies_RemoveUnknown(t *testing.T) {
	j := New(1)

	assert.Error(t, j.DependencyRemove("never-added"))
}

func TestPerilog_Counting(t *testing.T) {
	j := New(1)

	require.NoError(t, j.PerilogStart())
	require.NoError(t, j.PerilogStart())
	assert.Equal(t, uint8(2), j.PerilogActive)

	j.PerilogFinish()
	j.PerilogFinish()
	j.PerilogFinish() // extra finish clamps at zero
	assert.Equal(t, uint8(0), j.PerilogActive)
}

func TestPerilog_Overflow(t *testing.T) {
	j := New(1)
	for i := 0; i < 255; i++ {
		require.NoError(t, j.PerilogStart())
	}

	assert.Error(t, j.PerilogStart())
	assert.Equal(t, uint8(255), j.PerilogActive)
}

func TestEndEvent_FirstWins(t *testing.T) {
	j := New(1)

	j.SetEndEvent(10, "exception", map[string]any{"severity": int64(0)})
	j.SetEndEvent(11, "finish", nil)

	require.NotNil(t, j.EndEvent)
	assert.Equal(t, "exception", j.EndEvent.Name)
	assert.Equal(t, float64(10), j.EndEvent.Timestamp)
}

func TestEventSeen(t *testing.T) {
	j := New(1)

	_, ok := j.EventSeen(3)
	assert.False(t, ok)

	j.MarkEventSeen(3, 0)
	seq, ok := j.EventSeen(3)
	require.True(t, ok)
	assert.Equal(t, int64(0), seq)

	// Re-posting the same event updates the recorded sequence.
	j.MarkEventSeen(3, 5)
	seq, _ = j.EventSeen(3)
	assert.Equal(t, int64(5), seq)
}

func TestAnnotations_MergeAndDelete(t *testing.T) {
	j := New(1)

	j.UpdateAnnotations("user", map[string]any{"project": "alpha", "note": "x"})
	j.UpdateAnnotations("user", map[string]any{"note": "y"})
	assert.Equal(t, map[string]any{"project": "alpha", "note": "y"}, j.Annotations("user"))

	// Null deletes a key; deleting the last key drops the namespace.
	j.UpdateAnnotations("user", map[string]any{"project": nil})
	assert.Equal(t, map[string]any{"note": "y"}, j.Annotations("user"))
	j.UpdateAnnotations("user", map[string]any{"note": nil})
	assert.Nil(t, j.Annotations("user"))
}

func TestAnnotations_EmptyUpdateIsNoop(t *testing.T) {
	j := New(1)

	j.UpdateAnnotations("user", nil)
	j.UpdateAnnotations("user", map[string]any{})
	assert.Nil(t, j.Annotations("user"))
}

func TestRefcount(t *testing.T) {
	j := New(1)

	j.Incref()
	assert.Equal(t, 2, j.Refcount())

	assert.False(t, j.Decref())
	assert.True(t, j.Decref(), "last reference reports destroyable")
	assert.False(t, j.Decref(), "decref at zero stays at zero")
}

func TestFlags(t *testing.T) {
	j := New(1)

	require.NoError(t, j.SetFlag("waitable"))
	assert.True(t, j.Flags.Has(FlagWaitable))
	assert.False(t, j.Flags.Has(FlagDebug))

	require.NoError(t, j.SetFlag("debug"))
	assert.True(t, j.Flags.Has(FlagWaitable|FlagDebug))

	assert.Error(t, j.SetFlag("bogus"))
}

func TestSetFlag_AllocBypass(t *testing.T) {
	j := New(1)
	assert.False(t, j.AllocBypass)

	require.NoError(t, j.SetFlag("alloc-bypass"))
	assert.True(t, j.Flags.Has(FlagAllocBypass))
	assert.True(t, j.AllocBypass)
}

func TestFlagByName(t *testing.T) {
	f, err := FlagByName("waitable")
	require.NoError(t, err)
	assert.Equal(t, FlagWaitable, f)

	_, err = FlagByName("nope")
	assert.Error(t, err)
}
