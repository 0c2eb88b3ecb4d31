package arc

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func liveObjectsValue(t *testing.T) float64 {
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "arcgo_live_objects" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("no live objects gauge")
	return 0
}

func TestManager_Close(t *testing.T) {
	before := liveObjectsValue(t)

	m := newTestManager(t)
	a, b := m.Allocate("a", nil), m.Allocate("b", nil)
	sa, sb := m.NewSlot(Strong), m.NewSlot(Strong)
	require.NoError(t, m.Assign(sa, a))
	require.NoError(t, m.Assign(sb, b))
	// Cycle a <-> b leaks both.
	ab, err := m.NewField(a, Strong)
	require.NoError(t, err)
	require.NoError(t, m.Assign(ab, b))
	ba, err := m.NewField(b, Strong)
	require.NoError(t, err)
	require.NoError(t, m.Assign(ba, a))
	require.NoError(t, m.Release(sa))
	require.NoError(t, m.Release(sb))
	require.Equal(t, before+2, liveObjectsValue(t))

	m.Close()
	require.Equal(t, before, liveObjectsValue(t))
	m.Close()
	require.Equal(t, before, liveObjectsValue(t))

	// Closed manager still works, but isn't counted.
	c := m.Allocate("c", nil)
	require.NoError(t, m.Using(c, func(*Slot) error { return nil }))
	require.False(t, m.IsAlive(c))
	require.Equal(t, before, liveObjectsValue(t))
	require.Equal(t, []ID{a, b}, m.Live())
}
