package arc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManager_Leaks(t *testing.T) {
	m := newTestManager(t)
	link := func(from, to ID, kind Kind) *Slot {
		s, err := m.NewField(from, kind)
		require.NoError(t, err)
		require.NoError(t, m.Assign(s, to))
		return s
	}

	root := m.Allocate("root", nil)
	child := m.Allocate("child", nil)
	orphan := m.Allocate("orphan", nil)
	rootVar := m.NewSlot(Strong)
	require.NoError(t, m.Assign(rootVar, root))
	link(root, child, Strong)
	require.Equal(t, []ID{orphan}, m.Leaks())

	// a <-> b cycle, b owns c, d is only weakly referenced from the root.
	a := m.Allocate("a", nil)
	b := m.Allocate("b", nil)
	c := m.Allocate("c", nil)
	d := m.Allocate("d", nil)
	tmp := m.NewSlot(Strong)
	require.NoError(t, m.Assign(tmp, a))
	link(a, b, Strong)
	ba := link(b, a, Strong)
	link(b, c, Strong)
	link(root, d, Weak)
	require.Equal(t, []ID{orphan, d}, m.Leaks())

	require.NoError(t, m.Release(tmp))
	require.Equal(t, []ID{orphan, a, b, c, d}, m.Leaks())

	// Breaking the cycle finalizes everything that was leaked with it.
	require.NoError(t, m.Release(ba))
	require.Equal(t, []ID{orphan, d}, m.Leaks())
	require.False(t, m.IsAlive(c))
}
