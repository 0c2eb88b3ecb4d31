package arc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeakTable(t *testing.T) {
	wt := newWeakTable()
	s1 := &Slot{id: 1, kind: Weak}
	s2 := &Slot{id: 2, kind: Weak}
	s3 := &Slot{id: 3, kind: Weak}

	require.True(t, wt.insert(10, s1))
	require.False(t, wt.insert(10, s1))
	require.True(t, wt.insert(10, s2))
	require.True(t, wt.insert(20, s3))
	require.Equal(t, 2, wt.count(10))
	require.Equal(t, 1, wt.count(20))
	require.Equal(t, 0, wt.count(30))
	require.Equal(t, 2, len(wt.observers))

	require.True(t, wt.remove(10, s1))
	require.False(t, wt.remove(10, s1))
	require.False(t, wt.remove(30, s1))
	require.Equal(t, 1, wt.count(10))

	require.ElementsMatch(t, []*Slot{s2}, wt.removeAll(10))
	require.Nil(t, wt.removeAll(10))
	require.Equal(t, 1, len(wt.observers))

	require.True(t, wt.remove(20, s3))
	require.Equal(t, 0, len(wt.observers))
}
