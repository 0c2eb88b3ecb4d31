package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/nspcc-dev/arcgo/pkg/arc"
	"github.com/nspcc-dev/arcgo/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRunner(t *testing.T) *Runner {
	return NewRunner(config.ManagerConfiguration{TombstoneCacheSize: 16}, zaptest.NewLogger(t))
}

func runString(t *testing.T, src string) (*Report, error) {
	s, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	return newTestRunner(t).Run(s)
}

func TestBuiltins(t *testing.T) {
	require.Equal(t, []string{"scoped-resource", "strong-cycle", "unowned-department", "weak-colleague"}, Builtins())

	testCases := map[string]struct {
		finalized []string
		leaked    []string
		faults    int
	}{
		"strong-cycle":       {leaked: []string{"alice", "bob"}},
		"weak-colleague":     {finalized: []string{"alice", "bob"}},
		"unowned-department": {finalized: []string{"sales", "tim"}, faults: 1},
		"scoped-resource":    {finalized: []string{"file", "buffer"}},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			s, err := Builtin(name)
			require.NoError(t, err)
			require.Equal(t, name, s.Name)
			require.NotEmpty(t, s.Description)

			rep, err := newTestRunner(t).Run(s)
			require.NoError(t, err)
			require.Equal(t, name, rep.Name)
			require.NotEqual(t, uuid.Nil, rep.RunID)
			require.Equal(t, len(s.Steps), rep.Steps)
			require.Equal(t, tc.finalized, rep.Finalized)
			require.Equal(t, len(tc.leaked), len(rep.Leaked))
			if len(tc.leaked) != 0 {
				require.Equal(t, tc.leaked, rep.Leaked)
			}
			require.Equal(t, tc.faults, rep.Faults)
			require.Equal(t, uint64(tc.faults), rep.Stats.Faults)
			require.Equal(t, uint64(len(tc.finalized)), rep.Stats.Finalized)
			require.Equal(t, len(tc.leaked), rep.Stats.Live)
		})
	}
}

func TestBuiltinUnknown(t *testing.T) {
	_, err := Builtin("no-such-thing")
	require.ErrorIs(t, err, ErrUnknownBuiltin)
}

func TestLoadInvalid(t *testing.T) {
	testCases := map[string]string{
		"unknown field": "name: x\nsteps:\n  - {op: alloc, object: a, color: red}\n",
		"no name":       "steps:\n  - {op: alloc, object: a}\n",
		"unknown op":    "name: x\nsteps:\n  - {op: collect}\n",
		"no object":     "name: x\nsteps:\n  - {op: alloc}\n",
		"no slot":       "name: x\nsteps:\n  - {op: release}\n",
		"field owner":   "name: x\nsteps:\n  - {op: field, slot: f}\n",
		"no target":     "name: x\nsteps:\n  - {op: assign, slot: s}\n",
		"hold target":   "name: x\nsteps:\n  - {op: hold}\n",
		"bad kind":      "name: x\nsteps:\n  - {op: slot, slot: s, kind: shared}\n",
		"not yaml":      "name: [x\n",
	}
	for name, src := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(src))
			require.ErrorIs(t, err, ErrInvalidScenario)
		})
	}
}

func TestLoadFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)

	name := filepath.Join(t.TempDir(), "s.yml")
	require.NoError(t, os.WriteFile(name, []byte(`name: single
steps:
  - {op: alloc, object: a}
  - {op: slot, slot: s, target: a}
  - {op: release, slot: s}
  - op: check
    expect:
      finalized: [a]
`), 0o644))
	s, err := LoadFile(name)
	require.NoError(t, err)
	require.Equal(t, "single", s.Name)
	require.Equal(t, 4, len(s.Steps))
	require.Equal(t, arc.Strong, s.Steps[1].Kind)

	rep, err := newTestRunner(t).Run(s)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, rep.Finalized)
}

func TestRunFailures(t *testing.T) {
	testCases := map[string]struct {
		src   string
		err   error
		steps int
	}{
		"alive expectation": {
			src: `name: x
steps:
  - {op: alloc, object: a}
  - {op: slot, slot: s, target: a}
  - {op: release, slot: s}
  - {op: check, expect: {alive: [a]}}
`,
			err:   ErrExpectation,
			steps: 3,
		},
		"unexpected fault": {
			src: `name: x
steps:
  - {op: alloc, object: a}
  - {op: alloc, object: b}
  - {op: slot, slot: s, target: a}
  - {op: field, object: b, slot: b.a, kind: unowned, target: a}
  - {op: release, slot: s}
  - {op: access, slot: b.a}
`,
			err:   arc.ErrUseAfterFree,
			steps: 5,
		},
		"missing fault": {
			src: `name: x
steps:
  - {op: alloc, object: a}
  - {op: slot, slot: s, kind: unowned, target: a}
  - {op: access, slot: s, expect: {fault: true}}
`,
			err:   ErrExpectation,
			steps: 2,
		},
		"unknown object": {
			src:   "name: x\nsteps:\n  - {op: slot, slot: s, target: ghost}\n",
			err:   ErrUnknownObject,
			steps: 0,
		},
		"unknown slot": {
			src:   "name: x\nsteps:\n  - {op: release, slot: s}\n",
			err:   ErrUnknownSlot,
			steps: 0,
		},
		"duplicate object": {
			src:   "name: x\nsteps:\n  - {op: alloc, object: a}\n  - {op: alloc, object: a}\n",
			err:   ErrDuplicate,
			steps: 1,
		},
		"strong to finalized": {
			src: `name: x
steps:
  - {op: alloc, object: a}
  - {op: slot, slot: s, target: a}
  - {op: release, slot: s}
  - {op: assign, slot: s, target: a}
`,
			err:   arc.ErrInvalidTarget,
			steps: 3,
		},
		"exit without scope": {
			src:   "name: x\nsteps:\n  - {op: exit}\n",
			err:   ErrNoScope,
			steps: 0,
		},
		"wrong order": {
			src: `name: x
steps:
  - {op: alloc, object: a}
  - {op: alloc, object: b}
  - {op: slot, slot: sa, target: a}
  - {op: slot, slot: sb, target: b}
  - {op: release, slot: sb}
  - {op: release, slot: sa}
  - {op: check, expect: {order: [a, b]}}
`,
			err:   ErrExpectation,
			steps: 6,
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			rep, err := runString(t, tc.src)
			require.ErrorIs(t, err, tc.err)
			require.NotNil(t, rep)
			require.Equal(t, tc.steps, rep.Steps)
		})
	}
}

func TestRunClosesScopes(t *testing.T) {
	rep, err := runString(t, `name: open-scope
steps:
  - {op: alloc, object: a}
  - op: enter
  - {op: hold, slot: h, target: a}
  - {op: read, slot: h, target: a}
`)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, rep.Finalized)
	require.Equal(t, 0, len(rep.Leaked))
}

func TestRunReportsLeaks(t *testing.T) {
	rep, err := runString(t, `name: never-held
steps:
  - {op: alloc, object: a}
  - {op: alloc, object: b}
  - {op: slot, slot: s, target: b}
  - {op: check, expect: {leaked: [a], alive: [a, b]}}
`)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, rep.Leaked)
	require.Equal(t, 2, rep.Stats.Live)
}

func TestSession(t *testing.T) {
	m, err := arc.New(config.ManagerConfiguration{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	s := NewSession(m, nil)
	require.Equal(t, m, s.Manager())

	require.NoError(t, s.Exec(Step{Op: OpAlloc, Object: "a", Label: "A"}))
	require.NoError(t, s.Exec(Step{Op: OpEnter}))
	require.NoError(t, s.Exec(Step{Op: OpHold, Slot: "h", Target: "a"}))
	require.ErrorIs(t, s.Exec(Step{Op: OpHold, Slot: "h", Target: "a"}), ErrDuplicate)

	id, err := s.Object("a")
	require.NoError(t, err)
	require.Equal(t, "a", s.NameOf(id))
	h, err := s.Slot("h")
	require.NoError(t, err)
	require.Equal(t, id, m.Read(h))

	require.NoError(t, s.Close())
	require.Equal(t, []string{"a"}, s.Finalized())
	require.ErrorIs(t, s.Exec(Step{Op: OpExit}), ErrNoScope)
	require.Equal(t, "", s.NameOf(arc.Nil))
}

func TestRunDropsLiveObjects(t *testing.T) {
	live := func() float64 {
		mfs, err := prometheus.DefaultGatherer.Gather()
		require.NoError(t, err)
		for _, mf := range mfs {
			if mf.GetName() == "arcgo_live_objects" {
				return mf.GetMetric()[0].GetGauge().GetValue()
			}
		}
		return 0
	}
	before := live()
	s, err := Builtin("strong-cycle")
	require.NoError(t, err)
	rep, err := newTestRunner(t).Run(s)
	require.NoError(t, err)
	require.Equal(t, 2, len(rep.Leaked))
	require.Equal(t, before, live())
}
