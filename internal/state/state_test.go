package state

import (
	"testing"

	"github.com/marnanel/mex/internal/value"
	"github.com/stretchr/testify/require"
)

func TestDefineAndLookup(t *testing.T) {
	d := New()
	c := &Control{Kind: KindPrimitive, Name: "relax"}
	d.Define(`\relax`, c, false)
	require.Same(t, c, d.Lookup(`\relax`))
	require.Nil(t, d.Lookup(`\undefined`))
}

func TestGroupRestoresLocalCount(t *testing.T) {
	d := New()
	d.SetCount(0, 1, false)
	d.BeginGroup(Ordinary)
	d.SetCount(0, 2, false)
	require.Equal(t, int64(2), d.Registers.Count[0])
	require.NoError(t, d.EndGroup())
	require.Equal(t, int64(1), d.Registers.Count[0])
}

func TestGlobalAssignmentSurvivesGroupClose(t *testing.T) {
	d := New()
	d.SetCount(0, 1, false)
	d.BeginGroup(Ordinary)
	d.SetCount(0, 2, true)
	require.NoError(t, d.EndGroup())
	require.Equal(t, int64(2), d.Registers.Count[0])
}

func TestGlobalAssignmentPurgesPendingLocalRestores(t *testing.T) {
	// Nested groups each locally set count 0; a \global inside the inner
	// group must survive both closes, not be overwritten by the outer
	// group's stale restore-to-1 entry.
	d := New()
	d.SetCount(0, 1, false)
	d.BeginGroup(Ordinary)
	d.SetCount(0, 2, false)
	d.BeginGroup(Ordinary)
	d.SetCount(0, 99, true)
	require.NoError(t, d.EndGroup())
	require.Equal(t, int64(99), d.Registers.Count[0])
	require.NoError(t, d.EndGroup())
	require.Equal(t, int64(99), d.Registers.Count[0])
}

func TestEndGroupWithNoOpenGroupErrors(t *testing.T) {
	d := New()
	require.Error(t, d.EndGroup())
}

func TestEphemeralGroupHandsRestoresToParent(t *testing.T) {
	d := New()
	d.BeginGroup(Ordinary)
	d.SetCount(5, 1, false)
	d.BeginGroup(Ephemeral)
	d.SetCount(5, 2, false)
	require.NoError(t, d.EndGroup()) // closes the ephemeral group
	require.Equal(t, int64(2), d.Registers.Count[5])
	require.NoError(t, d.EndGroup()) // closes the ordinary group, restoring both
	require.Equal(t, int64(0), d.Registers.Count[5])
}

func TestOnlyModeGroupRestoresModeButDelegatesRest(t *testing.T) {
	d := New()
	d.BeginGroup(Ordinary)
	d.SetCount(9, 1, false)
	d.BeginGroup(OnlyMode)
	d.SetMode(Horizontal, false)
	d.SetCount(9, 2, false)
	require.NoError(t, d.EndGroup()) // only-mode close: restores Mode, delegates count
	require.Equal(t, Vertical, d.Mode)
	require.Equal(t, int64(2), d.Registers.Count[9])
	require.NoError(t, d.EndGroup())
	require.Equal(t, int64(0), d.Registers.Count[9])
}

func TestSetDimenSkipToksBoxRestore(t *testing.T) {
	d := New()
	d.BeginGroup(Ordinary)
	d.SetDimen(0, value.FromPt(10), false)
	d.SetSkip(0, value.Glue{Natural: value.FromPt(1)}, false)
	d.SetToks(0, nil, false)
	require.NoError(t, d.EndGroup())
	require.Equal(t, value.Zero, d.Registers.Dimen[0])
}

func TestResolveControlAsNumberForChardef(t *testing.T) {
	d := New()
	d.Define(`\x`, &Control{Kind: KindChardef, CharValue: 'A'}, false)
	n, ok, err := d.ResolveControlAsNumber("x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64('A'), n)
}

func TestResolveControlAsNumberForRegisterRef(t *testing.T) {
	d := New()
	d.SetCount(3, 42, false)
	d.Define(`\x`, &Control{Kind: KindRegisterRef, Block: BlockCount, Index: 3}, false)
	n, ok, err := d.ResolveControlAsNumber("x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), n)
}

func TestLetAliasResolveChain(t *testing.T) {
	d := New()
	relax := &Control{Kind: KindPrimitive, Name: "relax"}
	d.Define(`\relax`, relax, false)
	alias1 := &Control{Kind: KindLetAlias, AliasTarget: relax}
	alias2 := &Control{Kind: KindLetAlias, AliasTarget: alias1}
	require.Same(t, relax, alias2.Resolve())
}
