package mapping

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/fault"
	"github.com/roach88/reconcile/internal/ir"
)

func newCEL(t *testing.T) *CELEvaluator {
	t.Helper()
	ev, err := NewCELEvaluator()
	require.NoError(t, err)
	return ev
}

func testVars() Variables {
	return Variables{
		VarFocus: ir.IRObject{
			"oid":        ir.IRString("user-1"),
			"given_name": ir.IRString("Ada"),
			"family":     ir.IRString("Lovelace"),
			"level":      ir.IRInt(3),
			"roles":      ir.IRArray{ir.NewIRRef("role-1", "RoleType")},
		},
		VarProjection: ir.IRObject{
			"attributes": ir.IRObject{"uid": ir.IRString("alovelace")},
		},
		VarConstruction: ir.IRObject{"kind": ir.IRString("account"), "intent": ir.IRString("default")},
		VarAttributes:   ir.IRObject{"uid": ir.IRArray{ir.IRString("alovelace")}},
	}
}

// =============================================================================
// Result conversion
// =============================================================================

func TestCEL_Scalars(t *testing.T) {
	ev := newCEL(t)
	ctx := context.Background()

	tests := []struct {
		expr string
		want ir.IRValue
	}{
		{`focus.given_name + " " + focus.family`, ir.IRString("Ada Lovelace")},
		{`focus.level * 2`, ir.IRInt(6)},
		{`focus.level > 2`, ir.IRBool(true)},
		{`null`, ir.IRNull{}},
		{`projection.attributes.uid`, ir.IRString("alovelace")},
		{`construction.kind`, ir.IRString("account")},
		{`attributes.uid[0] + "@example.com"`, ir.IRString("alovelace@example.com")},
		{`3u`, ir.IRInt(3)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ev.Evaluate(ctx, tt.expr, testVars())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCEL_Collections(t *testing.T) {
	ev := newCEL(t)

	got, err := ev.Evaluate(context.Background(), `["a", "b"]`, testVars())
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRString("a"), ir.IRString("b")}, got)

	got, err = ev.Evaluate(context.Background(), `{"cn": focus.given_name}`, testVars())
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"cn": ir.IRString("Ada")}, got)
}

func TestCEL_ReferencesSurvive(t *testing.T) {
	ev := newCEL(t)

	got, err := ev.Evaluate(context.Background(), `focus.roles`, testVars())
	require.NoError(t, err)

	arr, ok := got.(ir.IRArray)
	require.True(t, ok)
	require.Len(t, arr, 1)
	ref, ok := arr[0].(*ir.IRRef)
	require.True(t, ok, "reference object form converts back to *IRRef")
	assert.Equal(t, "role-1", ref.OID)
	assert.Equal(t, "RoleType", ref.TargetType)
}

func TestCEL_FloatRejected(t *testing.T) {
	ev := newCEL(t)

	_, err := ev.Evaluate(context.Background(), `1.5`, testVars())
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindExpressionEvaluation))
}

// =============================================================================
// Errors
// =============================================================================

func TestCEL_CompileErrorIsConfiguration(t *testing.T) {
	ev := newCEL(t)

	err := ev.Compile(`focus.given_name +`)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindConfiguration))

	_, err = ev.Evaluate(context.Background(), `unknown_var`, testVars())
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindConfiguration))
}

func TestCEL_RuntimeErrorIsExpressionEvaluation(t *testing.T) {
	ev := newCEL(t)

	_, err := ev.Evaluate(context.Background(), `focus.missing_key`, testVars())
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindExpressionEvaluation))
	assert.False(t, fault.IsTemporary(err))
}

func TestCEL_UnboundProjectionIsNull(t *testing.T) {
	ev := newCEL(t)

	got, err := ev.Evaluate(context.Background(), `projection == null`, Variables{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRBool(true), got)
}

// =============================================================================
// Program cache
// =============================================================================

func TestCEL_CachesPrograms(t *testing.T) {
	ev := newCEL(t)
	require.NoError(t, ev.Compile(`focus.level`))
	require.NoError(t, ev.Compile(`focus.level`))

	ev.mu.RLock()
	defer ev.mu.RUnlock()
	assert.Len(t, ev.programs, 1)
}

func TestCEL_ConcurrentEvaluate(t *testing.T) {
	ev := newCEL(t)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ev.Evaluate(context.Background(), `focus.level + 1`, testVars())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
