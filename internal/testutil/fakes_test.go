package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/ir"
)

func TestCountingLoader(t *testing.T) {
	full := &ir.Shadow{OID: "sh-1", Attributes: ir.IRObject{"uid": ir.IRString("ada")}}
	l := NewCountingLoader(full)

	got, err := l.LoadFull(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "sh-1", got.OID)
	assert.NotSame(t, full, got)

	_, _ = l.LoadFull(context.Background(), "second")
	assert.Equal(t, 2, l.Calls())
	assert.Equal(t, []string{"first", "second"}, l.Reasons())

	boom := errors.New("connector down")
	_, err = l.FailWith(boom).LoadFull(context.Background(), "third")
	assert.ErrorIs(t, err, boom)
}

func TestCountingLookup(t *testing.T) {
	l := NewCountingLookup(map[string]string{"r1": "Engineers"})

	got, err := l.LookupNames(context.Background(), []string{"r1", "r2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"r1": "Engineers"}, got)
	assert.Equal(t, 1, l.Calls())
	assert.Equal(t, [][]string{{"r1", "r2"}}, l.Batches())
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSequentialRunIDs(t *testing.T) {
	g := NewSequentialRunIDs("")
	assert.Equal(t, "run-0001", g.Generate())
	assert.Equal(t, "run-0002", g.Generate())

	g = NewSequentialRunIDs("scenario")
	assert.Equal(t, "scenario-0001", g.Generate())
}

func TestSequentialRunIDs_ThreadSafe(t *testing.T) {
	g := NewSequentialRunIDs("t")
	const n = 50

	var wg sync.WaitGroup
	seen := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- g.Generate()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[string]bool)
	for id := range seen {
		require.False(t, unique[id], "duplicate id %s", id)
		unique[id] = true
	}
	assert.Len(t, unique, n)
}
