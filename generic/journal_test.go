package generic_test

import (
	"context"
	"testing"

	"github.com/espace-elite/rental-engine/generic"
	"github.com/espace-elite/rental-engine/generic/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, stream string, at generic.TimePoint, key string) generic.Entry {
	return generic.Entry{
		ID:             generic.EntryID(id),
		StreamID:       stream,
		Kind:           generic.EntryGapFilled,
		EffectiveAt:    at,
		Amount:         generic.NewAmountFromInt(10, generic.CurrencyTND),
		IdempotencyKey: key,
	}
}

func TestJournal_EntriesAreOrderedByEffectiveDate(t *testing.T) {
	ctx := context.Background()
	j := generic.NewJournal(store.NewMemory())

	require.NoError(t, j.Append(ctx, entry("e2", "r1", date(2025, 2, 1), "k2")))
	require.NoError(t, j.Append(ctx, entry("e1", "r1", date(2025, 1, 1), "k1")))
	require.NoError(t, j.Append(ctx, entry("e3", "r2", date(2025, 1, 15), "k3")))

	es, err := j.Entries(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, es, 2)
	assert.Equal(t, generic.EntryID("e1"), es[0].ID)
	assert.Equal(t, generic.EntryID("e2"), es[1].ID)
}

func TestJournal_DuplicateIdempotencyKeyRejected(t *testing.T) {
	ctx := context.Background()
	j := generic.NewJournal(store.NewMemory())

	require.NoError(t, j.Append(ctx, entry("e1", "r1", date(2025, 1, 1), "fill-r1-2025-01-01")))
	err := j.Append(ctx, entry("e2", "r1", date(2025, 1, 1), "fill-r1-2025-01-01"))
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	es, err := j.Entries(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, es, 1)
}

func TestJournal_BatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	j := generic.NewJournal(store.NewMemory())

	err := j.AppendBatch(ctx, []generic.Entry{
		entry("e1", "r1", date(2025, 1, 1), "same"),
		entry("e2", "r1", date(2025, 1, 2), "same"),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	es, err := j.Entries(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, es)
}

func TestJournal_EntriesInRange(t *testing.T) {
	ctx := context.Background()
	j := generic.NewJournal(store.NewMemory())

	require.NoError(t, j.AppendBatch(ctx, []generic.Entry{
		entry("e1", "r1", date(2025, 1, 1), ""),
		entry("e2", "r1", date(2025, 2, 1), ""),
		entry("e3", "r1", date(2025, 3, 1), ""),
	}))

	es, err := j.EntriesInRange(ctx, "r1", date(2025, 1, 15), date(2025, 3, 1))
	require.NoError(t, err)
	require.Len(t, es, 2)
	assert.Equal(t, generic.EntryID("e2"), es[0].ID)
	assert.Equal(t, generic.EntryID("e3"), es[1].ID)
}
