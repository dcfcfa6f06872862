package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/espace-elite/rental-engine/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

func closed(from, to generic.TimePoint) generic.Interval {
	return generic.MustInterval(from, to)
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNewInterval_RejectsEndBeforeStart(t *testing.T) {
	_, err := generic.NewInterval(date(2025, time.March, 2), date(2025, time.March, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrMalformedInterval))

	var mie *generic.MalformedIntervalError
	require.True(t, errors.As(err, &mie))
	assert.Equal(t, "end before start", mie.Reason)
}

func TestNewInterval_SingleDayIsValid(t *testing.T) {
	i, err := generic.NewInterval(date(2025, time.March, 1), date(2025, time.March, 1))
	require.NoError(t, err)

	d, err := i.DurationDays()
	require.NoError(t, err)
	assert.Equal(t, 1, d)
}

func TestValidate_MissingStart(t *testing.T) {
	err := generic.Interval{}.Validate()
	assert.ErrorIs(t, err, generic.ErrMalformedInterval)
}

// =============================================================================
// INTERSECT
// =============================================================================

func TestIntersect(t *testing.T) {
	tests := []struct {
		name   string
		a, b   generic.Interval
		want   generic.Interval
		wantOK bool
	}{
		{
			name:   "disjoint",
			a:      closed(date(2025, 1, 1), date(2025, 1, 10)),
			b:      closed(date(2025, 1, 11), date(2025, 1, 20)),
			wantOK: false,
		},
		{
			name:   "touching on one day",
			a:      closed(date(2025, 1, 1), date(2025, 1, 10)),
			b:      closed(date(2025, 1, 10), date(2025, 1, 20)),
			want:   closed(date(2025, 1, 10), date(2025, 1, 10)),
			wantOK: true,
		},
		{
			name:   "open end treated as unbounded",
			a:      generic.OpenInterval(date(2025, 1, 5)),
			b:      closed(date(2025, 1, 1), date(2025, 2, 1)),
			want:   closed(date(2025, 1, 5), date(2025, 2, 1)),
			wantOK: true,
		},
		{
			name:   "both open",
			a:      generic.OpenInterval(date(2025, 1, 5)),
			b:      generic.OpenInterval(date(2025, 3, 1)),
			want:   generic.OpenInterval(date(2025, 3, 1)),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := generic.Intersect(tt.a, tt.b)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
			}
		})
	}
}

// =============================================================================
// SUBTRACT
// =============================================================================

func TestSubtract_SplitsInTwo(t *testing.T) {
	a := closed(date(2025, 1, 1), date(2025, 1, 31))
	b := closed(date(2025, 1, 10), date(2025, 1, 19))

	out := generic.Subtract(a, b)
	require.Len(t, out, 2)
	assert.True(t, out[0].Equal(closed(date(2025, 1, 1), date(2025, 1, 9))))
	assert.True(t, out[1].Equal(closed(date(2025, 1, 20), date(2025, 1, 31))))
}

func TestSubtract_FullyCoveredLeavesNothing(t *testing.T) {
	a := closed(date(2025, 1, 10), date(2025, 1, 20))
	b := generic.OpenInterval(date(2025, 1, 1))

	assert.Empty(t, generic.Subtract(a, b))
}

func TestSubtract_OpenRemainderStaysOpen(t *testing.T) {
	a := generic.OpenInterval(date(2025, 1, 1))
	b := closed(date(2025, 1, 1), date(2025, 1, 31))

	out := generic.Subtract(a, b)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsOpenEnded())
	assert.True(t, out[0].Start.Equal(date(2025, 2, 1)))
}

func TestSubtract_DisjointReturnsOriginal(t *testing.T) {
	a := closed(date(2025, 1, 1), date(2025, 1, 31))
	b := closed(date(2025, 3, 1), date(2025, 3, 31))

	out := generic.Subtract(a, b)
	require.Len(t, out, 1)
	assert.True(t, out[0].Equal(a))
}

func TestSubtractAll(t *testing.T) {
	a := closed(date(2025, 1, 1), date(2025, 3, 31))
	out := generic.SubtractAll(a, []generic.Interval{
		closed(date(2025, 1, 1), date(2025, 1, 31)),
		closed(date(2025, 3, 1), date(2025, 3, 10)),
	})

	require.Len(t, out, 2)
	assert.True(t, out[0].Equal(closed(date(2025, 2, 1), date(2025, 2, 28))))
	assert.True(t, out[1].Equal(closed(date(2025, 3, 11), date(2025, 3, 31))))
}

// =============================================================================
// DURATION & CLAMP
// =============================================================================

func TestDurationDays_Inclusive(t *testing.T) {
	d, err := closed(date(2025, 1, 1), date(2025, 3, 31)).DurationDays()
	require.NoError(t, err)
	assert.Equal(t, 90, d)
}

func TestDurationDays_OpenEndedIsAnError(t *testing.T) {
	_, err := generic.OpenInterval(date(2025, 1, 1)).DurationDays()
	assert.ErrorIs(t, err, generic.ErrOpenEndedInterval)
}

func TestClampToToday(t *testing.T) {
	today := date(2025, 3, 15)

	open := generic.OpenInterval(date(2025, 1, 1)).ClampToToday(today)
	assert.True(t, open.Equal(closed(date(2025, 1, 1), today)))

	future := closed(date(2025, 1, 1), date(2025, 6, 30)).ClampToToday(today)
	assert.True(t, future.Equal(closed(date(2025, 1, 1), today)))

	past := closed(date(2025, 1, 1), date(2025, 2, 1))
	assert.True(t, past.ClampToToday(today).Equal(past))
}

func TestContains(t *testing.T) {
	i := closed(date(2025, 1, 1), date(2025, 1, 31))
	assert.True(t, i.Contains(date(2025, 1, 1)))
	assert.True(t, i.Contains(date(2025, 1, 31)))
	assert.False(t, i.Contains(date(2025, 2, 1)))

	assert.True(t, generic.OpenInterval(date(2025, 1, 1)).Contains(date(2030, 1, 1)))
	assert.True(t, generic.OpenInterval(date(2025, 1, 1)).ContainsInterval(i))
	assert.False(t, i.ContainsInterval(generic.OpenInterval(date(2025, 1, 5))))
}
