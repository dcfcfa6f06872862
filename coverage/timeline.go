/*
timeline.go - Merges rental, bonds and payment periods into coverage segments

PURPOSE:
  The timeline is an ordered, non-overlapping partition of the rental's
  display window. Each segment has one funding source: CNAM (a qualifying
  bond), DIRECT (a non-gap payment period) or NONE.

ALGORITHM:
  1. Cut points: the window start, the day after the window end, and each
     qualifying bond's / payment period's start and end+1 that fall inside.
  2. Every consecutive pair of cut points is a span with uniform coverage,
     classified by probing its first day.
  3. Adjacent spans with identical classification are merged.

  A span covered by both a bond and a direct period is CNAM, keeps the
  period id and is flagged DoubleFunded. Gap periods never make a span
  DIRECT; they only tag NONE spans with GapPeriodID.

DETERMINISM:
  When several bonds (or periods) cover the same day the one with the
  earliest start wins, then the smallest id. Rebuilding from the same input
  yields the same segments.
*/
package coverage

import (
	"sort"

	"github.com/espace-elite/rental-engine/generic"
)

type TimelineSegment struct {
	Interval        generic.Interval
	Source          CoverageSource
	BondID          BondID
	PaymentPeriodID PaymentPeriodID
	DoubleFunded    bool
	GapPeriodID     PaymentPeriodID
}

// DurationDays is the inclusive length of the segment. Segments are always closed.
func (s TimelineSegment) DurationDays() int {
	d, _ := s.Interval.DurationDays()
	return d
}

func (s TimelineSegment) sameFunding(o TimelineSegment) bool {
	return s.Source == o.Source &&
		s.BondID == o.BondID &&
		s.PaymentPeriodID == o.PaymentPeriodID &&
		s.DoubleFunded == o.DoubleFunded &&
		s.GapPeriodID == o.GapPeriodID
}

type Timeline struct {
	RentalID RentalID
	Window   generic.Interval
	Segments []TimelineSegment
}

// BySource returns the segments funded by src.
func (t Timeline) BySource(src CoverageSource) []TimelineSegment {
	var out []TimelineSegment
	for _, s := range t.Segments {
		if s.Source == src {
			out = append(out, s)
		}
	}
	return out
}

// DoubleFunded returns the CNAM segments also billed as direct payment.
func (t Timeline) DoubleFunded() []TimelineSegment {
	var out []TimelineSegment
	for _, s := range t.Segments {
		if s.DoubleFunded {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// BUILDER
// =============================================================================

// BuildTimeline validates the inputs and partitions the display window.
func BuildTimeline(rental RentalPeriod, bonds []CoverageBond, periods []PaymentPeriod, today generic.TimePoint) (Timeline, error) {
	if err := rental.Validate(); err != nil {
		return Timeline{}, err
	}
	for _, b := range bonds {
		if err := b.Validate(); err != nil {
			return Timeline{}, err
		}
	}
	if err := ValidatePaymentPeriods(periods); err != nil {
		return Timeline{}, err
	}

	tl := Timeline{RentalID: rental.ID}
	window, ok := rental.DisplayWindow(today)
	if !ok {
		return tl, nil
	}
	tl.Window = window

	qualifying := make([]CoverageBond, 0, len(bonds))
	for _, b := range bonds {
		if b.Qualifies() {
			qualifying = append(qualifying, b)
		}
	}
	sortBonds(qualifying)

	ordered := append([]PaymentPeriod(nil), periods...)
	sortPeriods(ordered)

	boundaries := []generic.Interval{window}
	for _, b := range qualifying {
		if w, ok := b.coverage(); ok {
			boundaries = append(boundaries, w)
		}
	}
	for _, p := range ordered {
		boundaries = append(boundaries, p.Interval)
	}
	cuts := cutPoints(window, boundaries)

	for i := 0; i+1 < len(cuts); i++ {
		span := generic.Interval{Start: cuts[i], End: cuts[i+1].AddDays(-1).Ptr()}
		seg := classify(span, qualifying, ordered)
		if n := len(tl.Segments); n > 0 && tl.Segments[n-1].sameFunding(seg) {
			tl.Segments[n-1].Interval.End = span.End
			continue
		}
		tl.Segments = append(tl.Segments, seg)
	}
	return tl, nil
}

// cutPoints returns the sorted, de-duplicated starts and ends+1 that fall in
// [window.Start, window.End+1]. window must be closed.
func cutPoints(window generic.Interval, intervals []generic.Interval) []generic.TimePoint {
	stop := window.End.AddDays(1)
	inRange := func(t generic.TimePoint) bool {
		return t.AfterOrEqual(window.Start) && t.BeforeOrEqual(stop)
	}

	// Keyed by calendar day so hand-built TimePoints with a time of day collapse.
	set := map[string]generic.TimePoint{}
	add := func(t generic.TimePoint) {
		if inRange(t) {
			set[t.String()] = t.AddDays(0)
		}
	}
	add(window.Start)
	add(stop)
	for _, iv := range intervals {
		add(iv.Start)
		if iv.End != nil {
			add(iv.End.AddDays(1))
		}
	}

	cuts := make([]generic.TimePoint, 0, len(set))
	for _, t := range set {
		cuts = append(cuts, t)
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Before(cuts[j]) })
	return cuts
}

// classify assigns the funding of span by probing its first day. Inputs are
// pre-sorted so the first match is the tie-break winner.
func classify(span generic.Interval, bonds []CoverageBond, periods []PaymentPeriod) TimelineSegment {
	day := span.Start
	seg := TimelineSegment{Interval: span, Source: SourceNone}

	for _, b := range bonds {
		if w, ok := b.coverage(); ok && w.Contains(day) {
			seg.Source = SourceCNAM
			seg.BondID = b.ID
			break
		}
	}

	for _, p := range periods {
		if !p.Interval.Contains(day) {
			continue
		}
		if p.IsGapPeriod {
			if seg.GapPeriodID == "" {
				seg.GapPeriodID = p.ID
			}
			continue
		}
		if seg.PaymentPeriodID == "" {
			seg.PaymentPeriodID = p.ID
		}
	}

	switch seg.Source {
	case SourceCNAM:
		seg.DoubleFunded = seg.PaymentPeriodID != ""
		seg.GapPeriodID = ""
	case SourceNone:
		if seg.PaymentPeriodID != "" {
			seg.Source = SourceDirect
			seg.GapPeriodID = ""
		}
	case SourceDirect:
	}
	return seg
}
