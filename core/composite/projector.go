package composite

import (
	"iter"
	"slices"
	"time"

	"github.com/kilianp07/smartcharging/core/model"
)

// Projector maps a profile's schedule onto a concrete window. Entries are
// disjoint, ascending and clipped to the window and to the profile validity.
type Projector interface {
	Project(p model.ChargingProfile, w Window, sessionStart *time.Time) []PeriodEntry
}

// ProjectorFor selects the projection strategy for the profile kind.
func ProjectorFor(p model.ChargingProfile) Projector {
	switch p.Kind {
	case model.KindRecurring:
		return recurringProjector{period: p.RecurrencyKind.Period()}
	case model.KindRelative:
		return relativeProjector{}
	default:
		return absoluteProjector{}
	}
}

// Project is a shorthand for ProjectorFor(p).Project.
func Project(p model.ChargingProfile, w Window, sessionStart *time.Time) []PeriodEntry {
	return ProjectorFor(p).Project(p, w, sessionStart)
}

// occurrence is one repetition of a schedule. next bounds its length when the
// schedule repeats.
type occurrence struct {
	start time.Time
	next  *time.Time
}

type absoluteProjector struct{}

func (absoluteProjector) Project(p model.ChargingProfile, w Window, session *time.Time) []PeriodEntry {
	s := p.Schedule()
	if s == nil {
		return nil
	}
	anchor := w.Start
	switch {
	case s.StartSchedule != nil:
		anchor = *s.StartSchedule
	case p.ValidFrom != nil:
		anchor = *p.ValidFrom
	}
	return expand(p, w, session, single(floorSecond(anchor)))
}

type recurringProjector struct {
	period time.Duration
}

func (r recurringProjector) Project(p model.ChargingProfile, w Window, session *time.Time) []PeriodEntry {
	s := p.Schedule()
	if s == nil || s.StartSchedule == nil {
		return nil
	}
	return expand(p, w, session, r.occurrences(floorSecond(*s.StartSchedule), w))
}

// occurrences yields the repetitions that may intersect w. The first one is
// located with modulo arithmetic so far-future windows cost nothing extra.
// Nothing is yielded before the anchor itself.
func (r recurringProjector) occurrences(anchor time.Time, w Window) iter.Seq[occurrence] {
	first := anchor
	if w.Start.After(anchor) {
		back := w.Start.Sub(anchor) % r.period
		first = w.Start.Add(-back)
	}
	return func(yield func(occurrence) bool) {
		for start := first; start.Before(w.End); start = start.Add(r.period) {
			next := start.Add(r.period)
			if !yield(occurrence{start: start, next: &next}) {
				return
			}
		}
	}
}

type relativeProjector struct{}

func (relativeProjector) Project(p model.ChargingProfile, w Window, session *time.Time) []PeriodEntry {
	if session == nil || p.Schedule() == nil {
		return nil
	}
	return expand(p, w, session, single(floorSecond(*session)))
}

func single(anchor time.Time) iter.Seq[occurrence] {
	return func(yield func(occurrence) bool) {
		yield(occurrence{start: anchor})
	}
}

// expand turns every (occurrence, period) pair into an entry. A period ends at
// the soonest of the next period, the schedule duration, the next occurrence
// and validTo.
func expand(p model.ChargingProfile, w Window, session *time.Time, occs iter.Seq[occurrence]) []PeriodEntry {
	s := p.Schedule()
	var out []PeriodEntry
	for occ := range occs {
		if !occ.start.Before(w.End) {
			break
		}
		for i, per := range s.Periods {
			length, bounded := 0, false
			bound := func(d int) {
				if !bounded || d < length {
					length, bounded = d, true
				}
			}
			if i+1 < len(s.Periods) {
				bound(s.Periods[i+1].StartPeriod)
			}
			if s.Duration != nil {
				bound(*s.Duration)
			}
			if occ.next != nil {
				bound(int(occ.next.Sub(occ.start) / time.Second))
			}
			if p.ValidTo != nil {
				bound(int(floorSecond(*p.ValidTo).Sub(occ.start) / time.Second))
			}
			start := occ.start.Add(time.Duration(per.StartPeriod) * time.Second)
			end := w.End
			if bounded {
				if limit := occ.start.Add(time.Duration(length) * time.Second); limit.Before(end) {
					end = limit
				}
			}
			start, end, ok := clip(p, w, session, start, end)
			if !ok {
				continue
			}
			out = append(out, PeriodEntry{
				Start:      start,
				End:        end,
				ProfileID:  p.ID,
				StackLevel: p.StackLevel,
				Purpose:    p.Purpose,
				Unit:       s.ChargingRateUnit,
				Period:     per,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b PeriodEntry) int { return a.Start.Compare(b.Start) })
	return out
}

// clip bounds [start, end) by validFrom, the session start for transaction
// profiles, and the window.
func clip(p model.ChargingProfile, w Window, session *time.Time, start, end time.Time) (time.Time, time.Time, bool) {
	if p.ValidFrom != nil {
		if vf := floorSecond(*p.ValidFrom); vf.After(start) {
			start = vf
		}
	}
	if p.Purpose == model.PurposeTx && session != nil {
		if ss := floorSecond(*session); ss.After(start) {
			start = ss
		}
	}
	if w.Start.After(start) {
		start = w.Start
	}
	if end.After(w.End) {
		end = w.End
	}
	return start, end, start.Before(end)
}
