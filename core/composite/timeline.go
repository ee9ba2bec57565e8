package composite

import (
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/kilianp07/smartcharging/core/model"
)

// limitTolerance absorbs float noise from unit conversion when comparing
// limits.
const limitTolerance = 1e-3

// value is an optional number.
type value struct {
	v  float64
	ok bool
}

func some(v float64) value { return value{v: v, ok: true} }

func optional(p *float64) value {
	if p == nil {
		return value{}
	}
	return some(*p)
}

func (a value) equal(b value) bool {
	if a.ok != b.ok {
		return false
	}
	return !a.ok || scalar.EqualWithinAbs(a.v, b.v, limitTolerance)
}

func (a value) ptr() *float64 {
	if !a.ok {
		return nil
	}
	v := a.v
	return &v
}

// phases holds a value for L1, L2 and L3. When only L1 is set the value
// applies to the connection as a whole.
type phases [3]value

func phasesOf(l1, l2, l3 *float64) phases {
	return phases{optional(l1), optional(l2), optional(l3)}
}

func (p phases) set() bool     { return p[0].ok || p[1].ok || p[2].ok }
func (p phases) perPhase() bool { return p[1].ok || p[2].ok }

func (p phases) equal(o phases) bool {
	return p[0].equal(o[0]) && p[1].equal(o[1]) && p[2].equal(o[2])
}

func (p phases) scale(f float64) phases {
	for i := range p {
		if p[i].ok {
			p[i].v *= f
		}
	}
	return p
}

// segment is one step of a timeline, in effect from offset (seconds from the
// window start) until the next segment. Values are in the requested unit.
type segment struct {
	offset       int
	limit        phases
	discharge    phases
	setpoint     phases
	numberPhases int
	phaseToUse   int
	mode         model.OperationMode
	purpose      model.ProfilePurpose
	profileID    int
}

// unbounded reports whether no profile constrains the segment.
func (s segment) unbounded() bool {
	return !s.limit.set() && !s.discharge.set() && !s.setpoint.set()
}

func (s segment) empty() bool {
	return !s.limit.set() && !s.discharge.set() && !s.setpoint.set()
}

func (s segment) sameValues(o segment) bool {
	return s.limit.equal(o.limit) && s.discharge.equal(o.discharge) &&
		s.setpoint.equal(o.setpoint) && s.numberPhases == o.numberPhases
}

// gap is a segment without any limit.
func gap(offset int) segment { return segment{offset: offset} }

// timeline covers a whole window: the first offset is 0 and offsets ascend.
type timeline []segment

// at returns the segment in effect at offset.
func (t timeline) at(offset int) segment {
	cur := gap(offset)
	for _, s := range t {
		if s.offset > offset {
			break
		}
		cur = s
	}
	return cur
}

// converter turns projected entries into segments of the requested unit.
type converter struct {
	unit          model.ChargingRateUnit
	voltage       float64
	phaseType     model.PhaseType
	acSwitching   bool
	defaultPhases int
	defaultAmps   float64
	defaultWatts  float64
}

func (c converter) defaultLimit(u model.ChargingRateUnit) float64 {
	if u == model.UnitWatts {
		return c.defaultWatts
	}
	return c.defaultAmps
}

// phaseCount resolves the phase count of a period: its own value, 1 for DC,
// the configured default when AC phase switching is supported, 3 otherwise.
func (c converter) phaseCount(n *int) int {
	switch {
	case n != nil:
		return *n
	case c.phaseType == model.PhaseDC:
		return 1
	case c.acSwitching && c.defaultPhases > 0:
		return c.defaultPhases
	default:
		return 3
	}
}

// convert expresses p, given in unit from, in the requested unit. Per-phase
// values scale by the voltage only, totals by voltage times phases.
func (c converter) convert(p phases, from model.ChargingRateUnit, n int) phases {
	if from == c.unit || c.voltage <= 0 {
		return p
	}
	f := c.voltage
	if !p.perPhase() {
		f *= float64(n)
	}
	if c.unit == model.UnitAmps {
		return p.scale(1 / f)
	}
	return p.scale(f)
}

func (c converter) segment(e PeriodEntry, offset int) segment {
	per := e.Period
	n := c.phaseCount(per.NumberPhases)
	limit := phasesOf(per.Limit, per.LimitL2, per.LimitL3)
	if !limit[0].ok && per.OperationMode.IsChargingOnly() {
		limit[0] = some(c.defaultLimit(e.Unit))
	}
	s := segment{
		offset:       offset,
		limit:        c.convert(limit, e.Unit, n),
		discharge:    c.convert(phasesOf(per.DischargeLimit, per.DischargeLimitL2, per.DischargeLimitL3), e.Unit, n),
		setpoint:     c.convert(phasesOf(per.Setpoint, per.SetpointL2, per.SetpointL3), e.Unit, n),
		numberPhases: n,
		mode:         per.OperationMode,
		purpose:      e.Purpose,
		profileID:    e.ProfileID,
	}
	if per.PhaseToUse != nil {
		s.phaseToUse = *per.PhaseToUse
	}
	return s
}

// timelineOf lays composed entries on the window, filling uncovered time with
// gaps.
func timelineOf(entries []PeriodEntry, w Window, c converter) timeline {
	out := make(timeline, 0, 2*len(entries)+1)
	cur := 0
	for _, e := range entries {
		start, end := w.offset(e.Start), w.offset(e.End)
		if start > cur {
			out = append(out, gap(cur))
		}
		out = append(out, c.segment(e, start))
		cur = end
	}
	if cur < w.Seconds() || len(out) == 0 {
		out = append(out, gap(cur))
	}
	return out
}

// zip walks several timelines over the union of their offsets and combines
// the segments in effect at each one. Consecutive equal results are merged.
func zip(lines []timeline, pick func([]segment) segment) timeline {
	if len(lines) == 0 {
		return timeline{gap(0)}
	}
	idx := make([]int, len(lines))
	cur := make([]segment, len(lines))
	var out timeline
	offset := 0
	for {
		for i, l := range lines {
			for idx[i]+1 < len(l) && l[idx[i]+1].offset <= offset {
				idx[i]++
			}
			if len(l) == 0 || l[idx[i]].offset > offset {
				cur[i] = gap(offset)
			} else {
				cur[i] = l[idx[i]]
			}
		}
		s := pick(cur)
		s.offset = offset
		if len(out) == 0 || !out[len(out)-1].sameValues(s) {
			out = append(out, s)
		}

		next := -1
		for i, l := range lines {
			if idx[i]+1 < len(l) {
				if o := l[idx[i]+1].offset; next < 0 || o < next {
					next = o
				}
			}
		}
		if next < 0 {
			return out
		}
		offset = next
	}
}

// filter blanks the segments that do not satisfy keep.
func (t timeline) filter(keep func(segment) bool) timeline {
	out := make(timeline, len(t))
	for i, s := range t {
		if s.empty() || keep(s) {
			out[i] = s
		} else {
			out[i] = gap(s.offset)
		}
	}
	return out
}
