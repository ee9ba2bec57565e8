package composite

import (
	"math"

	"github.com/kilianp07/smartcharging/core/model"
)

// DefaultCoalesceTolerance is the length in seconds under which a stretch
// without any limit is folded into the period that follows it.
const DefaultCoalesceTolerance = 9

type emitOptions struct {
	unit             model.ChargingRateUnit
	defaultLimit     float64
	tolerance        int
	includeDischarge bool
}

// emit renders a combined timeline as a composite schedule. Gaps take the
// default limit and equal neighbours are merged. A gap shorter than the
// tolerance is taken over by the next period, so a rounding sliver at the
// window start never pins the default limit to offset 0. Periods carrying a
// limit are never absorbed.
func emit(t timeline, w Window, evseID int, opts emitOptions) model.CompositeSchedule {
	periods := make([]model.ChargingSchedulePeriod, 0, len(t))
	lastGap := false
	for _, s := range t {
		p := renderPeriod(s, opts)
		n := len(periods)
		switch {
		case n > 0 && lastGap && p.StartPeriod-periods[n-1].StartPeriod <= opts.tolerance:
			p.StartPeriod = periods[n-1].StartPeriod
			periods[n-1] = p
			if n > 1 && samePeriod(periods[n-2], p) {
				periods = periods[:n-1]
			}
			lastGap = s.unbounded()
		case n > 0 && samePeriod(periods[n-1], p):
		default:
			periods = append(periods, p)
			lastGap = s.unbounded()
		}
	}
	if len(periods) == 0 {
		periods = append(periods, renderPeriod(gap(0), opts))
	}
	periods[0].StartPeriod = 0
	return model.CompositeSchedule{
		EvseID:           evseID,
		Duration:         w.Seconds(),
		ScheduleStart:    w.Start,
		ChargingRateUnit: opts.unit,
		Periods:          periods,
	}
}

func renderPeriod(s segment, opts emitOptions) model.ChargingSchedulePeriod {
	limit := s.limit
	if !limit[0].ok {
		limit[0] = some(opts.defaultLimit)
	}
	discharge, setpoint := s.discharge, s.setpoint
	if s.numberPhases == 1 {
		limit = collapse(limit, math.Min)
		discharge = collapse(discharge, math.Max)
		setpoint = collapse(setpoint, math.Min)
	}
	p := model.ChargingSchedulePeriod{
		StartPeriod: s.offset,
		Limit:       limit[0].ptr(),
		LimitL2:     limit[1].ptr(),
		LimitL3:     limit[2].ptr(),
		Setpoint:    setpoint[0].ptr(),
		SetpointL2:  setpoint[1].ptr(),
		SetpointL3:  setpoint[2].ptr(),
	}
	if opts.includeDischarge {
		p.DischargeLimit = discharge[0].ptr()
		p.DischargeLimitL2 = discharge[1].ptr()
		p.DischargeLimitL3 = discharge[2].ptr()
	}
	if s.numberPhases > 0 {
		p.NumberPhases = model.Int(s.numberPhases)
		if s.numberPhases == 1 && s.phaseToUse > 0 {
			p.PhaseToUse = model.Int(s.phaseToUse)
		}
	}
	return p
}

// collapse folds L2 and L3 into L1 for single-phase periods.
func collapse(p phases, f func(x, y float64) float64) phases {
	out := phases{p[0]}
	for _, v := range p[1:] {
		switch {
		case !v.ok:
		case !out[0].ok:
			out[0] = v
		default:
			out[0] = some(f(out[0].v, v.v))
		}
	}
	return out
}

func samePeriod(a, b model.ChargingSchedulePeriod) bool {
	return optional(a.Limit).equal(optional(b.Limit)) &&
		optional(a.LimitL2).equal(optional(b.LimitL2)) &&
		optional(a.LimitL3).equal(optional(b.LimitL3)) &&
		optional(a.DischargeLimit).equal(optional(b.DischargeLimit)) &&
		optional(a.DischargeLimitL2).equal(optional(b.DischargeLimitL2)) &&
		optional(a.DischargeLimitL3).equal(optional(b.DischargeLimitL3)) &&
		optional(a.Setpoint).equal(optional(b.Setpoint)) &&
		samePhases(a.NumberPhases, b.NumberPhases)
}

func samePhases(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
