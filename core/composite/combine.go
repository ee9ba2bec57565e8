package composite

import (
	"math"

	"github.com/kilianp07/smartcharging/core/model"
)

// purposeTimelines holds the composed timeline of every purpose group present
// for one outlet.
type purposeTimelines map[model.ProfilePurpose]timeline

func (p purposeTimelines) get(purpose model.ProfilePurpose) timeline {
	if t, ok := p[purpose]; ok {
		return t
	}
	return timeline{gap(0)}
}

// combineOptions are the caller flags that shape purpose combination.
type combineOptions struct {
	excludeExternalConstraints bool
	// intent enables the transaction layer (TxProfile, TxDefaultProfile and
	// their overrides). It is set when a session is active or simulated.
	intent bool
	unit   model.ChargingRateUnit
}

// combineOutlet reduces an outlet's purpose timelines to one timeline. The
// ChargingStationMaxProfile ceiling is applied by the caller.
//
// The transaction layer is TxProfile over TxDefaultProfile, replaced where
// PriorityCharging runs in ChargingOnly mode and where LocalGeneration is
// present. PriorityCharging in any other mode is an ordinary ceiling.
// ExternalConstraints is a ceiling over everything.
func combineOutlet(groups purposeTimelines, opts combineOptions) timeline {
	var ceilings []timeline
	if !opts.excludeExternalConstraints {
		ceilings = append(ceilings, groups.get(model.PurposeExternalConstraints))
	}
	if opts.intent {
		intent := zip([]timeline{groups.get(model.PurposeTx), groups.get(model.PurposeTxDefault)}, preferFirst)
		priority := groups.get(model.PurposePriorityCharging)
		intent = zip([]timeline{
			priority.filter(func(s segment) bool { return s.mode.IsChargingOnly() }),
			intent,
		}, preferFirst)
		intent = zip([]timeline{groups.get(model.PurposeLocalGeneration), intent}, preferFirst)
		ceilings = append(ceilings, intent,
			priority.filter(func(s segment) bool { return !s.mode.IsChargingOnly() }))
	}
	return zip(ceilings, lowest(opts.unit))
}

// preferFirst takes the first segment carrying any value.
func preferFirst(segs []segment) segment {
	for _, s := range segs {
		if !s.empty() {
			return s
		}
	}
	return gap(0)
}

// lowest combines ceilings: per phase the minimum limit, the maximum (least
// negative) discharge limit and the lowest phase count. Setpoints never exceed
// the resulting limits. The purpose of the binding ceiling is kept as
// provenance, ties going to the higher-precedence purpose.
func lowest(unit model.ChargingRateUnit) func([]segment) segment {
	return func(segs []segment) segment {
		out := gap(0)
		perPhase := false
		for _, s := range segs {
			if s.numberPhases > 0 && (out.numberPhases == 0 || s.numberPhases < out.numberPhases) {
				out.numberPhases = s.numberPhases
			}
			if s.limit.perPhase() || s.discharge.perPhase() || s.setpoint.perPhase() {
				perPhase = true
			}
		}
		for _, s := range segs {
			if s.empty() {
				continue
			}
			if perPhase {
				s.limit = spread(s.limit, s.numberPhases, unit)
				s.discharge = spread(s.discharge, s.numberPhases, unit)
				s.setpoint = spread(s.setpoint, s.numberPhases, unit)
			}
			if s.limit[0].ok && (!out.limit[0].ok || s.limit[0].v < out.limit[0].v-limitTolerance ||
				(s.limit[0].equal(out.limit[0]) && s.purpose.Precedence() < out.purpose.Precedence())) {
				out.purpose, out.profileID, out.mode, out.phaseToUse = s.purpose, s.profileID, s.mode, s.phaseToUse
			}
			out.limit = pairwise(out.limit, s.limit, math.Min)
			out.discharge = pairwise(out.discharge, s.discharge, math.Max)
			out.setpoint = mergeSetpoints(out.setpoint, s.setpoint)
		}
		out.setpoint = capSetpoints(out.setpoint, out.limit, out.discharge)
		return out
	}
}

// spread gives every phase an explicit value so whole-connection and
// per-phase values can be compared. Current is already per phase; a
// whole-connection power value is divided evenly over the phases.
func spread(p phases, n int, unit model.ChargingRateUnit) phases {
	if !p[0].ok || p.perPhase() || n <= 1 {
		return p
	}
	v := p[0]
	if unit == model.UnitWatts {
		v = some(v.v / float64(n))
	}
	return phases{v, v, v}
}

func pairwise(a, b phases, f func(x, y float64) float64) phases {
	for i := range a {
		switch {
		case !b[i].ok:
		case !a[i].ok:
			a[i] = b[i]
		default:
			a[i] = some(f(a[i].v, b[i].v))
		}
	}
	return a
}

// mergeSetpoints keeps the stricter setpoint per phase: the lower one when
// charging, the higher one when discharging.
func mergeSetpoints(a, b phases) phases {
	for i := range a {
		switch {
		case !b[i].ok:
		case !a[i].ok:
			a[i] = b[i]
		case a[i].v < 0:
			a[i] = some(math.Max(a[i].v, b[i].v))
		default:
			a[i] = some(math.Min(a[i].v, b[i].v))
		}
	}
	return a
}

// capSetpoints bounds charging setpoints by the limit and discharging ones by
// the discharge limit.
func capSetpoints(sp, limit, discharge phases) phases {
	for i := range sp {
		if !sp[i].ok {
			continue
		}
		if sp[i].v >= 0 && limit[i].ok {
			sp[i].v = math.Min(sp[i].v, limit[i].v)
		}
		if sp[i].v < 0 && discharge[i].ok {
			sp[i].v = math.Max(sp[i].v, discharge[i].v)
		}
	}
	return sp
}

// summing adds outlet timelines into the station-wide consumption. Outlets
// without a limit contribute the default limit. Once any outlet is limited
// per phase, whole-connection values are spread across the phases first.
func summing(defaultLimit float64, unit model.ChargingRateUnit) func([]segment) segment {
	return func(segs []segment) segment {
		out := gap(0)
		perPhase := false
		for _, s := range segs {
			if s.numberPhases > out.numberPhases {
				out.numberPhases = s.numberPhases
			}
			if s.limit.perPhase() {
				perPhase = true
			}
		}
		total := phases{some(0)}
		if perPhase {
			total = phases{some(0), some(0), some(0)}
		}
		for _, s := range segs {
			limit := s.limit
			if !limit[0].ok && !limit.perPhase() {
				limit = phases{some(defaultLimit)}
			}
			if perPhase {
				n := s.numberPhases
				if n == 0 {
					n = 3
				}
				limit = spread(limit, n, unit)
			}
			for i := range total {
				if !total[i].ok {
					continue
				}
				switch {
				case limit[i].ok:
					total[i].v += limit[i].v
				case limit[0].ok:
					total[i].v += limit[0].v
				default:
					total[i].v += defaultLimit
				}
			}
		}
		out.limit = total
		return out
	}
}
