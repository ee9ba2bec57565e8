package composite

import (
	"time"

	"github.com/kilianp07/smartcharging/core/model"
)

// Request is a composite schedule query.
type Request struct {
	Start  time.Time
	End    time.Time
	EvseID int
	// Unit may be left empty to use the first supported unit.
	Unit                       model.ChargingRateUnit
	IncludeDischarge           bool
	ExcludeExternalConstraints bool
	// Offline drops the purposes the station ignores while offline.
	Offline bool
	// SimulateSession composes the transaction layer even without a session.
	SimulateSession bool
}

// StationSnapshot carries the station configuration used by a calculation.
type StationSnapshot struct {
	DefaultLimitAmps    float64
	DefaultLimitWatts   float64
	NominalVoltage      float64
	ACPhaseSwitching    bool
	DefaultNumberPhases int
	SupportedUnits      []model.ChargingRateUnit
	CoalesceTolerance   int
	IgnoredOffline      []model.ProfilePurpose
}

// DefaultLimit returns the fallback limit for the unit.
func (s StationSnapshot) DefaultLimit(u model.ChargingRateUnit) float64 {
	if u == model.UnitWatts {
		return s.DefaultLimitWatts
	}
	return s.DefaultLimitAmps
}

// OutletSnapshot is the state of one outlet at calculation time.
type OutletSnapshot struct {
	EvseID        int
	PhaseType     model.PhaseType
	TransactionID string
	SessionStart  *time.Time
	// Profiles installed on the outlet itself, in installation order.
	Profiles []model.ChargingProfile
}

// Snapshot is everything a calculation reads. Compute never looks beyond it.
type Snapshot struct {
	Station         StationSnapshot
	StationProfiles []model.ChargingProfile
	// Outlets holds the requested outlet, or every outlet for a station-wide
	// request, ordered by id.
	Outlets []OutletSnapshot
}

func (s Snapshot) outlet(id int) (OutletSnapshot, bool) {
	for _, o := range s.Outlets {
		if o.EvseID == id {
			return o, true
		}
	}
	return OutletSnapshot{}, false
}

// phaseType is AC as soon as one outlet is AC.
func (s Snapshot) phaseType() model.PhaseType {
	for _, o := range s.Outlets {
		if o.PhaseType != model.PhaseDC {
			return model.PhaseAC
		}
	}
	if len(s.Outlets) == 0 {
		return model.PhaseAC
	}
	return model.PhaseDC
}

// Compute derives the composite schedule from a snapshot. The request must
// already be validated: a non-empty window and a resolved unit. It is a pure
// function of its arguments.
func Compute(snap Snapshot, req Request) model.CompositeSchedule {
	w := NewWindow(req.Start, req.End)
	c := calculation{snap: snap, req: req, window: w}

	var combined timeline
	var session *time.Time
	phaseType := snap.phaseType()
	if req.EvseID == model.StationWideID {
		lines := make([]timeline, 0, len(snap.Outlets))
		for _, o := range snap.Outlets {
			lines = append(lines, c.outlet(o, false))
		}
		sum := zip(lines, summing(snap.Station.DefaultLimit(req.Unit), req.Unit))
		ceilings := []timeline{sum}
		if !req.ExcludeExternalConstraints {
			ceilings = append(ceilings, c.stationGroup(model.PurposeExternalConstraints, nil, phaseType))
		}
		combined = zip(ceilings, lowest(req.Unit))
	} else {
		o, _ := snap.outlet(req.EvseID)
		session = o.SessionStart
		phaseType = o.PhaseType
		combined = c.outlet(o, true)
	}

	stationMax := c.stationGroup(model.PurposeChargingStationMax, session, phaseType)
	combined = zip([]timeline{combined, stationMax}, lowest(req.Unit))

	return emit(combined, w, req.EvseID, emitOptions{
		unit:             req.Unit,
		defaultLimit:     snap.Station.DefaultLimit(req.Unit),
		tolerance:        snap.Station.CoalesceTolerance,
		includeDischarge: req.IncludeDischarge,
	})
}

type calculation struct {
	snap   Snapshot
	req    Request
	window Window
}

func (c calculation) converter(pt model.PhaseType) converter {
	st := c.snap.Station
	return converter{
		unit:          c.req.Unit,
		voltage:       st.NominalVoltage,
		phaseType:     pt,
		acSwitching:   st.ACPhaseSwitching,
		defaultPhases: st.DefaultNumberPhases,
		defaultAmps:   st.DefaultLimitAmps,
		defaultWatts:  st.DefaultLimitWatts,
	}
}

func (c calculation) ignored() []model.ProfilePurpose {
	if c.req.Offline {
		return c.snap.Station.IgnoredOffline
	}
	return nil
}

// outlet composes one outlet. Station-wide external constraints are included
// only for a single-outlet request; a station-wide request applies them to the
// summed result instead.
func (c calculation) outlet(o OutletSnapshot, stationConstraints bool) timeline {
	profiles := Resolve(o.Profiles, c.snap.StationProfiles, ResolveQuery{
		EvseID:        o.EvseID,
		Window:        c.window,
		TransactionID: o.TransactionID,
		Ignore:        c.ignored(),
	})
	entries := make(map[model.ProfilePurpose][]PeriodEntry)
	for _, p := range profiles {
		if p.Purpose == model.PurposeChargingStationMax {
			continue
		}
		if p.EvseID == model.StationWideID && p.Purpose == model.PurposeExternalConstraints && !stationConstraints {
			continue
		}
		entries[p.Purpose] = append(entries[p.Purpose], Project(p, c.window, o.SessionStart)...)
	}
	conv := c.converter(o.PhaseType)
	groups := make(purposeTimelines, len(entries))
	for purpose, es := range entries {
		groups[purpose] = timelineOf(Compose(es), c.window, conv)
	}
	return combineOutlet(groups, combineOptions{
		excludeExternalConstraints: c.req.ExcludeExternalConstraints,
		intent:                     o.SessionStart != nil || c.req.SimulateSession,
		unit:                       c.req.Unit,
	})
}

// stationGroup composes a purpose group from the station-wide profiles only.
func (c calculation) stationGroup(purpose model.ProfilePurpose, session *time.Time, pt model.PhaseType) timeline {
	profiles := Resolve(nil, c.snap.StationProfiles, ResolveQuery{
		EvseID: model.StationWideID,
		Window: c.window,
		Ignore: c.ignored(),
	})
	var entries []PeriodEntry
	for _, p := range profiles {
		if p.Purpose == purpose {
			entries = append(entries, Project(p, c.window, session)...)
		}
	}
	return timelineOf(Compose(entries), c.window, c.converter(pt))
}
