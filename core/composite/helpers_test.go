package composite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/smartcharging/core/metrics"
	"github.com/kilianp07/smartcharging/core/model"
)

// t0 is a Monday.
var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func per(start int, limit float64) model.ChargingSchedulePeriod {
	return model.ChargingSchedulePeriod{StartPeriod: start, Limit: model.Float(limit)}
}

func absolute(id, evse, level int, purpose model.ProfilePurpose, unit model.ChargingRateUnit, start time.Time, periods ...model.ChargingSchedulePeriod) model.ChargingProfile {
	return model.ChargingProfile{
		ID:         id,
		EvseID:     evse,
		StackLevel: level,
		Purpose:    purpose,
		Kind:       model.KindAbsolute,
		Schedules: []model.ChargingSchedule{{
			ID:               id,
			ChargingRateUnit: unit,
			StartSchedule:    model.Time(start),
			Periods:          periods,
		}},
	}
}

func recurring(id, evse, level int, purpose model.ProfilePurpose, kind model.RecurrencyKind, start time.Time, duration int, periods ...model.ChargingSchedulePeriod) model.ChargingProfile {
	p := absolute(id, evse, level, purpose, model.UnitAmps, start, periods...)
	p.Kind = model.KindRecurring
	p.RecurrencyKind = kind
	if duration > 0 {
		p.Schedules[0].Duration = model.Int(duration)
	}
	return p
}

func relative(id, evse, level int, purpose model.ProfilePurpose, periods ...model.ChargingSchedulePeriod) model.ChargingProfile {
	p := absolute(id, evse, level, purpose, model.UnitAmps, t0, periods...)
	p.Kind = model.KindRelative
	p.Schedules[0].StartSchedule = nil
	return p
}

func stationSnap() StationSnapshot {
	return StationSnapshot{
		DefaultLimitAmps:    48,
		DefaultLimitWatts:   33120,
		NominalVoltage:      230,
		DefaultNumberPhases: 3,
		SupportedUnits:      []model.ChargingRateUnit{model.UnitAmps, model.UnitWatts},
		CoalesceTolerance:   DefaultCoalesceTolerance,
	}
}

func acOutlet(id int, profiles ...model.ChargingProfile) OutletSnapshot {
	return OutletSnapshot{EvseID: id, PhaseType: model.PhaseAC, Profiles: profiles}
}

func withSession(o OutletSnapshot, tx string, start time.Time) OutletSnapshot {
	o.TransactionID = tx
	o.SessionStart = model.Time(start)
	return o
}

func hour(evse int, unit model.ChargingRateUnit) Request {
	return Request{Start: t0, End: t0.Add(time.Hour), EvseID: evse, Unit: unit}
}

// limits flattens periods into (start, limit) pairs for compact assertions.
func limits(cs model.CompositeSchedule) [][2]float64 {
	out := make([][2]float64, 0, len(cs.Periods))
	for _, p := range cs.Periods {
		l := -1.0
		if p.Limit != nil {
			l = *p.Limit
		}
		out = append(out, [2]float64{float64(p.StartPeriod), l})
	}
	return out
}

type fakeStore struct {
	profiles []model.ChargingProfile
	err      error
}

func (f *fakeStore) ProfilesForOutlet(_ context.Context, evseID int) ([]model.ChargingProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.ChargingProfile
	for _, p := range f.profiles {
		if p.EvseID == evseID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) AllProfiles(context.Context) ([]model.ChargingProfile, error) {
	return f.profiles, f.err
}

type fakeOutlets struct {
	n        int
	dc       map[int]bool
	tx       map[int]string
	sessions map[int]time.Time
}

func (f *fakeOutlets) NumberOfOutlets() int { return f.n }

func (f *fakeOutlets) HasActiveTransaction(id int) bool {
	_, ok := f.sessions[id]
	return ok
}

func (f *fakeOutlets) TransactionID(id int) (string, bool) {
	tx, ok := f.tx[id]
	return tx, ok
}

func (f *fakeOutlets) SessionStart(id int) (time.Time, bool) {
	s, ok := f.sessions[id]
	return s, ok
}

func (f *fakeOutlets) PhaseType(id int) model.PhaseType {
	if f.dc[id] {
		return model.PhaseDC
	}
	return model.PhaseAC
}

func (f *fakeOutlets) NumberOfConnectors(int) int { return 1 }

type fakeStation struct {
	units []model.ChargingRateUnit
}

func (f fakeStation) DefaultLimit(u model.ChargingRateUnit) float64 {
	if u == model.UnitWatts {
		return 33120
	}
	return 48
}

func (f fakeStation) SupportedRateUnits() []model.ChargingRateUnit {
	if f.units == nil {
		return []model.ChargingRateUnit{model.UnitAmps, model.UnitWatts}
	}
	return f.units
}

func (fakeStation) NominalVoltage() float64        { return 230 }
func (fakeStation) SupportsACPhaseSwitching() bool { return false }
func (fakeStation) DefaultNumberOfPhases() int     { return 3 }

type captureLogger struct {
	mu    sync.Mutex
	warns []string
}

func (c *captureLogger) Debugf(string, ...any)         {}
func (c *captureLogger) Debugw(string, map[string]any) {}
func (c *captureLogger) Infof(string, ...any)          {}
func (c *captureLogger) Errorf(string, ...any)         {}

func (c *captureLogger) Warnf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warns = append(c.warns, fmt.Sprintf(format, args...))
}

type captureSink struct {
	calcs     []metrics.CalculationEvent
	schedules int
}

func (c *captureSink) RecordCalculation(ev metrics.CalculationEvent) error {
	c.calcs = append(c.calcs, ev)
	return nil
}

func (c *captureSink) RecordSchedule(metrics.ScheduleEvent) error {
	c.schedules++
	return nil
}
