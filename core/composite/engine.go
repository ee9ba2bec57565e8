package composite

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/smartcharging/core/logger"
	"github.com/kilianp07/smartcharging/core/metrics"
	"github.com/kilianp07/smartcharging/core/model"
)

// ProfileStore gives read access to the installed profiles. Both methods
// return profiles in installation order; outlet 0 holds the station-wide ones.
type ProfileStore interface {
	ProfilesForOutlet(ctx context.Context, evseID int) ([]model.ChargingProfile, error)
	AllProfiles(ctx context.Context) ([]model.ChargingProfile, error)
}

// OutletState describes the outlets and their sessions.
type OutletState interface {
	NumberOfOutlets() int
	HasActiveTransaction(evseID int) bool
	TransactionID(evseID int) (string, bool)
	SessionStart(evseID int) (time.Time, bool)
	PhaseType(evseID int) model.PhaseType
	NumberOfConnectors(evseID int) int
}

// StationConfig exposes the station-wide settings used by composition.
type StationConfig interface {
	DefaultLimit(unit model.ChargingRateUnit) float64
	SupportedRateUnits() []model.ChargingRateUnit
	NominalVoltage() float64
	SupportsACPhaseSwitching() bool
	DefaultNumberOfPhases() int
}

// Tuning is optionally implemented by a StationConfig to adjust emission and
// offline behaviour.
type Tuning interface {
	CoalesceTolerance() int
	IgnoredPurposesOffline() []model.ProfilePurpose
}

// Engine captures consistent snapshots from its collaborators and computes
// composite schedules from them.
type Engine struct {
	store     ProfileStore
	outlets   OutletState
	station   StationConfig
	log       logger.Logger
	metrics   metrics.MetricsSink
	stationID string
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger receiving excluded-profile warnings.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the sink recording one event per calculation.
func WithMetrics(m metrics.MetricsSink) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithStationID labels recorded events.
func WithStationID(id string) Option {
	return func(e *Engine) { e.stationID = id }
}

// WithClock replaces time.Now for requests without a start.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New returns an Engine reading from the given collaborators.
func New(store ProfileStore, outlets OutletState, station StationConfig, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		outlets: outlets,
		station: station,
		log:     logger.Nop{},
		metrics: metrics.NopSink{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Calculate computes the composite schedule for req.EvseID. Invalid requests
// fail with an *InputError before any profile is read.
func (e *Engine) Calculate(ctx context.Context, req Request) (model.CompositeSchedule, error) {
	began := time.Now()
	req, err := e.normalize(req)
	if err != nil {
		e.record(req, model.CompositeSchedule{}, 0, began, err)
		return model.CompositeSchedule{}, err
	}
	snap, excluded, err := e.Snapshot(ctx, req.EvseID)
	if err != nil {
		return model.CompositeSchedule{}, err
	}
	cs := Compute(snap, req)
	e.record(req, cs, excluded, began, nil)
	return cs, nil
}

// CalculateAll computes the schedules of the whole station and of every
// outlet, in outlet id order, from a single snapshot.
func (e *Engine) CalculateAll(ctx context.Context, req Request) ([]model.CompositeSchedule, error) {
	req.EvseID = model.StationWideID
	req, err := e.normalize(req)
	if err != nil {
		return nil, err
	}
	snap, excluded, err := e.Snapshot(ctx, model.StationWideID)
	if err != nil {
		return nil, err
	}
	out := make([]model.CompositeSchedule, 0, len(snap.Outlets)+1)
	for id := 0; id <= len(snap.Outlets); id++ {
		began := time.Now()
		r := req
		r.EvseID = id
		cs := Compute(snap, r)
		e.record(r, cs, excluded, began, nil)
		out = append(out, cs)
	}
	return out, nil
}

func (e *Engine) normalize(req Request) (Request, error) {
	if req.EvseID < 0 || req.EvseID > e.outlets.NumberOfOutlets() {
		return req, inputErrorf(ErrUnknownOutlet, "evse %d", req.EvseID)
	}
	if req.Start.IsZero() {
		req.Start = e.now()
	}
	if w := NewWindow(req.Start, req.End); !w.Valid() {
		return req, inputErrorf(ErrInvalidWindow, "start %s is not before end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	supported := e.station.SupportedRateUnits()
	switch {
	case req.Unit == "" && len(supported) > 0:
		req.Unit = supported[0]
	case !slices.Contains(supported, req.Unit):
		return req, inputErrorf(ErrUnsupportedUnit, "%q not in %v", req.Unit, supported)
	}
	return req, nil
}

// Snapshot captures everything a calculation for evseID reads: the station
// settings, the station-wide profiles and the outlet states with their
// profiles. Malformed profiles are logged and left out; the number left out is
// returned alongside.
func (e *Engine) Snapshot(ctx context.Context, evseID int) (Snapshot, int, error) {
	snap := Snapshot{Station: e.stationSnapshot()}
	excluded := 0
	keep := func(ps []model.ChargingProfile) []model.ChargingProfile {
		out := make([]model.ChargingProfile, 0, len(ps))
		for _, p := range ps {
			if err := model.Validate(p); err != nil {
				excluded++
				e.log.Warnf("composite: excluding profile %d on evse %d: %v", p.ID, p.EvseID, err)
				continue
			}
			out = append(out, p.Clone())
		}
		return out
	}

	if evseID != model.StationWideID {
		station, err := e.store.ProfilesForOutlet(ctx, model.StationWideID)
		if err != nil {
			return Snapshot{}, 0, fmt.Errorf("station profiles: %w", err)
		}
		own, err := e.store.ProfilesForOutlet(ctx, evseID)
		if err != nil {
			return Snapshot{}, 0, fmt.Errorf("evse %d profiles: %w", evseID, err)
		}
		snap.StationProfiles = keep(station)
		snap.Outlets = []OutletSnapshot{e.outletSnapshot(evseID, keep(own))}
		return snap, excluded, nil
	}

	all, err := e.store.AllProfiles(ctx)
	if err != nil {
		return Snapshot{}, 0, fmt.Errorf("all profiles: %w", err)
	}
	byOutlet := make(map[int][]model.ChargingProfile)
	for _, p := range keep(all) {
		byOutlet[p.EvseID] = append(byOutlet[p.EvseID], p)
	}
	snap.StationProfiles = byOutlet[model.StationWideID]
	n := e.outlets.NumberOfOutlets()
	snap.Outlets = make([]OutletSnapshot, 0, n)
	for id := 1; id <= n; id++ {
		snap.Outlets = append(snap.Outlets, e.outletSnapshot(id, byOutlet[id]))
	}
	return snap, excluded, nil
}

func (e *Engine) outletSnapshot(id int, profiles []model.ChargingProfile) OutletSnapshot {
	o := OutletSnapshot{
		EvseID:    id,
		PhaseType: e.outlets.PhaseType(id),
		Profiles:  profiles,
	}
	if e.outlets.HasActiveTransaction(id) {
		if tx, ok := e.outlets.TransactionID(id); ok {
			o.TransactionID = tx
		}
		if start, ok := e.outlets.SessionStart(id); ok {
			start = floorSecond(start)
			o.SessionStart = &start
		}
	}
	e.log.Debugw("composite: outlet snapshot", map[string]any{
		"evse_id":    id,
		"phase_type": o.PhaseType,
		"connectors": e.outlets.NumberOfConnectors(id),
		"session":    o.SessionStart != nil,
		"profiles":   len(profiles),
	})
	return o
}

func (e *Engine) stationSnapshot() StationSnapshot {
	st := StationSnapshot{
		DefaultLimitAmps:    e.station.DefaultLimit(model.UnitAmps),
		DefaultLimitWatts:   e.station.DefaultLimit(model.UnitWatts),
		NominalVoltage:      e.station.NominalVoltage(),
		ACPhaseSwitching:    e.station.SupportsACPhaseSwitching(),
		DefaultNumberPhases: e.station.DefaultNumberOfPhases(),
		SupportedUnits:      slices.Clone(e.station.SupportedRateUnits()),
		CoalesceTolerance:   DefaultCoalesceTolerance,
	}
	if t, ok := e.station.(Tuning); ok {
		st.CoalesceTolerance = t.CoalesceTolerance()
		st.IgnoredOffline = slices.Clone(t.IgnoredPurposesOffline())
	}
	return st
}

func (e *Engine) record(req Request, cs model.CompositeSchedule, excluded int, began time.Time, err error) {
	ev := metrics.CalculationEvent{
		StationID: e.stationID,
		EvseID:    req.EvseID,
		Unit:      req.Unit,
		Periods:   len(cs.Periods),
		Excluded:  excluded,
		Latency:   time.Since(began),
		Time:      began,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if rerr := e.metrics.RecordCalculation(ev); rerr != nil {
		e.log.Errorf("composite: record calculation: %v", rerr)
	}
	if err != nil {
		return
	}
	if rec, ok := e.metrics.(metrics.ScheduleRecorder); ok {
		if rerr := rec.RecordSchedule(metrics.ScheduleEvent{StationID: e.stationID, Schedule: cs, Time: began}); rerr != nil {
			e.log.Errorf("composite: record schedule: %v", rerr)
		}
	}
}
