package composite

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharging/core/model"
)

func TestCompute_NoProfilesGivesDefault(t *testing.T) {
	snap := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{acOutlet(1)}}

	cs := Compute(snap, hour(1, model.UnitAmps))
	assert.Equal(t, 3600, cs.Duration)
	assert.Equal(t, t0, cs.ScheduleStart)
	assert.Equal(t, model.UnitAmps, cs.ChargingRateUnit)
	require.Len(t, cs.Periods, 1)
	assert.Equal(t, 0, cs.Periods[0].StartPeriod)
	assert.Equal(t, 48.0, *cs.Periods[0].Limit)
	assert.Nil(t, cs.Periods[0].NumberPhases)

	cs = Compute(snap, hour(1, model.UnitWatts))
	assert.Equal(t, [][2]float64{{0, 33120}}, limits(cs))
}

func TestCompute_TxDefaultNeedsSession(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 16), per(1800, 10))
	idle := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{acOutlet(1, def)}}
	assert.Equal(t, [][2]float64{{0, 48}}, limits(Compute(idle, hour(1, model.UnitAmps))))

	req := hour(1, model.UnitAmps)
	req.SimulateSession = true
	assert.Equal(t, [][2]float64{{0, 16}, {1800, 10}}, limits(Compute(idle, req)))

	active := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{withSession(acOutlet(1, def), "tx", t0.Add(-time.Hour))}}
	cs := Compute(active, hour(1, model.UnitAmps))
	assert.Equal(t, [][2]float64{{0, 16}, {1800, 10}}, limits(cs))
	assert.Equal(t, 3, *cs.Periods[0].NumberPhases)
}

func TestCompute_TxOverTxDefault(t *testing.T) {
	tx := absolute(2, 1, 0, model.PurposeTx, model.UnitAmps, t0.Add(-time.Hour), per(0, 8))
	tx.TransactionID = "tx-1"
	def := absolute(1, 0, 0, model.PurposeTxDefault, model.UnitAmps, t0.Add(-time.Hour), per(0, 16))
	outlet := withSession(acOutlet(1, tx), "tx-1", t0.Add(10*time.Minute))
	snap := Snapshot{Station: stationSnap(), StationProfiles: []model.ChargingProfile{def}, Outlets: []OutletSnapshot{outlet}}

	// The transaction profile only starts with its session.
	assert.Equal(t, [][2]float64{{0, 16}, {600, 8}}, limits(Compute(snap, hour(1, model.UnitAmps))))

	snap.Outlets[0].TransactionID = "tx-other"
	assert.Equal(t, [][2]float64{{0, 16}}, limits(Compute(snap, hour(1, model.UnitAmps))))
}

func TestCompute_ExternalConstraintsCeiling(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 32))
	ec := absolute(2, 1, 0, model.PurposeExternalConstraints, model.UnitAmps, t0, per(0, 20))
	snap := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{withSession(acOutlet(1, def, ec), "tx", t0)}}

	cs := Compute(snap, hour(1, model.UnitAmps))
	assert.Equal(t, [][2]float64{{0, 20}}, limits(cs))

	req := hour(1, model.UnitAmps)
	req.ExcludeExternalConstraints = true
	assert.Equal(t, [][2]float64{{0, 32}}, limits(Compute(snap, req)))
}

func TestCompute_ChargingStationMaxInOtherUnit(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 16))
	stationMax := absolute(2, 0, 0, model.PurposeChargingStationMax, model.UnitWatts, t0, per(0, 6900))
	snap := Snapshot{
		Station:         stationSnap(),
		StationProfiles: []model.ChargingProfile{stationMax},
		Outlets:         []OutletSnapshot{withSession(acOutlet(1, def), "tx", t0)},
	}

	cs := Compute(snap, hour(1, model.UnitAmps))
	require.Len(t, cs.Periods, 1)
	assert.InDelta(t, 10, *cs.Periods[0].Limit, 1e-9)

	cs = Compute(snap, hour(1, model.UnitWatts))
	require.Len(t, cs.Periods, 1)
	assert.InDelta(t, 6900, *cs.Periods[0].Limit, 1e-9)
}

// Converting a schedule to watts and back yields the ampere schedule.
func TestCompute_UnitRoundTrip(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 16), per(600, 13.5))
	snap := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{withSession(acOutlet(1, def), "tx", t0)}}

	amps := Compute(snap, hour(1, model.UnitAmps))
	watts := Compute(snap, hour(1, model.UnitWatts))
	require.Len(t, watts.Periods, len(amps.Periods))
	for i := range amps.Periods {
		n := float64(*watts.Periods[i].NumberPhases)
		assert.InDelta(t, *amps.Periods[i].Limit, *watts.Periods[i].Limit/(230*n), 1e-9)
	}
}

func TestCompute_DCUsesSinglePhase(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitWatts, t0, per(0, 23000))
	o := withSession(acOutlet(1, def), "tx", t0)
	o.PhaseType = model.PhaseDC
	snap := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{o}}

	cs := Compute(snap, hour(1, model.UnitAmps))
	require.Len(t, cs.Periods, 1)
	assert.InDelta(t, 100, *cs.Periods[0].Limit, 1e-9)
	assert.Equal(t, 1, *cs.Periods[0].NumberPhases)
}

func TestCompute_PriorityCharging(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 10))
	prio := absolute(2, 1, 0, model.PurposePriorityCharging, model.UnitAmps, t0.Add(30*time.Minute), per(0, 32))
	snap := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{withSession(acOutlet(1, def, prio), "tx", t0)}}
	assert.Equal(t, [][2]float64{{0, 10}, {1800, 32}}, limits(Compute(snap, hour(1, model.UnitAmps))))

	// Outside ChargingOnly mode it only caps.
	snap.Outlets[0].Profiles[1].Schedules[0].Periods[0].OperationMode = model.ModeExternalLimits
	assert.Equal(t, [][2]float64{{0, 10}}, limits(Compute(snap, hour(1, model.UnitAmps))))
}

func TestCompute_LocalGenerationOverridesIntent(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 10))
	gen := absolute(2, 1, 0, model.PurposeLocalGeneration, model.UnitAmps, t0, per(0, 25))
	gen.Schedules[0].Duration = model.Int(1200)
	stationMax := absolute(3, 0, 0, model.PurposeChargingStationMax, model.UnitAmps, t0, per(0, 20))
	snap := Snapshot{
		Station:         stationSnap(),
		StationProfiles: []model.ChargingProfile{stationMax},
		Outlets:         []OutletSnapshot{withSession(acOutlet(1, def, gen), "tx", t0)},
	}
	assert.Equal(t, [][2]float64{{0, 20}, {1200, 10}}, limits(Compute(snap, hour(1, model.UnitAmps))))
}

func TestCompute_StationWideSum(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 16))
	snap := Snapshot{
		Station: stationSnap(),
		Outlets: []OutletSnapshot{withSession(acOutlet(1, def), "tx", t0), acOutlet(2)},
	}
	assert.Equal(t, [][2]float64{{0, 64}}, limits(Compute(snap, hour(0, model.UnitAmps))))

	snap.StationProfiles = []model.ChargingProfile{absolute(9, 0, 0, model.PurposeChargingStationMax, model.UnitAmps, t0, per(0, 40))}
	assert.Equal(t, [][2]float64{{0, 40}}, limits(Compute(snap, hour(0, model.UnitAmps))))
}

// Station-wide external constraints bound the station and every outlet alike.
func TestCompute_StationExternalConstraints(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 32))
	ec := absolute(2, 0, 0, model.PurposeExternalConstraints, model.UnitAmps, t0, per(0, 30))
	snap := Snapshot{
		Station:         stationSnap(),
		StationProfiles: []model.ChargingProfile{ec},
		Outlets:         []OutletSnapshot{withSession(acOutlet(1, def), "tx", t0), acOutlet(2)},
	}
	assert.Equal(t, [][2]float64{{0, 30}}, limits(Compute(snap, hour(1, model.UnitAmps))))
	assert.Equal(t, [][2]float64{{0, 30}}, limits(Compute(snap, hour(0, model.UnitAmps))))
	assert.Equal(t, [][2]float64{{0, 30}}, limits(Compute(snap, hour(2, model.UnitAmps))))
}

func TestCompute_OfflineIgnoresPurposes(t *testing.T) {
	ec := absolute(2, 1, 0, model.PurposeExternalConstraints, model.UnitAmps, t0, per(0, 6))
	st := stationSnap()
	st.IgnoredOffline = []model.ProfilePurpose{model.PurposeExternalConstraints}
	snap := Snapshot{Station: st, Outlets: []OutletSnapshot{acOutlet(1, ec)}}

	assert.Equal(t, [][2]float64{{0, 6}}, limits(Compute(snap, hour(1, model.UnitAmps))))
	req := hour(1, model.UnitAmps)
	req.Offline = true
	assert.Equal(t, [][2]float64{{0, 48}}, limits(Compute(snap, req)))
}

// A weekly profile for Monday 18:00-20:00 seen from a Sunday and a Monday.
func TestCompute_WeeklyEveningCap(t *testing.T) {
	monday := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	evening := recurring(1, 0, 0, model.PurposeChargingStationMax, model.RecurrencyWeekly, monday, 7200, per(0, 10))
	snap := Snapshot{Station: stationSnap(), StationProfiles: []model.ChargingProfile{evening}, Outlets: []OutletSnapshot{acOutlet(1)}}

	sunday := time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)
	cs := Compute(snap, Request{Start: sunday, End: sunday.Add(2 * time.Hour), EvseID: 1, Unit: model.UnitAmps})
	assert.Equal(t, [][2]float64{{0, 48}}, limits(cs))

	next := time.Date(2024, 1, 8, 16, 0, 0, 0, time.UTC)
	cs = Compute(snap, Request{Start: next, End: next.Add(5 * time.Hour), EvseID: 1, Unit: model.UnitAmps})
	assert.Equal(t, [][2]float64{{0, 48}, {7200, 10}, {14400, 48}}, limits(cs))
	assert.Equal(t, 18000, cs.Duration)
}

func TestCompute_Deterministic(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 16), per(900, 12), per(2400, 20))
	ec := recurring(2, 1, 0, model.PurposeExternalConstraints, model.RecurrencyDaily, t0.Add(-time.Hour), 5400, per(0, 14))
	snap := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{withSession(acOutlet(1, def, ec), "tx", t0)}}
	req := Request{Start: t0, End: t0.Add(6 * time.Hour), EvseID: 1, Unit: model.UnitWatts}

	first := Compute(snap, req)
	assert.Equal(t, first, Compute(snap, req))

	// Coverage: offsets start at 0, ascend and stay inside the window.
	require.NotEmpty(t, first.Periods)
	assert.Equal(t, 0, first.Periods[0].StartPeriod)
	for i := 1; i < len(first.Periods); i++ {
		assert.Greater(t, first.Periods[i].StartPeriod, first.Periods[i-1].StartPeriod)
		assert.Less(t, first.Periods[i].StartPeriod, first.Duration)
	}
}

// stepAt returns the limit of the step function given as (offset, limit)
// pairs at offset.
func stepAt(steps [][2]float64, offset int) float64 {
	v := steps[0][1]
	for _, s := range steps {
		if int(s[0]) <= offset {
			v = s[1]
		}
	}
	return v
}

/*
TestCompute_NeverAboveExternalConstraints checks the ceiling at every second.

	The outlet runs a TxDefault with short steps under an ExternalConstraints
	profile that also changes within a few seconds. The composite limit must
	equal the lower of the two everywhere, short periods included.
*/
func TestCompute_NeverAboveExternalConstraints(t *testing.T) {
	intent := [][2]float64{{0, 32}, {8, 6}, {16, 20}, {24, 32}, {900, 14}}
	ceiling := [][2]float64{{0, 10}, {5, 40}, {600, 12}, {603, 30}, {607, 8}, {612, 40}}
	toPeriods := func(steps [][2]float64) []model.ChargingSchedulePeriod {
		out := make([]model.ChargingSchedulePeriod, 0, len(steps))
		for _, s := range steps {
			out = append(out, per(int(s[0]), s[1]))
		}
		return out
	}
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, toPeriods(intent)...)
	ec := absolute(2, 1, 0, model.PurposeExternalConstraints, model.UnitAmps, t0, toPeriods(ceiling)...)
	snap := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{withSession(acOutlet(1, def, ec), "tx", t0)}}

	cs := Compute(snap, hour(1, model.UnitAmps))
	for off := 0; off < cs.Duration; off++ {
		got, ok := cs.LimitAt(off)
		require.True(t, ok, "offset %d", off)
		want := math.Min(stepAt(intent, off), stepAt(ceiling, off))
		require.InDelta(t, want, got, 1e-9, "offset %d", off)
	}
}

// A ceiling lasting only five seconds still bounds the start of the window.
func TestCompute_ShortCeilingAtStart(t *testing.T) {
	def := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitAmps, t0, per(0, 32))
	ec := absolute(2, 1, 0, model.PurposeExternalConstraints, model.UnitAmps, t0, per(0, 10))
	ec.Schedules[0].Duration = model.Int(5)
	snap := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{withSession(acOutlet(1, def, ec), "tx", t0)}}
	assert.Equal(t, [][2]float64{{0, 10}, {5, 32}}, limits(Compute(snap, hour(1, model.UnitAmps))))
}

func TestCompute_TxStackLevels(t *testing.T) {
	base := absolute(1, 1, 0, model.PurposeTx, model.UnitAmps, t0.Add(-time.Hour), per(0, 16))
	base.TransactionID = "tx-1"
	over := absolute(2, 1, 1, model.PurposeTx, model.UnitAmps, t0.Add(10*time.Minute), per(0, 8))
	over.TransactionID = "tx-1"
	over.Schedules[0].Duration = model.Int(600)
	snap := Snapshot{Station: stationSnap(), Outlets: []OutletSnapshot{withSession(acOutlet(1, base, over), "tx-1", t0.Add(-time.Hour))}}

	assert.Equal(t, [][2]float64{{0, 16}, {600, 8}, {1200, 16}}, limits(Compute(snap, hour(1, model.UnitAmps))))
}

// A weekly cap from Monday 18:00 lasting five hours, queried the next Monday
// from 16:00 to 21:00.
func TestCompute_WeeklyFiveHourCap(t *testing.T) {
	monday := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	evening := recurring(1, 0, 0, model.PurposeChargingStationMax, model.RecurrencyWeekly, monday, 18000, per(0, 10))
	snap := Snapshot{Station: stationSnap(), StationProfiles: []model.ChargingProfile{evening}, Outlets: []OutletSnapshot{acOutlet(1)}}

	start := time.Date(2024, 1, 8, 16, 0, 0, 0, time.UTC)
	cs := Compute(snap, Request{Start: start, End: start.Add(5 * time.Hour), EvseID: 1, Unit: model.UnitAmps})
	assert.Equal(t, [][2]float64{{0, 48}, {7200, 10}}, limits(cs))
	assert.Equal(t, 18000, cs.Duration)
}

// Station-wide watts: a whole-connection outlet counts a third of its limit
// on each phase next to a per-phase outlet.
func TestCompute_StationWideSumPerPhaseWatts(t *testing.T) {
	whole := absolute(1, 1, 0, model.PurposeTxDefault, model.UnitWatts, t0, per(0, 6900))
	split := absolute(2, 2, 0, model.PurposeTxDefault, model.UnitWatts, t0, model.ChargingSchedulePeriod{
		Limit: model.Float(2300), LimitL2: model.Float(2300), LimitL3: model.Float(2300),
	})
	snap := Snapshot{
		Station: stationSnap(),
		Outlets: []OutletSnapshot{
			withSession(acOutlet(1, whole), "tx-1", t0),
			withSession(acOutlet(2, split), "tx-2", t0),
		},
	}
	cs := Compute(snap, hour(0, model.UnitWatts))
	require.Len(t, cs.Periods, 1)
	p := cs.Periods[0]
	assert.InDelta(t, 4600, *p.Limit, 1e-6)
	require.NotNil(t, p.LimitL2)
	require.NotNil(t, p.LimitL3)
	assert.InDelta(t, 4600, *p.LimitL2, 1e-6)
	assert.InDelta(t, 4600, *p.LimitL3, 1e-6)
}
