package composite

import (
	"slices"

	"github.com/kilianp07/smartcharging/core/model"
)

// ResolveQuery describes the outlet a profile set is resolved for.
type ResolveQuery struct {
	EvseID int
	Window Window
	// TransactionID is the active transaction on the outlet, empty when idle.
	TransactionID string
	// Ignore removes purposes from the result, e.g. while offline.
	Ignore []model.ProfilePurpose
}

// Resolve returns the profiles eligible for composing the outlet's schedule:
// its own profiles and the station-wide ones that apply to it. Inputs are
// expected in installation order; when several profiles share purpose and
// stack level within one scope the last installed wins.
func Resolve(outlet, station []model.ChargingProfile, q ResolveQuery) []model.ChargingProfile {
	var out []model.ChargingProfile
	if q.EvseID != model.StationWideID {
		out = append(out, resolveScope(outlet, q, outletScoped)...)
	}
	out = append(out, resolveScope(station, q, stationScoped)...)
	return out
}

func outletScoped(p model.ProfilePurpose) bool {
	return p != model.PurposeChargingStationMax
}

func stationScoped(p model.ProfilePurpose) bool {
	return p != model.PurposeTx
}

type scopeKey struct {
	purpose model.ProfilePurpose
	level   int
}

func resolveScope(profiles []model.ChargingProfile, q ResolveQuery, applies func(model.ProfilePurpose) bool) []model.ChargingProfile {
	latest := make(map[scopeKey]int, len(profiles))
	for i, p := range profiles {
		if !eligible(p, q, applies) {
			continue
		}
		latest[scopeKey{p.Purpose, p.StackLevel}] = i
	}
	out := make([]model.ChargingProfile, 0, len(latest))
	for i, p := range profiles {
		if j, ok := latest[scopeKey{p.Purpose, p.StackLevel}]; ok && i == j {
			out = append(out, p)
		}
	}
	return out
}

func eligible(p model.ChargingProfile, q ResolveQuery, applies func(model.ProfilePurpose) bool) bool {
	if !applies(p.Purpose) || slices.Contains(q.Ignore, p.Purpose) {
		return false
	}
	if p.ValidTo != nil && !floorSecond(*p.ValidTo).After(q.Window.Start) {
		return false
	}
	if p.Purpose == model.PurposeTx {
		return q.TransactionID != "" && p.TransactionID == q.TransactionID
	}
	return true
}
