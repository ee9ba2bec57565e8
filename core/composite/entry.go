package composite

import (
	"time"

	"github.com/kilianp07/smartcharging/core/model"
)

// Window is the half-open query interval [Start, End), truncated to whole
// seconds in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow truncates both bounds to whole seconds.
func NewWindow(start, end time.Time) Window {
	return Window{Start: floorSecond(start), End: floorSecond(end)}
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool { return w.Start.Before(w.End) }

// Seconds is the window length.
func (w Window) Seconds() int { return int(w.End.Sub(w.Start) / time.Second) }

func (w Window) offset(t time.Time) int { return int(t.Sub(w.Start) / time.Second) }

func floorSecond(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

// PeriodEntry is one concrete interval contributed by a profile to a window.
// Values are in the unit of the profile's schedule.
type PeriodEntry struct {
	Start      time.Time
	End        time.Time
	ProfileID  int
	StackLevel int
	Purpose    model.ProfilePurpose
	Unit       model.ChargingRateUnit
	Period     model.ChargingSchedulePeriod
}

// covers reports whether the entry is in effect at t.
func (e PeriodEntry) covers(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// outranks reports whether e wins over o in stack composition: highest stack
// level first, then highest profile id.
func (e PeriodEntry) outranks(o PeriodEntry) bool {
	if e.StackLevel != o.StackLevel {
		return e.StackLevel > o.StackLevel
	}
	return e.ProfileID > o.ProfileID
}
