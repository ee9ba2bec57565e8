package model

import "time"

// CompositeSchedule is the effective limit timeline of an outlet (or of the
// whole station when EvseID is 0). Period offsets are relative to
// ScheduleStart, ascending, and the first one is always 0.
type CompositeSchedule struct {
	EvseID           int                      `json:"evseId"`
	Duration         int                      `json:"duration"`
	ScheduleStart    time.Time                `json:"scheduleStart"`
	ChargingRateUnit ChargingRateUnit         `json:"chargingRateUnit"`
	Periods          []ChargingSchedulePeriod `json:"chargingSchedulePeriod"`
}

// End returns the instant the schedule stops covering.
func (c CompositeSchedule) End() time.Time {
	return c.ScheduleStart.Add(time.Duration(c.Duration) * time.Second)
}

// PeriodEnd returns the offset at which period i ends.
func (c CompositeSchedule) PeriodEnd(i int) int {
	if i+1 < len(c.Periods) {
		return c.Periods[i+1].StartPeriod
	}
	return c.Duration
}

// LimitAt returns the limit in effect at the given offset in seconds.
func (c CompositeSchedule) LimitAt(offset int) (float64, bool) {
	for i := len(c.Periods) - 1; i >= 0; i-- {
		if c.Periods[i].StartPeriod <= offset {
			if c.Periods[i].Limit == nil {
				return 0, false
			}
			return *c.Periods[i].Limit, true
		}
	}
	return 0, false
}
