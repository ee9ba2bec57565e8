package metrics

import (
	"time"

	"github.com/kilianp07/smartcharging/core/model"
)

// CalculationEvent describes one composite schedule calculation.
type CalculationEvent struct {
	StationID string
	EvseID    int
	Unit      model.ChargingRateUnit
	Periods   int
	// Excluded counts the malformed profiles dropped from the snapshot.
	Excluded int
	Latency  time.Duration
	// Error is set when the request was rejected.
	Error string
	Time  time.Time
}

// MetricsSink records calculations for observability purposes.
type MetricsSink interface {
	RecordCalculation(ev CalculationEvent) error
}

// ScheduleEvent carries a computed composite schedule.
type ScheduleEvent struct {
	StationID string
	Schedule  model.CompositeSchedule
	Time      time.Time
}

// ScheduleRecorder records the content of computed schedules.
type ScheduleRecorder interface {
	RecordSchedule(ev ScheduleEvent) error
}

// Profile actions.
const (
	ProfileInstalled = "installed"
	ProfileRemoved   = "removed"
	ProfileRejected  = "rejected"
)

// ProfileEvent captures a change to the installed profile set.
type ProfileEvent struct {
	StationID string
	EvseID    int
	ProfileID int
	Purpose   model.ProfilePurpose
	Action    string
	Reason    string
	Time      time.Time
}

// ProfileRecorder records profile changes.
type ProfileRecorder interface {
	RecordProfileEvent(ev ProfileEvent) error
}

// PublishEvent captures the delivery of a schedule to a publisher.
type PublishEvent struct {
	Publisher string
	EvseID    int
	Success   bool
	Latency   time.Duration
	Time      time.Time
}

// PublishRecorder records publications.
type PublishRecorder interface {
	RecordPublish(ev PublishEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCalculation(CalculationEvent) error { return nil }
func (NopSink) RecordSchedule(ScheduleEvent) error       { return nil }
func (NopSink) RecordProfileEvent(ProfileEvent) error    { return nil }
func (NopSink) RecordPublish(PublishEvent) error         { return nil }
