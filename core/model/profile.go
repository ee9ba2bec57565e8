package model

import "time"

// StationWideID is the outlet id addressing the whole charging station.
const StationWideID = 0

// ChargingRateUnit is the unit in which schedule limits are expressed.
type ChargingRateUnit string

const (
	UnitAmps  ChargingRateUnit = "A"
	UnitWatts ChargingRateUnit = "W"
)

// ParseChargingRateUnit accepts "A" or "W" in any case.
func ParseChargingRateUnit(s string) (ChargingRateUnit, bool) {
	switch s {
	case "A", "a":
		return UnitAmps, true
	case "W", "w":
		return UnitWatts, true
	default:
		return "", false
	}
}

// ProfilePurpose determines how a profile takes part in composition.
type ProfilePurpose string

const (
	PurposeChargingStationMax  ProfilePurpose = "ChargingStationMaxProfile"
	PurposeTxDefault           ProfilePurpose = "TxDefaultProfile"
	PurposeTx                  ProfilePurpose = "TxProfile"
	PurposeExternalConstraints ProfilePurpose = "ChargingStationExternalConstraints"
	PurposePriorityCharging    ProfilePurpose = "PriorityCharging"
	PurposeLocalGeneration     ProfilePurpose = "LocalGeneration"
)

// Purposes lists every purpose in composition precedence order.
var Purposes = []ProfilePurpose{
	PurposeExternalConstraints,
	PurposeChargingStationMax,
	PurposeTxDefault,
	PurposeTx,
	PurposePriorityCharging,
	PurposeLocalGeneration,
}

// Precedence returns the rank of the purpose used to attach provenance when
// limits are equal. Lower ranks take precedence.
func (p ProfilePurpose) Precedence() int {
	switch p {
	case PurposeExternalConstraints:
		return 0
	case PurposeChargingStationMax:
		return 1
	case PurposeTxDefault:
		return 2
	case PurposeTx:
		return 3
	case PurposePriorityCharging, PurposeLocalGeneration:
		return 4
	default:
		return 5
	}
}

// ProfileKind determines how a schedule is anchored in time.
type ProfileKind string

const (
	KindAbsolute  ProfileKind = "Absolute"
	KindRecurring ProfileKind = "Recurring"
	KindRelative  ProfileKind = "Relative"
)

// RecurrencyKind is the repetition interval of a recurring profile.
type RecurrencyKind string

const (
	RecurrencyDaily  RecurrencyKind = "Daily"
	RecurrencyWeekly RecurrencyKind = "Weekly"
)

// Period returns the length of one recurrence.
func (r RecurrencyKind) Period() time.Duration {
	if r == RecurrencyWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// OperationMode restricts what a schedule period allows the outlet to do.
type OperationMode string

const (
	ModeChargingOnly       OperationMode = "ChargingOnly"
	ModeCentralSetpoint    OperationMode = "CentralSetpoint"
	ModeExternalSetpoint   OperationMode = "ExternalSetpoint"
	ModeExternalLimits     OperationMode = "ExternalLimits"
	ModeCentralFrequency   OperationMode = "CentralFrequency"
	ModeLocalFrequency     OperationMode = "LocalFrequency"
	ModeLocalLoadBalancing OperationMode = "LocalLoadBalancing"
	ModeIdle               OperationMode = "Idle"
)

// IsChargingOnly reports whether the mode is ChargingOnly, which is also the
// meaning of an absent mode.
func (m OperationMode) IsChargingOnly() bool {
	return m == "" || m == ModeChargingOnly
}

// PhaseType is the supply type of an outlet.
type PhaseType string

const (
	PhaseAC PhaseType = "AC"
	PhaseDC PhaseType = "DC"
)

// ChargingSchedulePeriod is one step of a schedule. StartPeriod is the offset
// in seconds from the start of the schedule.
type ChargingSchedulePeriod struct {
	StartPeriod        int           `json:"startPeriod" yaml:"startPeriod" validate:"gte=0"`
	Limit              *float64      `json:"limit,omitempty" yaml:"limit,omitempty" validate:"omitempty,gte=0"`
	LimitL2            *float64      `json:"limit_L2,omitempty" yaml:"limit_L2,omitempty" validate:"omitempty,gte=0"`
	LimitL3            *float64      `json:"limit_L3,omitempty" yaml:"limit_L3,omitempty" validate:"omitempty,gte=0"`
	DischargeLimit     *float64      `json:"dischargeLimit,omitempty" yaml:"dischargeLimit,omitempty" validate:"omitempty,lte=0"`
	DischargeLimitL2   *float64      `json:"dischargeLimit_L2,omitempty" yaml:"dischargeLimit_L2,omitempty" validate:"omitempty,lte=0"`
	DischargeLimitL3   *float64      `json:"dischargeLimit_L3,omitempty" yaml:"dischargeLimit_L3,omitempty" validate:"omitempty,lte=0"`
	Setpoint           *float64      `json:"setpoint,omitempty" yaml:"setpoint,omitempty"`
	SetpointL2         *float64      `json:"setpoint_L2,omitempty" yaml:"setpoint_L2,omitempty"`
	SetpointL3         *float64      `json:"setpoint_L3,omitempty" yaml:"setpoint_L3,omitempty"`
	SetpointReactive   *float64      `json:"setpointReactive,omitempty" yaml:"setpointReactive,omitempty"`
	SetpointReactiveL2 *float64      `json:"setpointReactive_L2,omitempty" yaml:"setpointReactive_L2,omitempty"`
	SetpointReactiveL3 *float64      `json:"setpointReactive_L3,omitempty" yaml:"setpointReactive_L3,omitempty"`
	NumberPhases       *int          `json:"numberPhases,omitempty" yaml:"numberPhases,omitempty" validate:"omitempty,min=1,max=3"`
	PhaseToUse         *int          `json:"phaseToUse,omitempty" yaml:"phaseToUse,omitempty" validate:"omitempty,min=1,max=3"`
	OperationMode      OperationMode `json:"operationMode,omitempty" yaml:"operationMode,omitempty"`
}

// ChargingSchedule is a list of periods expressed in one unit.
type ChargingSchedule struct {
	ID               int                      `json:"id" yaml:"id"`
	ChargingRateUnit ChargingRateUnit         `json:"chargingRateUnit" yaml:"chargingRateUnit" validate:"required,oneof=A W"`
	StartSchedule    *time.Time               `json:"startSchedule,omitempty" yaml:"startSchedule,omitempty"`
	Duration         *int                     `json:"duration,omitempty" yaml:"duration,omitempty" validate:"omitempty,gt=0"`
	MinChargingRate  *float64                 `json:"minChargingRate,omitempty" yaml:"minChargingRate,omitempty" validate:"omitempty,gte=0"`
	Periods          []ChargingSchedulePeriod `json:"chargingSchedulePeriod" yaml:"chargingSchedulePeriod" validate:"required,min=1,dive"`
}

// ChargingProfile is an installed charging limit profile. EvseID 0 means the
// profile is installed station-wide.
type ChargingProfile struct {
	ID             int                `json:"id" yaml:"id" validate:"gt=0"`
	EvseID         int                `json:"evseId" yaml:"evseId" validate:"gte=0"`
	StackLevel     int                `json:"stackLevel" yaml:"stackLevel" validate:"gte=0"`
	Purpose        ProfilePurpose     `json:"chargingProfilePurpose" yaml:"chargingProfilePurpose" validate:"required,purpose"`
	Kind           ProfileKind        `json:"chargingProfileKind" yaml:"chargingProfileKind" validate:"required,oneof=Absolute Recurring Relative"`
	RecurrencyKind RecurrencyKind     `json:"recurrencyKind,omitempty" yaml:"recurrencyKind,omitempty" validate:"omitempty,oneof=Daily Weekly"`
	ValidFrom      *time.Time         `json:"validFrom,omitempty" yaml:"validFrom,omitempty"`
	ValidTo        *time.Time         `json:"validTo,omitempty" yaml:"validTo,omitempty"`
	TransactionID  string             `json:"transactionId,omitempty" yaml:"transactionId,omitempty"`
	Schedules      []ChargingSchedule `json:"chargingSchedule" yaml:"chargingSchedule" validate:"required,min=1,max=3,dive"`
}

// Schedule returns the schedule used for projection, or nil when the profile
// has none.
func (p ChargingProfile) Schedule() *ChargingSchedule {
	if len(p.Schedules) == 0 {
		return nil
	}
	return &p.Schedules[0]
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (p ChargingProfile) Clone() ChargingProfile {
	out := p
	out.ValidFrom = cloneTime(p.ValidFrom)
	out.ValidTo = cloneTime(p.ValidTo)
	out.Schedules = make([]ChargingSchedule, len(p.Schedules))
	for i, s := range p.Schedules {
		cs := s
		cs.StartSchedule = cloneTime(s.StartSchedule)
		cs.Duration = clonePtr(s.Duration)
		cs.MinChargingRate = clonePtr(s.MinChargingRate)
		cs.Periods = make([]ChargingSchedulePeriod, len(s.Periods))
		for j, per := range s.Periods {
			cs.Periods[j] = per.Clone()
		}
		out.Schedules[i] = cs
	}
	return out
}

// Clone returns a deep copy of the period.
func (p ChargingSchedulePeriod) Clone() ChargingSchedulePeriod {
	out := p
	out.Limit = clonePtr(p.Limit)
	out.LimitL2 = clonePtr(p.LimitL2)
	out.LimitL3 = clonePtr(p.LimitL3)
	out.DischargeLimit = clonePtr(p.DischargeLimit)
	out.DischargeLimitL2 = clonePtr(p.DischargeLimitL2)
	out.DischargeLimitL3 = clonePtr(p.DischargeLimitL3)
	out.Setpoint = clonePtr(p.Setpoint)
	out.SetpointL2 = clonePtr(p.SetpointL2)
	out.SetpointL3 = clonePtr(p.SetpointL3)
	out.SetpointReactive = clonePtr(p.SetpointReactive)
	out.SetpointReactiveL2 = clonePtr(p.SetpointReactiveL2)
	out.SetpointReactiveL3 = clonePtr(p.SetpointReactiveL3)
	out.NumberPhases = clonePtr(p.NumberPhases)
	out.PhaseToUse = clonePtr(p.PhaseToUse)
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(t *time.Time) *time.Time { return clonePtr(t) }

// Float returns a pointer to v. It keeps literals in tests and fixtures short.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }
