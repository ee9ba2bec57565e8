// Package station provides the outlet state and station configuration
// collaborators: a config-backed station description and an in-memory
// session tracker.
package station

import (
	"github.com/kilianp07/smartcharging/core/model"
)

// Station serves the configured station settings.
type Station struct {
	cfg     Config
	units   []model.ChargingRateUnit
	ignored []model.ProfilePurpose
}

// New builds a Station from a validated configuration.
func New(cfg Config) (*Station, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	units, _ := cfg.Units()
	ignored := make([]model.ProfilePurpose, 0, len(cfg.IgnoredPurposesOffline))
	for _, p := range cfg.IgnoredPurposesOffline {
		ignored = append(ignored, model.ProfilePurpose(p))
	}
	return &Station{cfg: cfg, units: units, ignored: ignored}, nil
}

func (s *Station) ID() string     { return s.cfg.ID }
func (s *Station) Config() Config { return s.cfg }

func (s *Station) DefaultLimit(unit model.ChargingRateUnit) float64 {
	if unit == model.UnitWatts {
		return s.cfg.DefaultLimitWatts
	}
	return s.cfg.DefaultLimitAmps
}

func (s *Station) SupportedRateUnits() []model.ChargingRateUnit { return s.units }
func (s *Station) NominalVoltage() float64                      { return s.cfg.NominalVoltage }
func (s *Station) SupportsACPhaseSwitching() bool               { return s.cfg.ACPhaseSwitching }
func (s *Station) DefaultNumberOfPhases() int                   { return s.cfg.DefaultNumberPhases }
func (s *Station) CoalesceTolerance() int                       { return *s.cfg.CoalesceToleranceSeconds }
func (s *Station) IgnoredPurposesOffline() []model.ProfilePurpose {
	return s.ignored
}
