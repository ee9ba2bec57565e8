package station

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kilianp07/smartcharging/core/model"
)

// OutletConfig describes one physical outlet (EVSE).
type OutletConfig struct {
	ID         int    `json:"id"`
	PhaseType  string `json:"phase_type"`
	Connectors int    `json:"connectors"`
}

// Config describes the charging station.
type Config struct {
	ID                  string         `json:"id"`
	Outlets             []OutletConfig `json:"outlets"`
	DefaultLimitAmps    float64        `json:"default_limit_amps"`
	DefaultLimitWatts   float64        `json:"default_limit_watts"`
	DefaultNumberPhases int            `json:"default_number_phases"`
	NominalVoltage      float64        `json:"nominal_voltage"`
	// SupportedRateUnits is a comma separated list, the first entry being the
	// unit used when a request names none.
	SupportedRateUnits string `json:"supported_rate_units"`
	ACPhaseSwitching   bool   `json:"ac_phase_switching"`
	// CoalesceToleranceSeconds is a pointer since 0 disables coalescing.
	CoalesceToleranceSeconds *int     `json:"coalesce_tolerance_seconds"`
	IgnoredPurposesOffline   []string `json:"ignored_purposes_offline"`
}

// SetDefaults applies fallback values for optional fields.
func (c *Config) SetDefaults() {
	if c.ID == "" {
		c.ID = "station"
	}
	if len(c.Outlets) == 0 {
		c.Outlets = []OutletConfig{{ID: 1}}
	}
	for i := range c.Outlets {
		if c.Outlets[i].PhaseType == "" {
			c.Outlets[i].PhaseType = string(model.PhaseAC)
		}
		if c.Outlets[i].Connectors == 0 {
			c.Outlets[i].Connectors = 1
		}
	}
	if c.DefaultLimitAmps == 0 {
		c.DefaultLimitAmps = 48
	}
	if c.DefaultLimitWatts == 0 {
		c.DefaultLimitWatts = 33120
	}
	if c.DefaultNumberPhases == 0 {
		c.DefaultNumberPhases = 3
	}
	if c.NominalVoltage == 0 {
		c.NominalVoltage = 230
	}
	if c.SupportedRateUnits == "" {
		c.SupportedRateUnits = "A,W"
	}
	if c.CoalesceToleranceSeconds == nil {
		v := 9
		c.CoalesceToleranceSeconds = &v
	}
}

// Validate checks the station description.
func (c Config) Validate() error {
	ids := make([]int, 0, len(c.Outlets))
	for _, o := range c.Outlets {
		if o.ID <= 0 {
			return fmt.Errorf("outlet id must be >0, got %d", o.ID)
		}
		if o.PhaseType != string(model.PhaseAC) && o.PhaseType != string(model.PhaseDC) {
			return fmt.Errorf("outlet %d: unknown phase_type %s", o.ID, o.PhaseType)
		}
		ids = append(ids, o.ID)
	}
	slices.Sort(ids)
	for i, id := range ids {
		if id != i+1 {
			return fmt.Errorf("outlet ids must be 1..%d without gaps", len(ids))
		}
	}
	if c.DefaultNumberPhases < 1 || c.DefaultNumberPhases > 3 {
		return fmt.Errorf("default_number_phases must be 1..3")
	}
	if c.NominalVoltage <= 0 {
		return fmt.Errorf("nominal_voltage must be >0")
	}
	if _, err := c.Units(); err != nil {
		return err
	}
	if c.CoalesceToleranceSeconds != nil && *c.CoalesceToleranceSeconds < 0 {
		return fmt.Errorf("coalesce_tolerance_seconds must be >=0")
	}
	for _, p := range c.IgnoredPurposesOffline {
		if !slices.Contains(model.Purposes, model.ProfilePurpose(p)) {
			return fmt.Errorf("ignored_purposes_offline: unknown purpose %s", p)
		}
	}
	return nil
}

// Units parses SupportedRateUnits.
func (c Config) Units() ([]model.ChargingRateUnit, error) {
	var units []model.ChargingRateUnit
	for _, s := range strings.Split(c.SupportedRateUnits, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		u, ok := model.ParseChargingRateUnit(s)
		if !ok {
			return nil, fmt.Errorf("supported_rate_units: unknown unit %s", s)
		}
		if !slices.Contains(units, u) {
			units = append(units, u)
		}
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("supported_rate_units is empty")
	}
	return units, nil
}
