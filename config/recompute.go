package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/smartcharging/core/model"
)

// RecomputeConfig drives the periodic recalculation and publication of
// composite schedules.
type RecomputeConfig struct {
	// IntervalSeconds below zero disables the periodic run; changes are
	// still published.
	IntervalSeconds int `json:"interval_seconds"`
	HorizonSeconds  int `json:"horizon_seconds"`
	// Unit of the published schedules. Empty uses the first supported unit.
	Unit string `json:"unit"`
	// IncludeDischarge adds discharge limits to published schedules.
	IncludeDischarge bool `json:"include_discharge"`
}

func (c *RecomputeConfig) SetDefaults() {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 60
	}
	if c.HorizonSeconds == 0 {
		c.HorizonSeconds = 86400
	}
}

func (c RecomputeConfig) Validate() error {
	if c.HorizonSeconds <= 0 {
		return fmt.Errorf("recompute: horizon_seconds must be positive")
	}
	if c.Unit != "" {
		if _, ok := model.ParseChargingRateUnit(c.Unit); !ok {
			return fmt.Errorf("recompute: unknown unit %s", c.Unit)
		}
	}
	return nil
}

// Interval is zero when periodic recomputation is disabled.
func (c RecomputeConfig) Interval() time.Duration {
	if c.IntervalSeconds < 0 {
		return 0
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c RecomputeConfig) Horizon() time.Duration {
	return time.Duration(c.HorizonSeconds) * time.Second
}
