package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists the structural problems of a charging profile.
type ValidationError struct {
	ProfileID int      `json:"profile_id"`
	Problems  []string `json:"problems"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile %d invalid: %s", e.ProfileID, strings.Join(e.Problems, "; "))
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("purpose", func(fl validator.FieldLevel) bool {
			p := ProfilePurpose(fl.Field().String())
			return p.Precedence() < 5
		})
	})
	return validate
}

// Validate checks that a profile is well-formed enough to be projected: field
// ranges, a first period at offset 0 with strictly ascending offsets, and the
// anchoring rules of its kind.
func Validate(p ChargingProfile) error {
	var problems []string
	if err := structValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if p.Kind == KindRecurring && p.RecurrencyKind == "" {
		problems = append(problems, "recurring profile without recurrencyKind")
	}
	if p.Purpose == PurposeTx && p.TransactionID == "" {
		problems = append(problems, "TxProfile without transactionId")
	}
	if p.Purpose == PurposeChargingStationMax && p.EvseID != StationWideID {
		problems = append(problems, "ChargingStationMaxProfile must be station-wide")
	}
	if p.ValidFrom != nil && p.ValidTo != nil && !p.ValidTo.After(*p.ValidFrom) {
		problems = append(problems, "validTo not after validFrom")
	}
	if s := p.Schedule(); s != nil {
		switch p.Kind {
		case KindAbsolute, KindRecurring:
			if s.StartSchedule == nil {
				problems = append(problems, fmt.Sprintf("%s profile without startSchedule", p.Kind))
			}
		case KindRelative:
			if s.StartSchedule != nil {
				problems = append(problems, "relative profile with startSchedule")
			}
		}
		problems = append(problems, periodProblems(s.Periods)...)
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{ProfileID: p.ID, Problems: problems}
}

func periodProblems(periods []ChargingSchedulePeriod) []string {
	var out []string
	for i, per := range periods {
		if i == 0 {
			if per.StartPeriod != 0 {
				out = append(out, fmt.Sprintf("first startPeriod is %d, want 0", per.StartPeriod))
			}
			continue
		}
		if per.StartPeriod <= periods[i-1].StartPeriod {
			out = append(out, fmt.Sprintf("startPeriod %d at index %d not ascending", per.StartPeriod, i))
		}
	}
	return out
}
