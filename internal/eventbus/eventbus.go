// Package eventbus carries change notifications between the profile and
// session surfaces and the recompute loop.
package eventbus

import (
	"time"

	"github.com/kilianp07/smartcharging/core/model"
)

// Change is anything that may alter composite schedules. Evse returns the
// affected outlet; 0 means every outlet.
type Change interface {
	Evse() int
}

// ProfileChanged is published when a profile is installed or removed.
type ProfileChanged struct {
	EvseID    int
	ProfileID int
	Purpose   model.ProfilePurpose
	// Action is "installed" or "removed".
	Action string
	Time   time.Time
}

func (e ProfileChanged) Evse() int { return e.EvseID }

// SessionChanged is published when a transaction starts or stops.
type SessionChanged struct {
	EvseID        int
	TransactionID string
	Active        bool
	Time          time.Time
}

func (e SessionChanged) Evse() int { return e.EvseID }

// Bus is the change bus shared by the service.
type Bus = TypedBus[Change]

// New creates a change bus.
func New() *Bus { return NewTyped[Change]() }
