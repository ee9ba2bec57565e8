// Package store defines the profile store collaborator and an in-memory
// implementation. Durable backends live in infra/store and register
// themselves with Register.
package store

import (
	"context"
	"errors"

	"github.com/kilianp07/smartcharging/core/factory"
	"github.com/kilianp07/smartcharging/core/model"
)

// ErrNotFound is returned when no profile has the requested id.
var ErrNotFound = errors.New("charging profile not found")

// ProfileStore keeps installed profiles in installation order. Put on an
// existing id replaces the profile and counts as a new installation.
type ProfileStore interface {
	ProfilesForOutlet(ctx context.Context, evseID int) ([]model.ChargingProfile, error)
	AllProfiles(ctx context.Context) ([]model.ChargingProfile, error)
	Get(ctx context.Context, id int) (model.ChargingProfile, error)
	Put(ctx context.Context, p model.ChargingProfile) error
	Delete(ctx context.Context, id int) error
	Close() error
}

// Filter selects profiles. Nil or empty fields match everything.
type Filter struct {
	ProfileID  *int
	EvseID     *int
	Purpose    model.ProfilePurpose
	StackLevel *int
}

// Matches reports whether p satisfies every set field.
func (f Filter) Matches(p model.ChargingProfile) bool {
	switch {
	case f.ProfileID != nil && p.ID != *f.ProfileID:
		return false
	case f.EvseID != nil && p.EvseID != *f.EvseID:
		return false
	case f.Purpose != "" && p.Purpose != f.Purpose:
		return false
	case f.StackLevel != nil && p.StackLevel != *f.StackLevel:
		return false
	}
	return true
}

// Clear deletes every profile matching f and returns the removed profiles.
func Clear(ctx context.Context, s ProfileStore, f Filter) ([]model.ChargingProfile, error) {
	all, err := s.AllProfiles(ctx)
	if err != nil {
		return nil, err
	}
	var removed []model.ChargingProfile
	for _, p := range all {
		if !f.Matches(p) {
			continue
		}
		if err := s.Delete(ctx, p.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}

var registry = factory.NewRegistry[ProfileStore]()

func init() {
	_ = Register("memory", func(map[string]any) (ProfileStore, error) {
		return NewMemoryStore(), nil
	})
}

// Register adds a store factory identified by name.
func Register(name string, f factory.Factory[ProfileStore]) error {
	return registry.Register(name, f)
}

// New creates the store described by cfg. An empty type selects memory.
func New(cfg factory.ModuleConfig) (ProfileStore, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return registry.Create(cfg)
}
