package store

import (
	"context"
	"slices"
	"sync"

	"github.com/kilianp07/smartcharging/core/model"
)

// MemoryStore keeps profiles in a slice ordered by installation.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles []model.ChargingProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) ProfilesForOutlet(_ context.Context, evseID int) ([]model.ChargingProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ChargingProfile
	for _, p := range s.profiles {
		if p.EvseID == evseID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) AllProfiles(context.Context) ([]model.ChargingProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ChargingProfile, len(s.profiles))
	for i, p := range s.profiles {
		out[i] = p.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id int) (model.ChargingProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.profiles[i].Clone(), nil
	}
	return model.ChargingProfile{}, ErrNotFound
}

func (s *MemoryStore) Put(_ context.Context, p model.ChargingProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(p.ID); i >= 0 {
		s.profiles = slices.Delete(s.profiles, i, i+1)
	}
	s.profiles = append(s.profiles, p.Clone())
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	s.profiles = slices.Delete(s.profiles, i, i+1)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) index(id int) int {
	return slices.IndexFunc(s.profiles, func(p model.ChargingProfile) bool { return p.ID == id })
}
