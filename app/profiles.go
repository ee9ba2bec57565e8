package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kilianp07/smartcharging/core/composite"
	coremetrics "github.com/kilianp07/smartcharging/core/metrics"
	"github.com/kilianp07/smartcharging/core/model"
	"github.com/kilianp07/smartcharging/core/station"
	"github.com/kilianp07/smartcharging/core/store"
	"github.com/kilianp07/smartcharging/internal/eventbus"
)

// Calculate computes one composite schedule.
func (s *Service) Calculate(ctx context.Context, req composite.Request) (model.CompositeSchedule, error) {
	return s.engine.Calculate(ctx, req)
}

// CalculateAll computes the schedules of the station and of every outlet.
func (s *Service) CalculateAll(ctx context.Context, req composite.Request) ([]model.CompositeSchedule, error) {
	return s.engine.CalculateAll(ctx, req)
}

func (s *Service) checkOutlet(evseID int) error {
	if evseID < 0 || evseID > s.outlets.NumberOfOutlets() {
		return fmt.Errorf("evse %d: %w", evseID, station.ErrUnknownOutlet)
	}
	return nil
}

// Profiles lists the profiles installed on an outlet, in installation order.
func (s *Service) Profiles(ctx context.Context, evseID int) ([]model.ChargingProfile, error) {
	if err := s.checkOutlet(evseID); err != nil {
		return nil, err
	}
	return s.store.ProfilesForOutlet(ctx, evseID)
}

// InstallProfile validates p and installs it, replacing any profile with the
// same id. A TxProfile needs a running session on its outlet and inherits the
// session's transaction id when it carries none.
func (s *Service) InstallProfile(ctx context.Context, p model.ChargingProfile) error {
	if err := s.admit(&p); err != nil {
		s.recordProfile(p, coremetrics.ProfileRejected, err.Error())
		return err
	}
	if err := s.store.Put(ctx, p); err != nil {
		return fmt.Errorf("install profile %d: %w", p.ID, err)
	}
	s.log.Infof("installed %s %d on evse %d at stack level %d", p.Purpose, p.ID, p.EvseID, p.StackLevel)
	s.changed(p, coremetrics.ProfileInstalled)
	return nil
}

func (s *Service) admit(p *model.ChargingProfile) error {
	if err := s.checkOutlet(p.EvseID); err != nil {
		return err
	}
	if p.Purpose == model.PurposeTx {
		if err := s.bindTransaction(p); err != nil {
			return err
		}
	}
	return model.Validate(*p)
}

func (s *Service) bindTransaction(p *model.ChargingProfile) error {
	tx, ok := s.outlets.TransactionID(p.EvseID)
	if !ok {
		return fmt.Errorf("TxProfile %d on evse %d: %w", p.ID, p.EvseID, station.ErrNoSession)
	}
	switch p.TransactionID {
	case "":
		p.TransactionID = tx
	case tx:
	default:
		return &model.ValidationError{
			ProfileID: p.ID,
			Problems:  []string{fmt.Sprintf("transactionId %s does not match the running transaction", p.TransactionID)},
		}
	}
	return nil
}

// DeleteProfile removes the profile with the given id.
func (s *Service) DeleteProfile(ctx context.Context, id int) error {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("profile %d: %w", id, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("profile %d: %w", id, err)
	}
	s.changed(p, coremetrics.ProfileRemoved)
	return nil
}

// ClearProfiles removes every profile matching f.
func (s *Service) ClearProfiles(ctx context.Context, f store.Filter) ([]model.ChargingProfile, error) {
	removed, err := store.Clear(ctx, s.store, f)
	for _, p := range removed {
		s.changed(p, coremetrics.ProfileRemoved)
	}
	if err != nil {
		return removed, fmt.Errorf("clear profiles: %w", err)
	}
	return removed, nil
}

// StartSession begins a transaction on an outlet. An empty transaction id
// is generated.
func (s *Service) StartSession(_ context.Context, evseID int, transactionID string) error {
	if transactionID == "" {
		transactionID = uuid.NewString()
	}
	sess, err := s.outlets.StartSession(evseID, transactionID, s.now())
	if err != nil {
		return err
	}
	s.log.Infof("session %s started on evse %d", sess.TransactionID, evseID)
	s.bus.Publish(eventbus.SessionChanged{EvseID: evseID, TransactionID: sess.TransactionID, Active: true, Time: sess.Start})
	return nil
}

// StopSession ends the transaction of an outlet and removes its TxProfiles.
func (s *Service) StopSession(ctx context.Context, evseID int) error {
	sess, err := s.outlets.StopSession(evseID)
	if err != nil {
		return err
	}
	s.log.Infof("session %s stopped on evse %d", sess.TransactionID, evseID)
	s.bus.Publish(eventbus.SessionChanged{EvseID: evseID, TransactionID: sess.TransactionID, Time: s.now()})
	_, err = s.ClearProfiles(ctx, store.Filter{EvseID: &evseID, Purpose: model.PurposeTx})
	return err
}

// Sessions lists the running sessions.
func (s *Service) Sessions() []station.Session { return s.outlets.Sessions() }

func (s *Service) changed(p model.ChargingProfile, action string) {
	s.bus.Publish(eventbus.ProfileChanged{
		EvseID:    p.EvseID,
		ProfileID: p.ID,
		Purpose:   p.Purpose,
		Action:    action,
		Time:      s.now(),
	})
}

// recordProfile reports rejections directly; they never reach the bus.
func (s *Service) recordProfile(p model.ChargingProfile, action, reason string) {
	rec, ok := s.sink.(coremetrics.ProfileRecorder)
	if !ok {
		return
	}
	err := rec.RecordProfileEvent(coremetrics.ProfileEvent{
		StationID: s.station.ID(),
		EvseID:    p.EvseID,
		ProfileID: p.ID,
		Purpose:   p.Purpose,
		Action:    action,
		Reason:    reason,
		Time:      s.now(),
	})
	if err != nil {
		s.log.Errorf("service: record profile event: %v", err)
	}
}
