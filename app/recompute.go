package app

import (
	"context"
	"strconv"
	"time"

	"github.com/kilianp07/smartcharging/core/composite"
	"github.com/kilianp07/smartcharging/core/model"
	"github.com/kilianp07/smartcharging/internal/eventbus"
)

// recompute publishes every schedule at start and on each tick, and the
// affected schedules on every change. Changes already queued when one is
// handled are folded into the same run.
func (s *Service) recompute(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	var tick <-chan time.Time
	if iv := s.cfg.Recompute.Interval(); iv > 0 {
		t := time.NewTicker(iv)
		defer t.Stop()
		tick = t.C
	}

	s.PublishAll(ctx, nil)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.PublishAll(ctx, nil)
		case ev, ok := <-sub:
			if !ok {
				return
			}
			affected := map[int]bool{}
			s.mark(affected, ev)
		drain:
			for {
				select {
				case ev, ok := <-sub:
					if !ok {
						break drain
					}
					s.mark(affected, ev)
				default:
					break drain
				}
			}
			s.PublishAll(ctx, affected)
		}
	}
}

// mark flags the outlets whose schedule a change can alter. Every change
// also moves the station-wide sum.
func (s *Service) mark(affected map[int]bool, ev eventbus.Change) {
	affected[model.StationWideID] = true
	if ev.Evse() == model.StationWideID {
		for id := 1; id <= s.outlets.NumberOfOutlets(); id++ {
			affected[id] = true
		}
		return
	}
	affected[ev.Evse()] = true
}

// PublishAll computes the schedules over the configured horizon and
// publishes those in only. A nil set publishes every outlet.
func (s *Service) PublishAll(ctx context.Context, only map[int]bool) {
	start := s.now()
	unit, _ := model.ParseChargingRateUnit(s.cfg.Recompute.Unit)
	req := composite.Request{
		Start:            start,
		End:              start.Add(s.cfg.Recompute.Horizon()),
		Unit:             unit,
		IncludeDischarge: s.cfg.Recompute.IncludeDischarge,
	}
	all, err := s.engine.CalculateAll(ctx, req)
	if err != nil {
		s.log.Errorf("recompute: %v", err)
		s.mon.CaptureException(err, map[string]string{"station_id": s.station.ID()})
		return
	}
	for _, cs := range all {
		if only != nil && !only[cs.EvseID] {
			continue
		}
		if err := s.pub.Publish(ctx, s.station.ID(), cs); err != nil {
			s.log.Warnf("publish evse %d: %v", cs.EvseID, err)
			s.mon.CaptureException(err, map[string]string{
				"station_id": s.station.ID(),
				"evse_id":    strconv.Itoa(cs.EvseID),
			})
		}
	}
}
