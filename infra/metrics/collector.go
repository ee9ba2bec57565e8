package metrics

import (
	"context"
	"time"

	coremetrics "github.com/kilianp07/smartcharging/core/metrics"
	"github.com/kilianp07/smartcharging/internal/eventbus"
)

// StartEventCollector subscribes to the change bus and records profile events
// on sinks that support them. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus, sink coremetrics.MetricsSink, stationID string) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.ProfileRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, ok := ev.(eventbus.ProfileChanged)
				if !ok {
					continue
				}
				at := e.Time
				if at.IsZero() {
					at = time.Now()
				}
				_ = rec.RecordProfileEvent(coremetrics.ProfileEvent{
					StationID: stationID,
					EvseID:    e.EvseID,
					ProfileID: e.ProfileID,
					Purpose:   e.Purpose,
					Action:    e.Action,
					Time:      at,
				})
			}
		}
	}()
}
