// Package publisher delivers computed composite schedules to downstream
// consumers such as MQTT subscribers or a Kafka topic.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/smartcharging/core/logger"
	"github.com/kilianp07/smartcharging/core/metrics"
	"github.com/kilianp07/smartcharging/core/model"
)

// SchedulePublisher pushes a composite schedule of one station outlet.
type SchedulePublisher interface {
	Name() string
	Publish(ctx context.Context, stationID string, cs model.CompositeSchedule) error
	Close() error
}

// Nop drops every schedule.
type Nop struct{}

func (Nop) Name() string { return "nop" }

func (Nop) Publish(context.Context, string, model.CompositeSchedule) error { return nil }

func (Nop) Close() error { return nil }

// Multi publishes to every publisher in turn. A failing publisher does not
// prevent delivery to the others.
type Multi struct {
	Publishers []SchedulePublisher
	Metrics    metrics.MetricsSink
	Log        logger.Logger
}

// NewMulti wraps publishers. Nil metrics and logger fall back to no-ops.
func NewMulti(m metrics.MetricsSink, log logger.Logger, pubs ...SchedulePublisher) *Multi {
	if m == nil {
		m = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Multi{Publishers: pubs, Metrics: m, Log: log}
}

func (m *Multi) Name() string { return "multi" }

// Publish forwards cs and joins the errors of the failing publishers.
func (m *Multi) Publish(ctx context.Context, stationID string, cs model.CompositeSchedule) error {
	rec, _ := m.Metrics.(metrics.PublishRecorder)
	var errs []error
	for _, p := range m.Publishers {
		start := time.Now()
		err := p.Publish(ctx, stationID, cs)
		if rec != nil {
			_ = rec.RecordPublish(metrics.PublishEvent{
				Publisher: p.Name(),
				EvseID:    cs.EvseID,
				Success:   err == nil,
				Latency:   time.Since(start),
				Time:      start,
			})
		}
		if err != nil {
			m.Log.Errorf("publisher %s: evse %d: %v", p.Name(), cs.EvseID, err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m *Multi) Close() error {
	var errs []error
	for _, p := range m.Publishers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
