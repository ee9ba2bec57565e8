package metrics

import "errors"

// MultiSink fans events out to several sinks. Optional recorders are only
// forwarded to the sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCalculation forwards to all sinks and joins their errors.
func (m *MultiSink) RecordCalculation(ev CalculationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordCalculation(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSchedule(ev ScheduleEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ScheduleRecorder); ok {
			errs = append(errs, rec.RecordSchedule(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordProfileEvent(ev ProfileEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ProfileRecorder); ok {
			errs = append(errs, rec.RecordProfileEvent(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordPublish(ev PublishEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(PublishRecorder); ok {
			errs = append(errs, rec.RecordPublish(ev))
		}
	}
	return errors.Join(errs...)
}
