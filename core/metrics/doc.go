// Package metrics defines the sinks recording composite schedule activity.
// Every sink records calculations; ScheduleRecorder, ProfileRecorder and
// PublishRecorder are optional and detected with type assertions. Sinks like
// PromSink and InfluxSink live in infra/metrics and register themselves with
// RegisterMetricsSink. NewMetricsSink returns a MultiSink automatically when
// several sinks are configured.
package metrics
