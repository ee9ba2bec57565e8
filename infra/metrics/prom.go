package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/kilianp07/smartcharging/core/metrics"
)

// PromSink records engine activity in Prometheus metrics.
type PromSink struct {
	calculations *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	periods      *prometheus.GaugeVec
	limit        *prometheus.GaugeVec
	profiles     *prometheus.CounterVec
	publishes    *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately, see StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "composite_calculations_total",
			Help: "Total number of composite schedule calculations",
		}, []string{"evse_id", "unit", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "composite_calculation_seconds",
			Help:    "Time spent computing a composite schedule",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"evse_id"}),
		periods: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "composite_schedule_periods",
			Help: "Number of periods in the last composite schedule",
		}, []string{"evse_id"}),
		limit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "composite_schedule_first_limit",
			Help: "Limit of the first period of the last composite schedule",
		}, []string{"evse_id", "unit"}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "charging_profile_events_total",
			Help: "Charging profile installations, removals and rejections",
		}, []string{"purpose", "action"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "composite_publish_total",
			Help: "Composite schedule publications per publisher",
		}, []string{"publisher", "success"}),
	}
	var err error
	if s.calculations, err = register(reg, s.calculations); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.periods, err = register(reg, s.periods); err != nil {
		return nil, err
	}
	if s.limit, err = register(reg, s.limit); err != nil {
		return nil, err
	}
	if s.profiles, err = register(reg, s.profiles); err != nil {
		return nil, err
	}
	if s.publishes, err = register(reg, s.publishes); err != nil {
		return nil, err
	}
	return s, nil
}

// register reuses an already registered collector of the same type so that
// several sinks can share a registerer.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCalculation counts the calculation and observes its latency.
func (s *PromSink) RecordCalculation(ev coremetrics.CalculationEvent) error {
	evse := strconv.Itoa(ev.EvseID)
	result := "ok"
	if ev.Error != "" {
		result = "error"
	}
	s.calculations.WithLabelValues(evse, string(ev.Unit), result).Inc()
	s.latency.WithLabelValues(evse).Observe(ev.Latency.Seconds())
	if ev.Error == "" {
		s.periods.WithLabelValues(evse).Set(float64(ev.Periods))
	}
	return nil
}

// RecordSchedule exposes the limit currently in force.
func (s *PromSink) RecordSchedule(ev coremetrics.ScheduleEvent) error {
	cs := ev.Schedule
	if len(cs.Periods) == 0 || cs.Periods[0].Limit == nil {
		return nil
	}
	s.limit.WithLabelValues(strconv.Itoa(cs.EvseID), string(cs.ChargingRateUnit)).Set(*cs.Periods[0].Limit)
	return nil
}

// RecordProfileEvent counts profile changes per purpose.
func (s *PromSink) RecordProfileEvent(ev coremetrics.ProfileEvent) error {
	s.profiles.WithLabelValues(string(ev.Purpose), ev.Action).Inc()
	return nil
}

// RecordPublish counts schedule publications.
func (s *PromSink) RecordPublish(ev coremetrics.PublishEvent) error {
	s.publishes.WithLabelValues(ev.Publisher, strconv.FormatBool(ev.Success)).Inc()
	return nil
}

// StartPromServer serves the default registry on addr until ctx is done.
func StartPromServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
