// Package app wires the engine, the profile surfaces and the publishers into
// a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/smartcharging/api/schedule"
	"github.com/kilianp07/smartcharging/config"
	"github.com/kilianp07/smartcharging/core/composite"
	coremetrics "github.com/kilianp07/smartcharging/core/metrics"
	coremon "github.com/kilianp07/smartcharging/core/monitoring"
	"github.com/kilianp07/smartcharging/core/publisher"
	"github.com/kilianp07/smartcharging/core/station"
	"github.com/kilianp07/smartcharging/core/store"
	"github.com/kilianp07/smartcharging/infra/kafka"
	"github.com/kilianp07/smartcharging/infra/logger"
	"github.com/kilianp07/smartcharging/infra/metrics"
	"github.com/kilianp07/smartcharging/infra/monitoring"
	"github.com/kilianp07/smartcharging/infra/mqtt"
	"github.com/kilianp07/smartcharging/internal/eventbus"

	// Durable profile stores register themselves.
	_ "github.com/kilianp07/smartcharging/infra/store"
)

// Service owns the station state, the profile store and the delivery of
// composite schedules.
type Service struct {
	cfg     *config.Config
	station *station.Station
	outlets *station.Outlets
	store   store.ProfileStore
	engine  *composite.Engine
	sink    coremetrics.MetricsSink
	pub     publisher.SchedulePublisher
	bus     *eventbus.Bus
	mqtt    *mqtt.Client
	mon     coremon.Monitor
	log     logger.Logger
	now     func() time.Time
}

// Option overrides a dependency otherwise built from the configuration.
type Option func(*options)

type options struct {
	store      store.ProfileStore
	sink       coremetrics.MetricsSink
	publishers []publisher.SchedulePublisher
	monitor    coremon.Monitor
	now        func() time.Time
}

// WithStore uses s instead of the configured store module.
func WithStore(s store.ProfileStore) Option { return func(o *options) { o.store = s } }

// WithMetrics uses m instead of the configured sinks.
func WithMetrics(m coremetrics.MetricsSink) Option { return func(o *options) { o.sink = m } }

// WithPublishers uses pubs instead of the configured publishers.
func WithPublishers(pubs ...publisher.SchedulePublisher) Option {
	return func(o *options) { o.publishers = pubs }
}

// WithMonitor reports errors to m instead of the configured Sentry client.
func WithMonitor(m coremon.Monitor) Option { return func(o *options) { o.monitor = m } }

// WithClock sets the time source of sessions and recomputation.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.New("service")

	st, err := station.New(cfg.Station)
	if err != nil {
		return nil, fmt.Errorf("station: %w", err)
	}

	s := &Service{
		cfg:     cfg,
		station: st,
		outlets: station.NewOutlets(cfg.Station.Outlets),
		bus:     eventbus.New(),
		log:     log,
		now:     o.now,
	}

	s.mon = o.monitor
	if s.mon == nil {
		if s.mon, err = monitoring.NewSentryMonitor(cfg.Sentry); err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
	}

	s.sink = o.sink
	if s.sink == nil {
		if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	s.store = o.store
	if s.store == nil {
		if s.store, err = store.New(cfg.Store); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
	}

	pubs := o.publishers
	if pubs == nil {
		if pubs, err = s.buildPublishers(); err != nil {
			_ = s.store.Close()
			return nil, fmt.Errorf("publishers: %w", err)
		}
	}
	s.pub = publisher.NewMulti(s.sink, logger.New("publisher"), pubs...)

	s.engine = composite.New(s.store, s.outlets, st,
		composite.WithLogger(logger.New("composite")),
		composite.WithMetrics(s.sink),
		composite.WithStationID(st.ID()),
		composite.WithClock(s.now),
	)
	return s, nil
}

// buildPublishers connects the MQTT client when a broker is configured and
// shares it with the "mqtt" publisher. A "kafka" entry without settings uses
// the kafka section.
func (s *Service) buildPublishers() ([]publisher.SchedulePublisher, error) {
	attached := map[string]publisher.SchedulePublisher{}
	if s.cfg.MQTT.Enabled() {
		c, err := mqtt.NewClient(s.cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.mqtt = c
		attached["mqtt"] = c
	}
	for _, p := range s.cfg.Publishers {
		if p.Type == "kafka" && len(p.Conf) == 0 && len(s.cfg.Kafka.Brokers) > 0 {
			k, err := kafka.New(s.cfg.Kafka)
			if err != nil {
				return nil, err
			}
			attached["kafka"] = k
		}
	}
	pubs, err := publisher.Build(s.cfg.Publishers, attached)
	if err != nil {
		for name, p := range attached {
			if name != "mqtt" {
				_ = p.Close()
			}
		}
		if s.mqtt != nil {
			s.mqtt.Disconnect()
		}
		return nil, err
	}
	return pubs, nil
}

// Engine exposes the composite engine.
func (s *Service) Engine() *composite.Engine { return s.engine }

// Station exposes the station description.
func (s *Service) Station() *station.Station { return s.station }

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	return schedule.NewHandler(s, s.cfg.HTTP.Token)
}

// Run serves the configured surfaces and recomputes schedules until ctx is
// done.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.StartEventCollector(ctx, s.bus, s.sink, s.station.ID())
	if s.mqtt != nil {
		s.mqtt.Serve(s)
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr(port)); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	errc := make(chan error, 1)
	if !s.cfg.HTTP.Disabled() {
		srv := &http.Server{Addr: s.cfg.HTTP.Address, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			shutdown, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdown)
		}()
		go func() {
			s.log.Infof("http api listening on %s", s.cfg.HTTP.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("http server: %w", err)
				cancel()
			}
		}()
	}

	s.recompute(ctx)

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	var errs []error
	errs = append(errs, s.pub.Close())
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	errs = append(errs, s.store.Close())
	s.mon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

// addr accepts "9090" as well as ":9090" or "host:9090".
func addr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
