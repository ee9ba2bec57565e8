package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/smartcharging/core/metrics"
	"github.com/kilianp07/smartcharging/infra/logger"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// StationID tags every point.
	StationID string `json:"station_id"`
}

// InfluxSink writes calculations and composite periods to InfluxDB using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	station  string
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		station:  cfg.StationID,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) stationID(id string) string {
	if id != "" {
		return id
	}
	return s.station
}

// RecordCalculation writes one calculation point.
func (s *InfluxSink) RecordCalculation(ev coremetrics.CalculationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("composite_calculation").
		AddTag("station_id", s.stationID(ev.StationID)).
		AddTag("evse_id", strconv.Itoa(ev.EvseID)).
		AddTag("unit", string(ev.Unit)).
		AddTag("success", strconv.FormatBool(ev.Error == "")).
		AddField("periods", ev.Periods).
		AddField("excluded", ev.Excluded).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000))
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedule writes one point per composite period, timestamped at the
// period start.
func (s *InfluxSink) RecordSchedule(ev coremetrics.ScheduleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cs := ev.Schedule
	points := make([]*write.Point, 0, len(cs.Periods))
	for i, period := range cs.Periods {
		p := write.NewPointWithMeasurement("composite_period").
			AddTag("station_id", s.stationID(ev.StationID)).
			AddTag("evse_id", strconv.Itoa(cs.EvseID)).
			AddTag("unit", string(cs.ChargingRateUnit)).
			AddField("duration_s", cs.PeriodEnd(i)-period.StartPeriod)
		if period.Limit != nil {
			p = p.AddField("limit", round3(*period.Limit))
		}
		if period.DischargeLimit != nil {
			p = p.AddField("discharge_limit", round3(*period.DischargeLimit))
		}
		if period.Setpoint != nil {
			p = p.AddField("setpoint", round3(*period.Setpoint))
		}
		if period.NumberPhases != nil {
			p = p.AddField("number_phases", *period.NumberPhases)
		}
		p = p.SetTime(cs.ScheduleStart.Add(time.Duration(period.StartPeriod) * time.Second))
		points = append(points, p)
	}
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordProfileEvent writes a profile change.
func (s *InfluxSink) RecordProfileEvent(ev coremetrics.ProfileEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charging_profile_event").
		AddTag("station_id", s.stationID(ev.StationID)).
		AddTag("evse_id", strconv.Itoa(ev.EvseID)).
		AddTag("purpose", string(ev.Purpose)).
		AddTag("action", ev.Action).
		AddField("profile_id", ev.ProfileID)
	if ev.Reason != "" {
		p = p.AddField("reason", ev.Reason)
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
