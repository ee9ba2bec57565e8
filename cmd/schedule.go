package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharging/app"
	"github.com/kilianp07/smartcharging/core/composite"
	coremetrics "github.com/kilianp07/smartcharging/core/metrics"
	"github.com/kilianp07/smartcharging/core/model"
	"github.com/kilianp07/smartcharging/core/publisher"
	"github.com/kilianp07/smartcharging/core/store"
)

type scheduleFlags struct {
	fixture   string
	evse      int
	all       bool
	duration  int
	unit      string
	at        string
	discharge bool
	simulate  bool
	offline   bool
}

var schedFlags scheduleFlags

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Calculate a composite schedule from a profile fixture",
	RunE:  runSchedule,
}

func init() {
	f := scheduleCmd.Flags()
	f.StringVarP(&schedFlags.fixture, "file", "f", "", "fixture with sessions and charging profiles")
	f.IntVar(&schedFlags.evse, "evse", 1, "outlet id, 0 for the station")
	f.BoolVar(&schedFlags.all, "all", false, "calculate every outlet and the station")
	f.IntVar(&schedFlags.duration, "duration", 86400, "schedule duration in seconds")
	f.StringVar(&schedFlags.unit, "unit", "", "charging rate unit (A or W)")
	f.StringVar(&schedFlags.at, "at", "", "RFC3339 time used as now")
	f.BoolVar(&schedFlags.discharge, "discharge", false, "include discharge limits")
	f.BoolVar(&schedFlags.simulate, "simulate-session", false, "compose transaction profiles without a session")
	f.BoolVar(&schedFlags.offline, "offline", false, "drop the purposes ignored while offline")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req, now, err := schedFlags.request()
	if err != nil {
		return err
	}

	opts := []app.Option{
		app.WithStore(store.NewMemoryStore()),
		app.WithMetrics(coremetrics.NopSink{}),
		app.WithPublishers(publisher.Nop{}),
	}
	if now != nil {
		opts = append(opts, app.WithClock(func() time.Time { return *now }))
	}
	svc, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if schedFlags.fixture != "" {
		fx, err := LoadFixture(schedFlags.fixture)
		if err != nil {
			return err
		}
		if err := install(ctx, svc, fx); err != nil {
			return err
		}
	}

	var out any
	if schedFlags.all {
		out, err = svc.CalculateAll(ctx, req)
	} else {
		out, err = svc.Calculate(ctx, req)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (f scheduleFlags) request() (composite.Request, *time.Time, error) {
	if f.duration <= 0 {
		return composite.Request{}, nil, fmt.Errorf("duration must be positive")
	}
	start := time.Now().UTC()
	var now *time.Time
	if f.at != "" {
		t, err := time.Parse(time.RFC3339, f.at)
		if err != nil {
			return composite.Request{}, nil, fmt.Errorf("at: %w", err)
		}
		start, now = t.UTC(), &t
	}
	req := composite.Request{
		Start:            start,
		End:              start.Add(time.Duration(f.duration) * time.Second),
		EvseID:           f.evse,
		IncludeDischarge: f.discharge,
		SimulateSession:  f.simulate,
		Offline:          f.offline,
	}
	if f.unit != "" {
		u, ok := model.ParseChargingRateUnit(f.unit)
		if !ok {
			return composite.Request{}, nil, fmt.Errorf("unknown unit %q", f.unit)
		}
		req.Unit = u
	}
	return req, now, nil
}

// install starts the fixture sessions first so transaction profiles bind to
// them.
func install(ctx context.Context, svc *app.Service, fx Fixture) error {
	for _, s := range fx.Sessions {
		if err := svc.StartSession(ctx, s.EvseID, s.TransactionID); err != nil {
			return fmt.Errorf("session on evse %d: %w", s.EvseID, err)
		}
	}
	for _, p := range fx.Profiles {
		if err := svc.InstallProfile(ctx, p); err != nil {
			return fmt.Errorf("profile %d: %w", p.ID, err)
		}
	}
	return nil
}
