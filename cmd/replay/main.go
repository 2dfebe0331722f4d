package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peter-kozarec/tickreplay/internal/config"
	"github.com/peter-kozarec/tickreplay/internal/dbg"
	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/middleware"
	"github.com/peter-kozarec/tickreplay/pkg/server"
	"github.com/peter-kozarec/tickreplay/pkg/server/ws"
	"github.com/peter-kozarec/tickreplay/pkg/simulation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "replay.toml", "path to the toml config, empty for defaults and environment only")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := dbg.NewLogger(cfg.Log.Dev, cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	logger.Info(fmt.Sprintf("tickreplay %s", version))
	defer logger.Info("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("replay stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.Config) error {
	res := &resources{}
	defer res.Close()

	provider, err := openProvider(ctx, logger, cfg, res)
	if err != nil {
		return fmt.Errorf("open provider: %w", err)
	}

	router := bus.NewRouter(logger, cfg.Server.EventCapacity)
	hub := ws.NewHub(logger, cfg.Server.WSCapacity)

	if err := wireHandlers(ctx, logger, cfg, router, hub, res); err != nil {
		return err
	}

	engine := simulation.NewEngine(logger, router, provider, cfg.SimulationOptions()...)
	runner := simulation.NewRunner(logger, engine, cfg.Session.FrameRate)
	srv := server.New(logger, runner, provider, hub, server.Options{
		Addr:               cfg.Server.Addr,
		Debug:              cfg.Server.Debug,
		DefaultStartMinute: cfg.Session.StartMinute,
	})

	for _, instrument := range cfg.CommonInstruments() {
		logger.Info("instrument", instrument.Fields()...)
	}
	defer router.PrintStatistics()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return <-router.Exec(gctx)
	})
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if day := cfg.Session.Day; day != "" {
		g.Go(func() error {
			err := runner.Do(gctx, func(e *simulation.Engine) error {
				return e.Load(gctx, day, cfg.Session.StartMinute)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("unable to load initial session", zap.String("day", day), zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}

// wireHandlers routes every engine event to the websocket hub through the
// configured middleware.
func wireHandlers(ctx context.Context, logger *zap.Logger, cfg *config.Config, router *bus.Router, hub *ws.Hub, res *resources) error {
	flags, unknown := middleware.ParseMonitorFlags(cfg.Monitor.Flags)
	if len(unknown) > 0 {
		logger.Warn("ignoring unknown monitor flags", zap.String("flags", strings.Join(unknown, ",")))
	}
	monitor := middleware.NewMonitor(logger, flags)

	var telemetry *middleware.Telemetry
	if cfg.Monitor.Telemetry {
		telemetry = middleware.NewTelemetry(logger)
		res.add(telemetry.PrintStatistics)
	}

	on := telemetry != nil
	candle := measured(on, telemetry.WithCandle, monitor.WithCandle)
	snapshot := measured(on, telemetry.WithCandleSnapshot, monitor.WithCandleSnapshot)
	clock := measured(on, telemetry.WithClock, monitor.WithClock)
	pos := measured(on, telemetry.WithPosition, monitor.WithPosition)
	fill := measured(on, telemetry.WithFill, monitor.WithFill)
	balance := measured(on, telemetry.WithBalance, monitor.WithBalance)
	line := measured(on, telemetry.WithPriceLine, monitor.WithPriceLine)
	session := measured(on, telemetry.WithSession, monitor.WithSession)

	var closedWrappers []func(bus.PositionCloseEventHandler) bus.PositionCloseEventHandler
	var finishWrappers []func(bus.SessionEventHandler) bus.SessionEventHandler
	if on {
		closedWrappers = append(closedWrappers, telemetry.WithPositionClosed)
		finishWrappers = append(finishWrappers, telemetry.WithSession)
	}
	closedWrappers = append(closedWrappers, monitor.WithPositionClosed)
	finishWrappers = append(finishWrappers, monitor.WithSession)

	if cfg.Journal.Enabled {
		store, err := openJournal(ctx, cfg, res)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		journal := middleware.NewJournal(logger, store)
		res.add(journal.Wait)
		closedWrappers = append(closedWrappers, journal.WithPositionClosed)
	}

	if cfg.Notify.User != "" && cfg.Notify.Token != "" {
		pushover := middleware.NewPushover(logger, cfg.Notify.User, cfg.Notify.Token, cfg.Notify.Device)
		closedWrappers = append(closedWrappers, pushover.WithPositionClosed)
		finishWrappers = append(finishWrappers, pushover.WithSessionFinished)
	}

	router.OnCandleOpen = candle(ws.Forward[common.CandleUpdate](hub, bus.CandleOpenEvent))
	router.OnCandleUpdate = candle(ws.Forward[common.CandleUpdate](hub, bus.CandleUpdateEvent))
	router.OnCandleClose = candle(ws.Forward[common.CandleUpdate](hub, bus.CandleCloseEvent))
	router.OnCandleSnapshot = snapshot(ws.Forward[common.CandleSnapshot](hub, bus.CandleSnapshotEvent))
	router.OnClock = clock(ws.Forward[common.ClockUpdate](hub, bus.ClockEvent))
	router.OnPositionOpen = pos(ws.Forward[common.PositionUpdate](hub, bus.PositionOpenEvent))
	router.OnPositionUpdate = pos(ws.Forward[common.PositionUpdate](hub, bus.PositionUpdateEvent))
	router.OnPositionClose = middleware.Chain(closedWrappers...)(ws.Forward[common.PositionClosed](hub, bus.PositionCloseEvent))
	router.OnFill = fill(ws.Forward[common.Fill](hub, bus.FillEvent))
	router.OnBalance = balance(ws.Forward[common.Balance](hub, bus.BalanceEvent))
	router.OnPriceLine = line(ws.Forward[common.PriceLine](hub, bus.PriceLineEvent))
	router.OnSessionLoad = session(ws.Forward[common.SessionInfo](hub, bus.SessionLoadEvent))
	router.OnSessionFinish = middleware.Chain(finishWrappers...)(ws.Forward[common.SessionInfo](hub, bus.SessionFinishEvent))
	return nil
}

// measured puts the telemetry wrapper outermost when telemetry is on.
func measured[T any](on bool, withTelemetry, withMonitor func(T) T) func(T) T {
	if on {
		return middleware.Chain(withTelemetry, withMonitor)
	}
	return middleware.Chain(withMonitor)
}
