package middleware

import (
	"context"

	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"go.uber.org/zap"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorCandles
	MonitorClock
	MonitorPositions
	MonitorPositionsClosed
	MonitorFills
	MonitorBalance
	MonitorPriceLines
	MonitorSessions
)

var monitorFlagNames = map[string]MonitorFlags{
	"none":             MonitorNone,
	"all":              MonitorAll,
	"candles":          MonitorCandles,
	"clock":            MonitorClock,
	"positions":        MonitorPositions,
	"positions_closed": MonitorPositionsClosed,
	"fills":            MonitorFills,
	"balance":          MonitorBalance,
	"price_lines":      MonitorPriceLines,
	"sessions":         MonitorSessions,
}

// ParseMonitorFlags combines flag names, unknown names are reported back.
func ParseMonitorFlags(names []string) (MonitorFlags, []string) {
	var (
		flags   MonitorFlags
		unknown []string
	)
	for _, name := range names {
		flag, ok := monitorFlagNames[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		flags |= flag
	}
	return flags, unknown
}

// Monitor logs the events passing through the wrapped handlers at debug level.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(flag MonitorFlags) bool {
	return m.flags&flag != 0 || m.flags&MonitorAll != 0
}

func (m *Monitor) WithCandle(handler bus.CandleEventHandler) bus.CandleEventHandler {
	return func(ctx context.Context, update common.CandleUpdate) {
		if m.enabled(MonitorCandles) {
			m.logger.Debug("candle", update.Candle.Fields()...)
		}
		handler(ctx, update)
	}
}

func (m *Monitor) WithCandleSnapshot(handler bus.CandleSnapshotEventHandler) bus.CandleSnapshotEventHandler {
	return func(ctx context.Context, snapshot common.CandleSnapshot) {
		if m.enabled(MonitorCandles) {
			m.logger.Debug("candle snapshot", zap.String("symbol", snapshot.Symbol), zap.Int("candles", len(snapshot.Candles)))
		}
		handler(ctx, snapshot)
	}
}

func (m *Monitor) WithClock(handler bus.ClockEventHandler) bus.ClockEventHandler {
	return func(ctx context.Context, clock common.ClockUpdate) {
		if m.enabled(MonitorClock) {
			m.logger.Debug("clock",
				zap.String("display", clock.Display),
				zap.Float64("speed", clock.Speed),
				zap.Bool("paused", clock.Paused))
		}
		handler(ctx, clock)
	}
}

func (m *Monitor) WithPosition(handler bus.PositionEventHandler) bus.PositionEventHandler {
	return func(ctx context.Context, update common.PositionUpdate) {
		if m.enabled(MonitorPositions) {
			m.logger.Debug("position", update.Position.Fields()...)
		}
		handler(ctx, update)
	}
}

func (m *Monitor) WithPositionClosed(handler bus.PositionCloseEventHandler) bus.PositionCloseEventHandler {
	return func(ctx context.Context, closed common.PositionClosed) {
		if m.enabled(MonitorPositionsClosed) {
			m.logger.Debug("position closed", append(closed.Position.Fields(),
				zap.String("reason", string(closed.Reason)),
				zap.String("exit_price", closed.ExitPrice.String()),
				zap.String("realized_pnl", closed.RealizedPnL.String()))...)
		}
		handler(ctx, closed)
	}
}

func (m *Monitor) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return func(ctx context.Context, fill common.Fill) {
		if m.enabled(MonitorFills) {
			m.logger.Debug("fill", fill.Fields()...)
		}
		handler(ctx, fill)
	}
}

func (m *Monitor) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return func(ctx context.Context, balance common.Balance) {
		if m.enabled(MonitorBalance) {
			m.logger.Debug("balance", zap.String("value", balance.Value.String()))
		}
		handler(ctx, balance)
	}
}

func (m *Monitor) WithPriceLine(handler bus.PriceLineEventHandler) bus.PriceLineEventHandler {
	return func(ctx context.Context, line common.PriceLine) {
		if m.enabled(MonitorPriceLines) {
			m.logger.Debug("price line",
				zap.String("symbol", line.Symbol),
				zap.Stringer("kind", line.Kind),
				zap.String("price", line.Price.String()),
				zap.Bool("cleared", line.Cleared))
		}
		handler(ctx, line)
	}
}

func (m *Monitor) WithSession(handler bus.SessionEventHandler) bus.SessionEventHandler {
	return func(ctx context.Context, info common.SessionInfo) {
		if m.enabled(MonitorSessions) {
			m.logger.Debug("session",
				zap.String("session", info.Session.String()),
				zap.String("day", info.Day),
				zap.Int("start_minute", info.StartMinute),
				zap.Strings("symbols", info.Symbols))
		}
		handler(ctx, info)
	}
}
