package middleware

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"go.uber.org/zap"
)

type HandlerStats struct {
	Events   int64
	Duration time.Duration
}

func (s HandlerStats) Average() time.Duration {
	if s.Events == 0 {
		return 0
	}
	return s.Duration / time.Duration(s.Events)
}

// Telemetry counts events per kind and measures how long handlers take.
type Telemetry struct {
	logger *zap.Logger

	mu    sync.Mutex
	stats map[string]HandlerStats
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger: logger,
		stats:  make(map[string]HandlerStats),
	}
}

func measure[T any](t *Telemetry, kind string, handler func(context.Context, T)) func(context.Context, T) {
	return func(ctx context.Context, event T) {
		startTime := time.Now()
		handler(ctx, event)
		elapsed := time.Since(startTime)

		t.mu.Lock()
		s := t.stats[kind]
		s.Events++
		s.Duration += elapsed
		t.stats[kind] = s
		t.mu.Unlock()
	}
}

func (t *Telemetry) WithCandle(handler bus.CandleEventHandler) bus.CandleEventHandler {
	return measure[common.CandleUpdate](t, "candle", handler)
}

func (t *Telemetry) WithCandleSnapshot(handler bus.CandleSnapshotEventHandler) bus.CandleSnapshotEventHandler {
	return measure[common.CandleSnapshot](t, "candle_snapshot", handler)
}

func (t *Telemetry) WithClock(handler bus.ClockEventHandler) bus.ClockEventHandler {
	return measure[common.ClockUpdate](t, "clock", handler)
}

func (t *Telemetry) WithPosition(handler bus.PositionEventHandler) bus.PositionEventHandler {
	return measure[common.PositionUpdate](t, "position", handler)
}

func (t *Telemetry) WithPositionClosed(handler bus.PositionCloseEventHandler) bus.PositionCloseEventHandler {
	return measure[common.PositionClosed](t, "position_closed", handler)
}

func (t *Telemetry) WithFill(handler bus.FillEventHandler) bus.FillEventHandler {
	return measure[common.Fill](t, "fill", handler)
}

func (t *Telemetry) WithBalance(handler bus.BalanceEventHandler) bus.BalanceEventHandler {
	return measure[common.Balance](t, "balance", handler)
}

func (t *Telemetry) WithPriceLine(handler bus.PriceLineEventHandler) bus.PriceLineEventHandler {
	return measure[common.PriceLine](t, "price_line", handler)
}

func (t *Telemetry) WithSession(handler bus.SessionEventHandler) bus.SessionEventHandler {
	return measure[common.SessionInfo](t, "session", handler)
}

func (t *Telemetry) Stats(kind string) HandlerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats[kind]
}

func (t *Telemetry) PrintStatistics() {
	t.mu.Lock()
	kinds := make([]string, 0, len(t.stats))
	for kind := range t.stats {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	fields := make([]zap.Field, 0, 2*len(kinds))
	for _, kind := range kinds {
		s := t.stats[kind]
		fields = append(fields,
			zap.Int64(kind+"_events", s.Events),
			zap.Duration(kind+"_avg_duration", s.Average()))
	}
	t.mu.Unlock()

	t.logger.Info("handler statistics", fields...)
}
