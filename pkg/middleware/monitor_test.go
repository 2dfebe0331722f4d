package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
)

func newObservedMonitor(flags MonitorFlags) (*Monitor, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewMonitor(zap.New(core), flags), logs
}

func TestMonitor_WithCandle(t *testing.T) {
	tests := []struct {
		name   string
		flags  MonitorFlags
		logged bool
	}{
		{"enabled", MonitorCandles, true},
		{"all", MonitorAll, true},
		{"none", MonitorNone, false},
		{"other flag", MonitorFills | MonitorClock, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, logs := newObservedMonitor(tt.flags)
			called := false

			wrapped := m.WithCandle(func(context.Context, common.CandleUpdate) { called = true })
			wrapped(context.Background(), common.CandleUpdate{Candle: common.Candle{Symbol: "ES", Close: fixed.FromInt(5000, 0)}})

			assert.True(t, called)
			if tt.logged {
				assert.Equal(t, 1, logs.FilterMessage("candle").Len())
			} else {
				assert.Zero(t, logs.Len())
			}
		})
	}
}

func TestMonitor_WithPositionClosed(t *testing.T) {
	m, logs := newObservedMonitor(MonitorPositionsClosed)
	called := false

	wrapped := m.WithPositionClosed(func(context.Context, common.PositionClosed) { called = true })
	wrapped(context.Background(), common.PositionClosed{
		Position:    common.Position{Symbol: "ES", Side: common.SideLong, Size: 1},
		Reason:      common.CloseReasonStopLoss,
		ExitPrice:   fixed.FromInt(94, 0),
		RealizedPnL: fixed.FromInt(-300, 0),
	})

	assert.True(t, called)
	entries := logs.FilterMessage("position closed").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "stop_loss", fields["reason"])
		assert.Equal(t, "-300", fields["realized_pnl"])
	}
}

func TestMonitor_AllWrappersForward(t *testing.T) {
	m, logs := newObservedMonitor(MonitorAll)
	ctx := context.Background()
	calls := 0
	count := func() { calls++ }

	m.WithCandleSnapshot(func(context.Context, common.CandleSnapshot) { count() })(ctx, common.CandleSnapshot{})
	m.WithClock(func(context.Context, common.ClockUpdate) { count() })(ctx, common.ClockUpdate{})
	m.WithPosition(func(context.Context, common.PositionUpdate) { count() })(ctx, common.PositionUpdate{})
	m.WithFill(func(context.Context, common.Fill) { count() })(ctx, common.Fill{})
	m.WithBalance(func(context.Context, common.Balance) { count() })(ctx, common.Balance{})
	m.WithPriceLine(func(context.Context, common.PriceLine) { count() })(ctx, common.PriceLine{})
	m.WithSession(func(context.Context, common.SessionInfo) { count() })(ctx, common.SessionInfo{})

	assert.Equal(t, 7, calls)
	assert.Equal(t, 7, logs.Len())
}

func TestParseMonitorFlags(t *testing.T) {
	flags, unknown := ParseMonitorFlags([]string{"candles", "fills", "bogus"})

	assert.Equal(t, MonitorCandles|MonitorFills, flags)
	assert.Equal(t, []string{"bogus"}, unknown)
}
