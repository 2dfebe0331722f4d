package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/tickreplay/pkg/common"
)

func TestBusRouter_Post(t *testing.T) {
	r := NewRouter(zap.NewNop(), 10)

	require.NoError(t, r.Post(CandleOpenEvent, common.CandleUpdate{}))
	assert.Equal(t, uint64(1), r.Statistics().PostCount)
}

func TestBusRouter_PostCapacityReached(t *testing.T) {
	r := NewRouter(zap.NewNop(), 1)

	require.NoError(t, r.Post(ClockEvent, common.ClockUpdate{}))

	err := r.Post(ClockEvent, common.ClockUpdate{})
	assert.True(t, errors.Is(err, ErrCapacityReached))
	assert.Equal(t, uint64(1), r.Statistics().PostFails)
}

func TestBusRouter_Exec(t *testing.T) {
	r := NewRouter(zap.NewNop(), 10)

	var handled atomic.Bool
	r.OnCandleClose = func(_ context.Context, update common.CandleUpdate) {
		handled.Store(update.Candle.Symbol == "ES")
	}

	ctx, cancel := context.WithCancel(context.Background())
	errChan := r.Exec(ctx)

	require.NoError(t, r.Post(CandleCloseEvent, common.CandleUpdate{Candle: common.Candle{Symbol: "ES"}}))

	assert.Eventually(t, handled.Load, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("router did not stop")
	}

	assert.Equal(t, uint64(1), r.Statistics().DispatchCount)
}

func TestBusRouter_InvalidPayload(t *testing.T) {
	r := NewRouter(zap.NewNop(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := r.Exec(ctx)

	require.NoError(t, r.Post(FillEvent, common.Balance{}))
	assert.Eventually(t, func() bool { return r.Statistics().DispatchFails == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-errChan
}

func TestBusRouter_DrainOnShutdown(t *testing.T) {
	r := NewRouter(zap.NewNop(), 10)

	var count atomic.Int32
	r.OnBalance = func(context.Context, common.Balance) { count.Add(1) }

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Post(BalanceEvent, common.Balance{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	<-r.Exec(ctx)

	assert.Equal(t, int32(3), count.Load())
}

func TestBusRouter_MergeHandlers(t *testing.T) {
	var calls []string
	merged := MergeHandlers[common.Fill](
		func(context.Context, common.Fill) { calls = append(calls, "first") },
		nil,
		func(context.Context, common.Fill) { calls = append(calls, "second") },
	)

	merged(context.Background(), common.Fill{})
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestBusRouter_EventIdString(t *testing.T) {
	assert.Equal(t, "candle_closed", CandleCloseEvent.String())
	assert.Equal(t, "session_finished", SessionFinishEvent.String())
	assert.Equal(t, "unknown", EventId(200).String())
}
