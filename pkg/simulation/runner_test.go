package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/tickreplay/pkg/common"
)

func TestRunner_Do(t *testing.T) {
	provider := &memoryProvider{ticks: tenMinutes()}
	e, _ := newTestEngine(t, provider, WithInstruments(es, nq), WithSpeed(500))
	r := NewRunner(zap.NewNop(), e, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.NoError(t, r.Do(ctx, func(e *Engine) error {
		if err := e.Load(ctx, testDay, 570); err != nil {
			return err
		}
		return e.Play()
	}))

	require.Eventually(t, func() bool {
		var candles int
		_ = r.Do(ctx, func(e *Engine) error {
			candles = len(e.Snapshot().Candles["ES"])
			return nil
		})
		return candles > 1
	}, 5*time.Second, 20*time.Millisecond)

	err := r.Do(ctx, func(e *Engine) error {
		_, err := e.PlaceOrder("CL", common.SideLong, 1)
		return err
	})
	assert.ErrorIs(t, err, common.ErrUnknownInstrument)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.ErrorIs(t, r.Do(context.Background(), func(*Engine) error { return nil }), ErrRunnerStopped)
}
