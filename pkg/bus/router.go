package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var ErrCapacityReached = errors.New("event capacity reached")

type event struct {
	id   EventId
	data any
}

// Router decouples the replay engine from its consumers. Post never blocks,
// events are dispatched to the handlers on the goroutine running Exec.
type Router struct {
	logger *zap.Logger
	events chan event

	OnCandleOpen     CandleEventHandler
	OnCandleUpdate   CandleEventHandler
	OnCandleClose    CandleEventHandler
	OnCandleSnapshot CandleSnapshotEventHandler
	OnClock          ClockEventHandler
	OnPositionOpen   PositionEventHandler
	OnPositionUpdate PositionEventHandler
	OnPositionClose  PositionCloseEventHandler
	OnFill           FillEventHandler
	OnBalance        BalanceEventHandler
	OnPriceLine      PriceLineEventHandler
	OnSessionLoad    SessionEventHandler
	OnSessionFinish  SessionEventHandler

	runTime       atomic.Int64
	postCount     atomic.Uint64
	postFails     atomic.Uint64
	dispatchCount atomic.Uint64
	dispatchFails atomic.Uint64
}

func NewRouter(logger *zap.Logger, eventCapacity int) *Router {
	return &Router{
		logger: logger,
		events: make(chan event, eventCapacity),
	}
}

func (r *Router) Post(id EventId, data any) error {
	select {
	case r.events <- event{id, data}:
		r.postCount.Add(1)
		return nil
	default:
		r.postFails.Add(1)
		return ErrCapacityReached
	}
}

// Exec dispatches events until ctx is done. The returned channel receives the
// context error once the loop exits.
func (r *Router) Exec(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	go func() {
		start := time.Now()
		defer func() {
			r.runTime.Add(int64(time.Since(start)))
		}()

		for {
			select {
			case <-ctx.Done():
				r.drain(ctx)
				done <- ctx.Err()
				return
			case ev := <-r.events:
				r.handle(ctx, ev)
			}
		}
	}()

	return done
}

func (r *Router) Statistics() Statistics {
	runTime := time.Duration(r.runTime.Load())
	stats := Statistics{
		RunTime:       runTime,
		PostCount:     r.postCount.Load(),
		PostFails:     r.postFails.Load(),
		DispatchCount: r.dispatchCount.Load(),
		DispatchFails: r.dispatchFails.Load(),
	}
	if runTime > 0 {
		stats.Throughput = float64(stats.DispatchCount) / runTime.Seconds()
	}
	return stats
}

func (r *Router) PrintStatistics() {
	r.Statistics().Print(r.logger)
}

// drain delivers whatever was already posted, so the final events of a
// session (close, balance) are not lost on shutdown.
func (r *Router) drain(ctx context.Context) {
	for {
		select {
		case ev := <-r.events:
			r.handle(ctx, ev)
		default:
			return
		}
	}
}

func (r *Router) handle(ctx context.Context, ev event) {
	r.dispatchCount.Add(1)
	if err := r.dispatch(ctx, ev); err != nil {
		r.dispatchFails.Add(1)
		r.logger.Warn("dispatch failed", zap.Error(err), zap.Stringer("event", ev.id))
	}
}

func (r *Router) dispatch(ctx context.Context, ev event) error {
	switch ev.id {
	case CandleOpenEvent:
		return invoke(ctx, ev, r.OnCandleOpen)
	case CandleUpdateEvent:
		return invoke(ctx, ev, r.OnCandleUpdate)
	case CandleCloseEvent:
		return invoke(ctx, ev, r.OnCandleClose)
	case CandleSnapshotEvent:
		return invoke(ctx, ev, r.OnCandleSnapshot)
	case ClockEvent:
		return invoke(ctx, ev, r.OnClock)
	case PositionOpenEvent:
		return invoke(ctx, ev, r.OnPositionOpen)
	case PositionUpdateEvent:
		return invoke(ctx, ev, r.OnPositionUpdate)
	case PositionCloseEvent:
		return invoke(ctx, ev, r.OnPositionClose)
	case FillEvent:
		return invoke(ctx, ev, r.OnFill)
	case BalanceEvent:
		return invoke(ctx, ev, r.OnBalance)
	case PriceLineEvent:
		return invoke(ctx, ev, r.OnPriceLine)
	case SessionLoadEvent:
		return invoke(ctx, ev, r.OnSessionLoad)
	case SessionFinishEvent:
		return invoke(ctx, ev, r.OnSessionFinish)
	default:
		return fmt.Errorf("unsupported event id: %v", ev.id)
	}
}

func invoke[T any, H ~func(context.Context, T)](ctx context.Context, ev event, handler H) error {
	data, ok := ev.data.(T)
	if !ok {
		return fmt.Errorf("invalid type assertion for %s event", ev.id)
	}
	if handler != nil {
		handler(ctx, data)
	}
	return nil
}
