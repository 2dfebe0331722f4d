package bus

import (
	"context"

	"github.com/peter-kozarec/tickreplay/pkg/common"
)

type EventHandler[T any] = func(context.Context, T)

type CandleEventHandler EventHandler[common.CandleUpdate]
type CandleSnapshotEventHandler EventHandler[common.CandleSnapshot]
type ClockEventHandler EventHandler[common.ClockUpdate]
type PositionEventHandler EventHandler[common.PositionUpdate]
type PositionCloseEventHandler EventHandler[common.PositionClosed]
type FillEventHandler EventHandler[common.Fill]
type BalanceEventHandler EventHandler[common.Balance]
type PriceLineEventHandler EventHandler[common.PriceLine]
type SessionEventHandler EventHandler[common.SessionInfo]

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			if handler != nil {
				handler(ctx, event)
			}
		}
	}
}
