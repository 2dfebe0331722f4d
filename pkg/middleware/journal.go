package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"go.uber.org/zap"
)

const defaultJournalTimeout = 5 * time.Second

type JournalStore interface {
	SaveClosedPosition(ctx context.Context, closed common.PositionClosed) error
}

// Journal persists every closed position without holding up the dispatch loop.
type Journal struct {
	logger  *zap.Logger
	store   JournalStore
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewJournal(logger *zap.Logger, store JournalStore) *Journal {
	return &Journal{
		logger:  logger,
		store:   store,
		timeout: defaultJournalTimeout,
	}
}

func (j *Journal) WithPositionClosed(handler bus.PositionCloseEventHandler) bus.PositionCloseEventHandler {
	return func(ctx context.Context, closed common.PositionClosed) {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
			defer cancel()
			if err := j.store.SaveClosedPosition(saveCtx, closed); err != nil {
				j.logger.Warn("unable to journal position", zap.String("symbol", closed.Position.Symbol), zap.Error(err))
			}
		}()
		handler(ctx, closed)
	}
}

// Wait blocks until pending writes are done.
func (j *Journal) Wait() {
	j.wg.Wait()
}
