package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peter-kozarec/tickreplay/pkg/common"
)

// JournalStore keeps every closed position of every session.
type JournalStore struct {
	pool *pgxpool.Pool
}

func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

func (s *JournalStore) SaveClosedPosition(ctx context.Context, closed common.PositionClosed) error {
	const query = `
		INSERT INTO closed_positions (
			session_id, symbol, side, size, avg_price,
			exit_price, realized_pnl, reason, open_time, close_time
		) VALUES (
			$1::uuid, $2, $3, $4, $5::numeric,
			$6::numeric, $7::numeric, $8, $9, $10
		)`

	pos := closed.Position
	_, err := s.pool.Exec(ctx, query,
		closed.Session.String(), pos.Symbol, pos.Side.String(), int64(pos.Size), pos.AveragePrice.String(),
		closed.ExitPrice.String(), closed.RealizedPnL.String(), string(closed.Reason), pos.OpenTime, closed.TimeStamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert closed position %s: %w", pos.Symbol, err)
	}
	return nil
}

// ClosedPositionCount returns how many positions a session closed.
func (s *JournalStore) ClosedPositionCount(ctx context.Context, session string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM closed_positions WHERE session_id = $1::uuid`, session).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count closed positions: %w", err)
	}
	return n, nil
}
