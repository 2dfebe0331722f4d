package common

import (
	"fmt"
	"strings"

	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
	"go.uber.org/zap"
)

type Side int

const (
	SideLong Side = iota
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	side, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "long", "buy":
		return SideLong, nil
	case "short", "sell":
		return SideShort, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

// Position is the single open position of an instrument. A zero StopLoss or
// TakeProfit means the line is not set.
type Position struct {
	Symbol        string      `json:"symbol"`
	Side          Side        `json:"side"`
	AveragePrice  fixed.Point `json:"avg_price"`
	Size          uint32      `json:"size"`
	StopLoss      fixed.Point `json:"sl"`
	TakeProfit    fixed.Point `json:"tp"`
	UnrealizedPnL fixed.Point `json:"pnl"`
	OpenTime      int64       `json:"open_time"`
}

func (p Position) HasStopLoss() bool   { return !p.StopLoss.IsZero() }
func (p Position) HasTakeProfit() bool { return !p.TakeProfit.IsZero() }

func (p Position) Fields() []zap.Field {
	return []zap.Field{
		zap.String("symbol", p.Symbol),
		zap.Stringer("side", p.Side),
		zap.String("avg_price", p.AveragePrice.String()),
		zap.Uint32("size", p.Size),
		zap.String("sl", p.StopLoss.String()),
		zap.String("tp", p.TakeProfit.String()),
		zap.String("pnl", p.UnrealizedPnL.String()),
	}
}

// DirectionalDiff is the per unit profit of holding side from avg to price.
func DirectionalDiff(side Side, avg, price fixed.Point) fixed.Point {
	if side == SideLong {
		return price.Sub(avg)
	}
	return avg.Sub(price)
}
