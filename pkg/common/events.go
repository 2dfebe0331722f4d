package common

import (
	"fmt"
	"strings"

	"github.com/peter-kozarec/tickreplay/pkg/utility"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
	"go.uber.org/zap"
)

type StopKind int

const (
	StopKindLoss StopKind = iota
	StopKindProfit
)

func (k StopKind) String() string {
	if k == StopKindLoss {
		return "sl"
	}
	return "tp"
}

func (k StopKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func ParseStopKind(s string) (StopKind, error) {
	switch strings.ToLower(s) {
	case "sl", "stop_loss", "stoploss":
		return StopKindLoss, nil
	case "tp", "take_profit", "takeprofit":
		return StopKindProfit, nil
	default:
		return 0, fmt.Errorf("unknown stop kind %q", s)
	}
}

type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "stop_loss"
	CloseReasonTakeProfit CloseReason = "take_profit"
	CloseReasonFill       CloseReason = "fill"
)

type FillAction string

const (
	FillActionOpen   FillAction = "open"
	FillActionAdd    FillAction = "add"
	FillActionReduce FillAction = "reduce"
	FillActionClose  FillAction = "close"
	FillActionFlip   FillAction = "flip"
)

type CandleUpdate struct {
	Session utility.SessionID `json:"session"`
	Candle  Candle            `json:"candle"`
}

type CandleSnapshot struct {
	Session utility.SessionID `json:"session"`
	Symbol  string            `json:"symbol"`
	Candles []Candle          `json:"candles"`
}

type ClockUpdate struct {
	Session   utility.SessionID `json:"session"`
	TimeStamp int64             `json:"ts"`
	Display   string            `json:"display"`
	Speed     float64           `json:"speed"`
	Paused    bool              `json:"paused"`
}

type PositionUpdate struct {
	Session   utility.SessionID `json:"session"`
	TimeStamp int64             `json:"ts"`
	Position  Position          `json:"position"`
}

type PositionClosed struct {
	Session     utility.SessionID `json:"session"`
	TimeStamp   int64             `json:"ts"`
	Position    Position          `json:"position"`
	Reason      CloseReason       `json:"reason"`
	ExitPrice   fixed.Point       `json:"exit_price"`
	RealizedPnL fixed.Point       `json:"realized_pnl"`
}

type Fill struct {
	Session     utility.SessionID `json:"session"`
	TimeStamp   int64             `json:"ts"`
	Symbol      string            `json:"symbol"`
	Side        Side              `json:"side"`
	Price       fixed.Point       `json:"price"`
	Size        uint32            `json:"size"`
	Action      FillAction        `json:"action"`
	RealizedPnL fixed.Point       `json:"realized_pnl"`
}

type Balance struct {
	Session   utility.SessionID `json:"session"`
	TimeStamp int64             `json:"ts"`
	Value     fixed.Point       `json:"value"`
}

// PriceLine asks the renderer to place or clear a horizontal line.
type PriceLine struct {
	Session   utility.SessionID `json:"session"`
	TimeStamp int64             `json:"ts"`
	Symbol    string            `json:"symbol"`
	Kind      StopKind          `json:"kind"`
	Price     fixed.Point       `json:"price"`
	Cleared   bool              `json:"cleared"`
}

type SessionInfo struct {
	Session     utility.SessionID `json:"session"`
	TimeStamp   int64             `json:"ts"`
	Day         string            `json:"day"`
	StartMinute int               `json:"start_minute"`
	Symbols     []string          `json:"symbols"`
}

func (f Fill) Fields() []zap.Field {
	return []zap.Field{
		zap.String("symbol", f.Symbol),
		zap.Stringer("side", f.Side),
		zap.String("price", f.Price.String()),
		zap.Uint32("size", f.Size),
		zap.String("action", string(f.Action)),
		zap.String("realized_pnl", f.RealizedPnL.String()),
	}
}
