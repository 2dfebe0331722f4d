package common

import (
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
	"go.uber.org/zap"
)

type Instrument struct {
	Symbol             string
	Digits             int
	ContractMultiplier fixed.Point
	CalendarMIC        string
}

func (i Instrument) Fields() []zap.Field {
	return []zap.Field{
		zap.String("symbol", i.Symbol),
		zap.Int("digits", i.Digits),
		zap.String("contract_multiplier", i.ContractMultiplier.String()),
		zap.String("calendar", i.CalendarMIC),
	}
}
