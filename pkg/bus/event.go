package bus

type EventId uint8

const (
	CandleOpenEvent EventId = iota
	CandleUpdateEvent
	CandleCloseEvent
	CandleSnapshotEvent
	ClockEvent
	PositionOpenEvent
	PositionUpdateEvent
	PositionCloseEvent
	FillEvent
	BalanceEvent
	PriceLineEvent
	SessionLoadEvent
	SessionFinishEvent
)

var eventNames = [...]string{
	CandleOpenEvent:     "candle_opened",
	CandleUpdateEvent:   "candle_updated",
	CandleCloseEvent:    "candle_closed",
	CandleSnapshotEvent: "candle_snapshot",
	ClockEvent:          "clock",
	PositionOpenEvent:   "position_opened",
	PositionUpdateEvent: "position_updated",
	PositionCloseEvent:  "position_closed",
	FillEvent:           "fill",
	BalanceEvent:        "balance",
	PriceLineEvent:      "price_line",
	SessionLoadEvent:    "session_loaded",
	SessionFinishEvent:  "session_finished",
}

func (id EventId) String() string {
	if int(id) < len(eventNames) {
		return eventNames[id]
	}
	return "unknown"
}
