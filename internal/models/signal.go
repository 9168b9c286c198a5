package models

import (
	"hash/fnv"
	"math"
	"time"
)

// Action is the vendor's action label carried by a notification.
type Action string

const (
	ActionOpenLong   Action = "做多"
	ActionCloseLong  Action = "平多"
	ActionOpenShort  Action = "做空"
	ActionCloseShort Action = "平空"
)

func (a Action) IsAvailable() bool {
	switch a {
	case ActionOpenLong, ActionCloseLong, ActionOpenShort, ActionCloseShort:
		return true
	default:
		return false
	}
}

// Direction and Offset follow the exchange's cross order contract:
// open long buy/open, close long sell/close, open short sell/open,
// close short buy/close.
func (a Action) Direction() Direction {
	switch a {
	case ActionOpenLong, ActionCloseShort:
		return DirectionBuy
	case ActionCloseLong, ActionOpenShort:
		return DirectionSell
	default:
		return ""
	}
}

func (a Action) Offset() Offset {
	switch a {
	case ActionOpenLong, ActionOpenShort:
		return OffsetOpen
	case ActionCloseLong, ActionCloseShort:
		return OffsetClose
	default:
		return ""
	}
}

// TradeSignal is the structured form of one vendor notification.
type TradeSignal struct {
	Strategy  string `json:"strategy"`
	Action    Action `json:"action"`
	Price     string `json:"price"`
	RawSymbol string `json:"raw_symbol"`
}

// ClientOrderID derives a deterministic order id from the signal content.
// The result is always in (0, math.MaxInt64].
func (s TradeSignal) ClientOrderID() uint64 {
	h := fnv.New64a()
	for _, field := range []string{s.Strategy, string(s.Action), s.Price, s.RawSymbol} {
		_, _ = h.Write([]byte(field))
		_, _ = h.Write([]byte{0x1f})
	}

	id := h.Sum64() & math.MaxInt64
	if id == 0 {
		return 1
	}
	return id
}

// RawNotification is the ingress payload as received.
type RawNotification struct {
	Content    string
	Sender     string
	Fields     map[string]interface{}
	Body       []byte
	ReceivedAt time.Time
}
