package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string
type Direction string
type Offset string
type OrderStatus string

const (
	ExchangeHuobi = "huobi"

	OrderSideBuy  OrderSide = "buy-market"
	OrderSideSell OrderSide = "sell-market"

	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"

	OffsetOpen  Offset = "open"
	OffsetClose Offset = "close"

	OrderStatusPlaced   OrderStatus = "placed"
	OrderStatusRejected OrderStatus = "rejected"
)

func (d Direction) IsAvailable() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Opposite returns the direction of the position an order with d closes.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	default:
		return ""
	}
}

func (o Offset) IsAvailable() bool {
	return o == OffsetOpen || o == OffsetClose
}

// OrderIntent is the exchange instruction resolved from a signal.
type OrderIntent struct {
	Exchange       string    `json:"exchange"`
	Side           OrderSide `json:"side"`
	ContractSymbol string    `json:"contract_symbol"`
}

// QueuedMessage is the body placed on the trade queue.
type QueuedMessage struct {
	ID            string      `json:"id"`
	Intent        OrderIntent `json:"intent"`
	Action        Action      `json:"action"`
	ContractCode  string      `json:"contract_code"`
	ClientOrderID uint64      `json:"client_order_id"`
	Strategy      string      `json:"strategy"`
	Price         string      `json:"price"`
	RawSymbol     string      `json:"raw_symbol"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Order is the record of one submitted cross order.
type Order struct {
	ID            int64           `json:"id" db:"id"`
	OrderID       string          `json:"order_id" db:"order_id"`
	ClientOrderID uint64          `json:"client_order_id" db:"client_order_id"`
	MessageID     string          `json:"message_id" db:"message_id"`
	ContractCode  string          `json:"contract_code" db:"contract_code"`
	Direction     Direction       `json:"direction" db:"direction"`
	Offset        Offset          `json:"offset" db:"position_offset"`
	Volume        decimal.Decimal `json:"volume" db:"volume"`
	LeverRate     int             `json:"lever_rate" db:"lever_rate"`
	PriceType     string          `json:"price_type" db:"price_type"`
	Status        OrderStatus     `json:"status" db:"status"`
	Reason        string          `json:"reason" db:"reason"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}
