package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the side of a portfolio order
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Valid reports whether d is BUY or SELL
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// OrderStatus is the execution label stamped on an order at creation
type OrderStatus string

const (
	StatusScheduled OrderStatus = "SCHEDULED" // executes on the same trading day
	StatusPending   OrderStatus = "PENDING"   // deferred to a later trading day
)

// DateFormat is the calendar date layout used for execution dates
const DateFormat = "2006-01-02"

// Order is an accepted, immutable split of a monetary amount across instruments
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Direction   Direction       `json:"direction"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	ExecuteOn   string          `json:"execute_on"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderItem is one instrument's share of an order
type OrderItem struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
	Shares decimal.Decimal `json:"shares"`
}

// Clone returns a copy of the order that shares no memory with o
func (o Order) Clone() Order {
	c := o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	return c
}

// AllocationRequest weights one instrument inside a submission
type AllocationRequest struct {
	InstrumentID string           `json:"instrument_id"`
	Percentage   decimal.Decimal  `json:"percentage"`
	Price        *decimal.Decimal `json:"price,omitempty"`
}

// CreateOrderRequest is the body of an order submission
type CreateOrderRequest struct {
	Amount    decimal.Decimal     `json:"amount"`
	Direction Direction           `json:"direction"`
	Portfolio []AllocationRequest `json:"portfolio"`
}

var hundred = decimal.NewFromInt(100)

// Validate checks the shape of the request. Policy checks (percentage sum,
// duplicates, balances) belong to the trading service.
func (r CreateOrderRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return NewValidationError(ErrMalformedRequest, "amount must be greater than 0")
	}
	if !r.Direction.Valid() {
		return NewValidationError(ErrMalformedRequest, "direction must be BUY or SELL")
	}
	if r.Portfolio == nil {
		return NewValidationError(ErrMalformedRequest, "portfolio must be an array")
	}
	for i, item := range r.Portfolio {
		if _, err := uuid.Parse(item.InstrumentID); err != nil {
			return NewValidationError(ErrMalformedRequest,
				fmt.Sprintf("portfolio[%d].instrument_id must be a valid UUID", i))
		}
		if item.Percentage.IsNegative() || item.Percentage.GreaterThan(hundred) {
			return NewValidationError(ErrMalformedRequest,
				fmt.Sprintf("portfolio[%d].percentage must be between 0 and 100", i))
		}
		if item.Price != nil && !item.Price.IsPositive() {
			return NewValidationError(ErrMalformedRequest,
				fmt.Sprintf("portfolio[%d].price must be greater than 0", i))
		}
	}
	return nil
}

// StockHolding is the per-symbol line of a holdings summary
type StockHolding struct {
	Symbol        string          `json:"symbol"`
	Shares        decimal.Decimal `json:"shares"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalSold     decimal.Decimal `json:"total_sold"`
	NetAmount     decimal.Decimal `json:"net_amount"`
}

// HoldingsSummary aggregates a user's order history
type HoldingsSummary struct {
	Holdings      []StockHolding  `json:"holdings"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalSold     decimal.Decimal `json:"total_sold"`
	NetAmount     decimal.Decimal `json:"net_amount"`
}
