package trading

import (
	"time"

	"github.com/ksred/klear-splitter/internal/types"
	"github.com/shopspring/decimal"
)

// OrderRecord is the persisted form of an order. Seq preserves insertion order.
type OrderRecord struct {
	Seq         uint            `gorm:"primaryKey;autoIncrement"`
	OrderID     string          `gorm:"uniqueIndex;size:36;not null"`
	UserID      string          `gorm:"index;size:36;not null"`
	Direction   string          `gorm:"size:4;not null"`
	TotalAmount decimal.Decimal `gorm:"type:text;not null"`
	ExecuteOn   string          `gorm:"size:10;not null"`
	Status      string          `gorm:"size:16;not null"`
	CreatedAt   time.Time
	Items       []OrderItemRecord `gorm:"foreignKey:OrderID;references:OrderID"`
}

func (OrderRecord) TableName() string { return "orders" }

// OrderItemRecord is one persisted order line
type OrderItemRecord struct {
	ID       uint            `gorm:"primaryKey"`
	OrderID  string          `gorm:"index;size:36;not null"`
	Position int             `gorm:"not null"`
	Symbol   string          `gorm:"size:16;not null"`
	Amount   decimal.Decimal `gorm:"type:text;not null"`
	Shares   decimal.Decimal `gorm:"type:text;not null"`
}

func (OrderItemRecord) TableName() string { return "order_items" }

func toRecord(o *types.Order) *OrderRecord {
	rec := &OrderRecord{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Direction:   string(o.Direction),
		TotalAmount: o.TotalAmount,
		ExecuteOn:   o.ExecuteOn,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		Items:       make([]OrderItemRecord, len(o.Items)),
	}
	for i, item := range o.Items {
		rec.Items[i] = OrderItemRecord{
			OrderID:  o.ID,
			Position: i,
			Symbol:   item.Symbol,
			Amount:   item.Amount,
			Shares:   item.Shares,
		}
	}
	return rec
}

func (r *OrderRecord) toOrder() types.Order {
	o := types.Order{
		ID:          r.OrderID,
		UserID:      r.UserID,
		Direction:   types.Direction(r.Direction),
		TotalAmount: r.TotalAmount,
		ExecuteOn:   r.ExecuteOn,
		Status:      types.OrderStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		Items:       make([]types.OrderItem, len(r.Items)),
	}
	for i, item := range r.Items {
		o.Items[i] = types.OrderItem{
			Symbol: item.Symbol,
			Amount: item.Amount,
			Shares: item.Shares,
		}
	}
	return o
}
