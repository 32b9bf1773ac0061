package migrations

import (
	"github.com/ksred/klear-splitter/internal/trading"
	"gorm.io/gorm"
)

// CreateOrderLedger creates the orders and order_items tables
func CreateOrderLedger(db *gorm.DB) error {
	return db.AutoMigrate(&trading.OrderRecord{}, &trading.OrderItemRecord{})
}
