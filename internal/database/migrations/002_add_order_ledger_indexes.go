package migrations

import "gorm.io/gorm"

// AddOrderLedgerIndexes adds the indexes behind per-user listing and item preloads
func AddOrderLedgerIndexes(db *gorm.DB) error {
	indexes := []string{
		// Listing a user's orders in insertion order
		`CREATE INDEX IF NOT EXISTS idx_orders_user_seq
		 ON orders(user_id, seq)`,

		// Preloading items in their original order
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_position
		 ON order_items(order_id, position)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}
	return nil
}
