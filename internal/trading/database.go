package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ksred/klear-splitter/internal/types"
	"gorm.io/gorm"
)

// OrderStore is the append-only order ledger
type OrderStore interface {
	Append(ctx context.Context, order *types.Order) error
	// FindAll returns userID's orders in insertion order
	FindAll(ctx context.Context, userID string) ([]types.Order, error)
	// FindOne returns a NotFoundError unless the order exists and belongs to userID
	FindOne(ctx context.Context, orderID, userID string) (*types.Order, error)
}

var (
	_ OrderStore = (*MemoryStore)(nil)
	_ OrderStore = (*GormStore)(nil)
)

func orderNotFound(orderID string) error {
	return types.NewNotFoundError(types.ErrOrderNotFound, fmt.Sprintf("Order with id %s not found", orderID))
}

// MemoryStore keeps orders in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	orders []types.Order
	byID   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

func (m *MemoryStore) Append(_ context.Context, order *types.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[order.ID]; exists {
		return fmt.Errorf("order %s already recorded", order.ID)
	}
	m.byID[order.ID] = len(m.orders)
	m.orders = append(m.orders, order.Clone())
	return nil
}

func (m *MemoryStore) FindAll(_ context.Context, userID string) ([]types.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Order, 0)
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) FindOne(_ context.Context, orderID, userID string) (*types.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[orderID]
	if !ok || m.orders[idx].UserID != userID {
		return nil, orderNotFound(orderID)
	}
	o := m.orders[idx].Clone()
	return &o, nil
}

// GormStore persists the ledger through gorm. The schema is created by the
// database package migrations.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (g *GormStore) Append(ctx context.Context, order *types.Order) error {
	// Create writes the order and its items in one transaction.
	if err := g.db.WithContext(ctx).Create(toRecord(order)).Error; err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	return nil
}

func (g *GormStore) FindAll(ctx context.Context, userID string) ([]types.Order, error) {
	var records []OrderRecord
	err := g.withItems(ctx).
		Where("user_id = ?", userID).
		Order("seq").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	out := make([]types.Order, len(records))
	for i := range records {
		out[i] = records[i].toOrder()
	}
	return out, nil
}

func (g *GormStore) FindOne(ctx context.Context, orderID, userID string) (*types.Order, error) {
	var record OrderRecord
	err := g.withItems(ctx).
		Where("order_id = ? AND user_id = ?", orderID, userID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	o := record.toOrder()
	return &o, nil
}

func (g *GormStore) withItems(ctx context.Context) *gorm.DB {
	return g.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	})
}
