package trading_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ksred/klear-splitter/internal/database"
	"github.com/ksred/klear-splitter/internal/trading"
	"github.com/ksred/klear-splitter/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]trading.OrderStore {
	t.Helper()
	db, err := database.NewDatabase(database.Config{LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	return map[string]trading.OrderStore{
		"memory": trading.NewMemoryStore(),
		"gorm":   trading.NewGormStore(db),
	}
}

func sampleOrder(id, userID string, createdAt time.Time) *types.Order {
	return &types.Order{
		ID:          id,
		UserID:      userID,
		Direction:   types.DirectionBuy,
		TotalAmount: decimal.RequireFromString("1000.33"),
		Items: []types.OrderItem{
			{Symbol: "TSLA", Amount: decimal.RequireFromString("666.92"), Shares: decimal.RequireFromString("6.669")},
			{Symbol: "AAPL", Amount: decimal.RequireFromString("333.41"), Shares: decimal.RequireFromString("3.334")},
		},
		ExecuteOn: "2024-03-13",
		Status:    types.StatusScheduled,
		CreatedAt: createdAt,
	}
}

func TestOrderStores(t *testing.T) {
	created := time.Date(2024, 3, 13, 14, 0, 0, 0, time.UTC)

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				require.NoError(t, store.Append(ctx, sampleOrder(fmt.Sprintf("order-%d", i), "alice", created)))
			}
			require.NoError(t, store.Append(ctx, sampleOrder("order-bob", "bob", created)))

			t.Run("duplicate id is rejected", func(t *testing.T) {
				assert.Error(t, store.Append(ctx, sampleOrder("order-0", "alice", created)))
			})

			t.Run("find all keeps insertion order and owner", func(t *testing.T) {
				orders, err := store.FindAll(ctx, "alice")
				require.NoError(t, err)
				require.Len(t, orders, 3)
				for i, o := range orders {
					assert.Equal(t, fmt.Sprintf("order-%d", i), o.ID)
				}

				none, err := store.FindAll(ctx, "carol")
				require.NoError(t, err)
				assert.NotNil(t, none)
				assert.Empty(t, none)
			})

			t.Run("find one round trips values", func(t *testing.T) {
				got, err := store.FindOne(ctx, "order-1", "alice")
				require.NoError(t, err)

				assert.Equal(t, types.DirectionBuy, got.Direction)
				assert.Equal(t, types.StatusScheduled, got.Status)
				assert.Equal(t, "2024-03-13", got.ExecuteOn)
				assert.True(t, decimal.RequireFromString("1000.33").Equal(got.TotalAmount))
				assert.True(t, created.Equal(got.CreatedAt))
				require.Len(t, got.Items, 2)
				assert.Equal(t, "TSLA", got.Items[0].Symbol)
				assert.Equal(t, "AAPL", got.Items[1].Symbol)
				assert.Equal(t, "6.669", got.Items[0].Shares.String())
				assert.Equal(t, "333.41", got.Items[1].Amount.String())
			})

			t.Run("find one hides other owners", func(t *testing.T) {
				_, err := store.FindOne(ctx, "order-bob", "alice")
				assert.True(t, types.IsNotFound(err))

				_, err = store.FindOne(ctx, "missing", "alice")
				assert.True(t, types.IsNotFound(err))
			})
		})
	}
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	store := trading.NewMemoryStore()
	ctx := context.Background()
	order := sampleOrder("o1", "alice", time.Now())
	require.NoError(t, store.Append(ctx, order))

	order.Items[0].Symbol = "CHANGED"
	got, err := store.FindOne(ctx, "o1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", got.Items[0].Symbol)

	got.Items[0].Symbol = "CHANGED"
	again, _ := store.FindOne(ctx, "o1", "alice")
	assert.Equal(t, "TSLA", again.Items[0].Symbol)
}
