package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/klear-splitter/internal/catalog"
	"github.com/ksred/klear-splitter/internal/holdings"
	"github.com/ksred/klear-splitter/internal/idempotency"
	"github.com/ksred/klear-splitter/internal/market"
	"github.com/ksred/klear-splitter/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// InstrumentResolver maps an instrument id to its catalog entry
type InstrumentResolver interface {
	Resolve(id string) (catalog.Instrument, error)
}

// BalanceLedger holds each user's cash
type BalanceLedger interface {
	Balance(userID string) (decimal.Decimal, error)
	Debit(userID string, amount decimal.Decimal) error
	Credit(userID string, amount decimal.Decimal) error
}

// Scheduler stamps the execution date and status of a new order
type Scheduler interface {
	Decide(now time.Time) market.Decision
}

// Config holds the allocation parameters
type Config struct {
	// FloorPrice is the default per-share price and the minimum accepted override
	FloorPrice     decimal.Decimal
	ShareDecimals  int32
	IdempotencyTTL time.Duration
}

// DefaultConfig returns a $100 floor, 3 share decimals and a 24h idempotency window
func DefaultConfig() Config {
	return Config{
		FloorPrice:     decimal.NewFromInt(100),
		ShareDecimals:  3,
		IdempotencyTTL: idempotency.DefaultTTL,
	}
}

// Option customises a Service
type Option func(*Service)

// WithClock replaces time.Now for scheduling and idempotency expiry
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the order id generator
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// Service splits orders across portfolios and owns the holdings and
// idempotency state that goes with them
type Service struct {
	cfg         Config
	store       OrderStore
	catalog     InstrumentResolver
	balances    BalanceLedger
	scheduler   Scheduler
	holdings    *holdings.Ledger
	idempotency *idempotency.Cache

	userLocks  *keyedMutex
	tokenLocks *keyedMutex

	now   func() time.Time
	newID func() string
}

// NewService creates a trading service over the given collaborators
func NewService(cfg Config, store OrderStore, instruments InstrumentResolver, balances BalanceLedger, scheduler Scheduler, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		store:      store,
		catalog:    instruments,
		balances:   balances,
		scheduler:  scheduler,
		holdings:   holdings.NewLedger(cfg.ShareDecimals),
		userLocks:  newKeyedMutex(),
		tokenLocks: newKeyedMutex(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.idempotency = idempotency.NewCache(cfg.IdempotencyTTL, s.now)
	return s
}

// CreateOrder validates, prices and records an order for userID.
// With a non-empty idempotencyKey, a repeat of the same request by the same
// user returns the first result without touching any ledger.
// Either every ledger is updated or none is.
func (s *Service) CreateOrder(ctx context.Context, req types.CreateOrderRequest, userID, idempotencyKey string) (*types.Order, error) {
	logger := log.With().
		Str("service", "trading").
		Str("user_id", userID).
		Str("direction", string(req.Direction)).
		Logger()

	// Lock order is user then token.
	unlockUser := s.userLocks.Lock(userID)
	defer unlockUser()

	var requestHash string
	if idempotencyKey != "" {
		unlockToken := s.tokenLocks.Lock(idempotencyKey)
		defer unlockToken()

		requestHash = idempotency.RequestHash(req)
		cached, hit, err := s.idempotency.Lookup(idempotencyKey, userID, requestHash)
		if err != nil {
			logger.Warn().Err(err).Msg("idempotency key rejected")
			return nil, err
		}
		if hit {
			logger.Debug().Str("order_id", cached.ID).Msg("returning cached order for idempotency key")
			return cached, nil
		}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	items, err := s.allocate(req)
	if err != nil {
		logger.Debug().Err(err).Msg("order rejected")
		return nil, err
	}

	amount := req.Amount.Round(moneyDecimals)
	balance, err := s.balances.Balance(userID)
	if err != nil {
		return nil, err
	}

	switch req.Direction {
	case types.DirectionBuy:
		if amount.GreaterThan(balance) {
			return nil, types.NewConflictError(types.ErrInsufficientBalance,
				fmt.Sprintf("Insufficient balance: requested $%s, available $%s",
					amount.StringFixed(moneyDecimals), balance.StringFixed(moneyDecimals)))
		}
	case types.DirectionSell:
		for _, item := range items {
			held := s.holdings.HeldShares(userID, item.Symbol)
			if item.Shares.GreaterThan(held) {
				return nil, types.NewConflictError(types.ErrInsufficientShares,
					fmt.Sprintf("Insufficient shares for %s: requested %s, held %s",
						item.Symbol, item.Shares.String(), held.String()))
			}
		}
	}

	now := s.now()
	decision := s.scheduler.Decide(now)
	order := &types.Order{
		ID:          s.newID(),
		UserID:      userID,
		Direction:   req.Direction,
		TotalAmount: amount,
		Items:       items,
		ExecuteOn:   decision.ExecutionDate,
		Status:      decision.Status,
		CreatedAt:   now,
	}

	if err := s.store.Append(ctx, order); err != nil {
		logger.Error().Err(err).Msg("failed to record order")
		return nil, fmt.Errorf("record order: %w", err)
	}

	s.holdings.Apply(userID, order.Items, order.Direction)

	if order.Direction == types.DirectionBuy {
		err = s.balances.Debit(userID, amount)
	} else {
		err = s.balances.Credit(userID, amount)
	}
	if err != nil {
		// Unreachable while the user lock is held and the account exists.
		logger.Error().Err(err).Str("order_id", order.ID).Msg("balance update failed after order was recorded")
		return nil, fmt.Errorf("update balance: %w", err)
	}

	if idempotencyKey != "" {
		s.idempotency.Store(idempotencyKey, idempotency.Record{
			Order:       *order,
			UserID:      userID,
			RequestHash: requestHash,
			CreatedAt:   now,
		})
	}

	logger.Info().
		Str("order_id", order.ID).
		Str("amount", amount.StringFixed(moneyDecimals)).
		Str("status", string(order.Status)).
		Str("execute_on", order.ExecuteOn).
		Msg("order created")

	out := order.Clone()
	return &out, nil
}

// ListOrders returns userID's orders, oldest first
func (s *Service) ListOrders(ctx context.Context, userID string) ([]types.Order, error) {
	return s.store.FindAll(ctx, userID)
}

// GetOrder returns the order if userID owns it, otherwise a NotFoundError
func (s *Service) GetOrder(ctx context.Context, orderID, userID string) (*types.Order, error) {
	return s.store.FindOne(ctx, orderID, userID)
}

// GetHoldingsSummary recomputes userID's holdings from the order ledger
func (s *Service) GetHoldingsSummary(ctx context.Context, userID string) (*types.HoldingsSummary, error) {
	orders, err := s.store.FindAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := holdings.Summarize(orders, s.cfg.ShareDecimals)
	return &summary, nil
}

// HeldShares returns the running share position for userID in symbol
func (s *Service) HeldShares(userID, symbol string) decimal.Decimal {
	return s.holdings.HeldShares(userID, symbol)
}

// EvictExpiredIdempotencyRecords drops idempotency records past their TTL
// and returns how many were removed
func (s *Service) EvictExpiredIdempotencyRecords() int {
	removed := s.idempotency.EvictExpired()
	log.Debug().Str("service", "trading").Int("removed", removed).Msg("evicted expired idempotency records")
	return removed
}
