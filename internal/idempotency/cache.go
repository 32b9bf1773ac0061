// Package idempotency deduplicates order submissions keyed by a
// client-supplied token.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/ksred/klear-splitter/internal/types"
)

// DefaultTTL is how long a token stays bound to its first request
const DefaultTTL = 24 * time.Hour

// Record binds a token to the order it produced
type Record struct {
	Order       types.Order
	UserID      string
	RequestHash string
	CreatedAt   time.Time
}

// Cache is an in-memory token → Record map with lazy and on-demand expiry
type Cache struct {
	mu      sync.Mutex
	records map[string]Record
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache. A nil now defaults to time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		records: make(map[string]Record),
		ttl:     ttl,
		now:     now,
	}
}

// Lookup resolves token for userID and the given request hash.
// A live record owned by userID with the same hash is a hit and returns a copy
// of the cached order. Owner mismatch is reported before payload mismatch,
// and both before expiry. An expired record is evicted and reported as a miss.
func (c *Cache) Lookup(token, userID, requestHash string) (*types.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[token]
	if !ok {
		return nil, false, nil
	}
	if rec.UserID != userID {
		return nil, false, types.NewConflictError(types.ErrIdempotencyConflict,
			"Idempotency key already used by another user")
	}
	if rec.RequestHash != requestHash {
		return nil, false, types.NewConflictError(types.ErrIdempotencyConflict,
			"Idempotency key used with different request payload")
	}
	if c.expired(rec) {
		delete(c.records, token)
		return nil, false, nil
	}

	order := rec.Order.Clone()
	return &order, true, nil
}

// Store binds token to rec, replacing any previous record
func (c *Cache) Store(token string, rec Record) {
	rec.Order = rec.Order.Clone()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now()
	}

	c.mu.Lock()
	c.records[token] = rec
	c.mu.Unlock()
}

// EvictExpired removes every record at or past its TTL and returns how many
// were removed.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for token, rec := range c.records {
		if c.expired(rec) {
			delete(c.records, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of records held, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *Cache) expired(rec Record) bool {
	return c.now().Sub(rec.CreatedAt) >= c.ttl
}

type normalizedAllocation struct {
	InstrumentID string  `json:"instrument_id"`
	Percentage   string  `json:"percentage"`
	Price        *string `json:"price"`
}

type normalizedRequest struct {
	Direction types.Direction        `json:"direction"`
	Amount    string                 `json:"amount"`
	Portfolio []normalizedAllocation `json:"portfolio"`
}

// RequestHash returns the hex SHA-256 of a canonical projection of req.
// Decimals are rendered without trailing zeros so 100 and 100.00 hash alike;
// allocation order is significant.
func RequestHash(req types.CreateOrderRequest) string {
	n := normalizedRequest{
		Direction: req.Direction,
		Amount:    req.Amount.String(),
		Portfolio: make([]normalizedAllocation, 0, len(req.Portfolio)),
	}
	for _, a := range req.Portfolio {
		item := normalizedAllocation{
			InstrumentID: a.InstrumentID,
			Percentage:   a.Percentage.String(),
		}
		if a.Price != nil {
			p := a.Price.String()
			item.Price = &p
		}
		n.Portfolio = append(n.Portfolio, item)
	}

	// Marshalling plain strings cannot fail.
	payload, _ := json.Marshal(n)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
