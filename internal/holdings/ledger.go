// Package holdings tracks each user's net share position per symbol.
package holdings

import (
	"sync"

	"github.com/ksred/klear-splitter/internal/types"
	"github.com/shopspring/decimal"
)

// Ledger keeps running share totals keyed by user and symbol. It does not
// guard against negative positions; callers check sufficiency first.
type Ledger struct {
	mu            sync.RWMutex
	positions     map[string]map[string]decimal.Decimal
	shareDecimals int32
}

func NewLedger(shareDecimals int32) *Ledger {
	return &Ledger{
		positions:     make(map[string]map[string]decimal.Decimal),
		shareDecimals: shareDecimals,
	}
}

// HeldShares returns the user's position in symbol, zero when unseen
func (l *Ledger) HeldShares(userID, symbol string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if held, ok := l.positions[userID][symbol]; ok {
		return held
	}
	return decimal.Zero
}

// Apply adds (BUY) or subtracts (SELL) each item's shares, re-rounding the
// running total after every update.
func (l *Ledger) Apply(userID string, items []types.OrderItem, direction types.Direction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, ok := l.positions[userID]
	if !ok {
		user = make(map[string]decimal.Decimal)
		l.positions[userID] = user
	}

	for _, item := range items {
		delta := item.Shares
		if direction == types.DirectionSell {
			delta = delta.Neg()
		}
		user[item.Symbol] = user[item.Symbol].Add(delta).Round(l.shareDecimals)
	}
}

// Positions returns a copy of every symbol position held by userID
func (l *Ledger) Positions(userID string) map[string]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(l.positions[userID]))
	for symbol, shares := range l.positions[userID] {
		out[symbol] = shares
	}
	return out
}
