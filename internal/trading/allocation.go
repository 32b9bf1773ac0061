package trading

import (
	"fmt"
	"strings"

	"github.com/ksred/klear-splitter/internal/types"
	"github.com/shopspring/decimal"
)

const moneyDecimals = 2

var (
	hundred = decimal.NewFromInt(100)

	// PercentageTolerance is how far a portfolio's percentage sum may drift from 100
	PercentageTolerance = decimal.RequireFromString("0.01")
)

// allocate checks the portfolio against policy and splits amount across it.
// It mutates nothing.
func (s *Service) allocate(req types.CreateOrderRequest) ([]types.OrderItem, error) {
	if len(req.Portfolio) == 0 {
		return nil, types.NewValidationError(types.ErrEmptyPortfolio,
			"Portfolio must contain at least one stock")
	}

	sum := decimal.Zero
	for _, a := range req.Portfolio {
		sum = sum.Add(a.Percentage)
	}
	if sum.Sub(hundred).Abs().GreaterThan(PercentageTolerance) {
		return nil, types.NewValidationError(types.ErrInvalidPercentageSum,
			fmt.Sprintf("Portfolio percentages must sum to 100, got %s", sum.StringFixed(2)))
	}

	if dups := duplicateInstruments(req.Portfolio); len(dups) > 0 {
		return nil, types.NewValidationError(types.ErrDuplicateInstrument,
			fmt.Sprintf("Duplicate stocks found in portfolio: %s", strings.Join(dups, ", ")))
	}

	amount := req.Amount.Round(moneyDecimals)
	items := make([]types.OrderItem, 0, len(req.Portfolio))
	for _, a := range req.Portfolio {
		inst, err := s.catalog.Resolve(a.InstrumentID)
		if err != nil {
			return nil, types.NewValidationError(types.ErrUnknownInstrument,
				fmt.Sprintf("Stock with id %s not found", a.InstrumentID))
		}

		price := s.cfg.FloorPrice
		if a.Price != nil {
			if a.Price.LessThan(s.cfg.FloorPrice) {
				return nil, types.NewValidationError(types.ErrPriceBelowFloor,
					fmt.Sprintf("price for %s must be at least $%s, got $%s",
						inst.Symbol, s.cfg.FloorPrice.String(), a.Price.String()))
			}
			price = *a.Price
		}

		// Shares derive from the unrounded allocation so the money rounding
		// does not leak into the share count.
		raw := amount.Mul(a.Percentage).Div(hundred)
		items = append(items, types.OrderItem{
			Symbol: inst.Symbol,
			Amount: raw.Round(moneyDecimals),
			Shares: raw.DivRound(price, s.cfg.ShareDecimals),
		})
	}
	return items, nil
}

// duplicateInstruments lists repeated ids once each, in first-repeat order
func duplicateInstruments(portfolio []types.AllocationRequest) []string {
	seen := make(map[string]int, len(portfolio))
	var dups []string
	for _, a := range portfolio {
		seen[a.InstrumentID]++
		if seen[a.InstrumentID] == 2 {
			dups = append(dups, a.InstrumentID)
		}
	}
	return dups
}
