package holdings

import (
	"github.com/ksred/klear-splitter/internal/types"
	"github.com/shopspring/decimal"
)

const moneyDecimals = 2

type accumulator struct {
	shares   decimal.Decimal
	invested decimal.Decimal
	sold     decimal.Decimal
}

// Summarize folds a user's full order history into per-symbol holdings.
// Symbols appear in the order they were first traded.
func Summarize(orders []types.Order, shareDecimals int32) types.HoldingsSummary {
	bySymbol := make(map[string]*accumulator)
	var symbols []string

	for _, order := range orders {
		for _, item := range order.Items {
			acc, ok := bySymbol[item.Symbol]
			if !ok {
				acc = &accumulator{}
				bySymbol[item.Symbol] = acc
				symbols = append(symbols, item.Symbol)
			}

			switch order.Direction {
			case types.DirectionBuy:
				acc.shares = acc.shares.Add(item.Shares).Round(shareDecimals)
				acc.invested = acc.invested.Add(item.Amount)
			case types.DirectionSell:
				acc.shares = acc.shares.Sub(item.Shares).Round(shareDecimals)
				acc.sold = acc.sold.Add(item.Amount)
			}
		}
	}

	summary := types.HoldingsSummary{
		Holdings:      make([]types.StockHolding, 0, len(symbols)),
		TotalInvested: decimal.Zero,
		TotalSold:     decimal.Zero,
		NetAmount:     decimal.Zero,
	}
	for _, symbol := range symbols {
		acc := bySymbol[symbol]
		invested := acc.invested.Round(moneyDecimals)
		sold := acc.sold.Round(moneyDecimals)
		net := invested.Sub(sold)

		summary.Holdings = append(summary.Holdings, types.StockHolding{
			Symbol:        symbol,
			Shares:        acc.shares,
			TotalInvested: invested,
			TotalSold:     sold,
			NetAmount:     net,
		})
		summary.TotalInvested = summary.TotalInvested.Add(invested)
		summary.TotalSold = summary.TotalSold.Add(sold)
		summary.NetAmount = summary.NetAmount.Add(net)
	}
	return summary
}
