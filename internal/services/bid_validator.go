package services

import "github.com/shopspring/decimal"

// MinimumAcceptableBid computes the lowest amount an auction accepts at this
// instant: the starting price while no bid exists, otherwise the current
// price plus the minimum increment. Pure function; callers must evaluate it
// under the auction's exclusive lock or the result may be stale.
func MinimumAcceptableBid(startingPrice, currentPrice, minIncrement decimal.Decimal, bidCount int64) decimal.Decimal {
	if bidCount == 0 {
		return startingPrice
	}
	return currentPrice.Add(minIncrement)
}
