package plan

import "github.com/shopspring/decimal"

var (
	softLimitFactor = decimal.RequireFromString("1.10")
	hundred         = decimal.NewFromInt(100)
)

// SoftLimit is floor(max × 1.10), the highest usage tolerated before denial.
func SoftLimit(max int64) int64 {
	return decimal.NewFromInt(max).Mul(softLimitFactor).Floor().IntPart()
}

// UsagePercentage returns count/max × 100 with the quotient rounded half-up
// to four decimals. A non-positive max yields zero.
func UsagePercentage(count, max int64) decimal.Decimal {
	if max <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(count).DivRound(decimal.NewFromInt(max), 4).Mul(hundred)
}
