// Package commission splits a gross payment into the platform cut and
// creator earnings. Amounts are integer cents.
package commission

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidRate   = errors.New("invalid_rate")
)

// Split returns (platform commission, creator earnings) for a gross amount
// and a commission rate in [0, 1]. The commission is gross*rate rounded
// half-up to a cent; earnings are the exact remainder, so the two always sum
// back to gross.
func Split(grossCents int64, rate float64) (int64, int64, error) {
	if grossCents < 0 {
		return 0, 0, ErrInvalidAmount
	}
	if rate < 0 || rate > 1 {
		return 0, 0, ErrInvalidRate
	}

	gross := decimal.NewFromInt(grossCents)
	commission := gross.Mul(decimal.NewFromFloat(rate)).Round(0)

	commissionCents := commission.IntPart()
	return commissionCents, grossCents - commissionCents, nil
}
