package service

import (
	"math"

	"github.com/m3rciful/vouchershop/internal/model"
)

// ResolvePrice maps a quantity to a unit price via a descending breakpoint
// scan: the highest tier whose breakpoint does not exceed the quantity wins,
// and an unpopulated tier falls through to the next lower one. ErrNotPriced
// is returned when no tier resolves.
func ResolvePrice(cat model.Category, quantity int) (float64, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	for _, tier := range model.Tiers {
		if quantity < int(tier) {
			continue
		}
		if price, ok := cat.Prices.Get(tier); ok {
			return price, nil
		}
	}
	return 0, ErrNotPriced
}

// TotalCost resolves the unit price and returns the 2-decimal total.
func TotalCost(cat model.Category, quantity int) (float64, error) {
	unit, err := ResolvePrice(cat, quantity)
	if err != nil {
		return 0, err
	}
	return Round2(unit * float64(quantity)), nil
}

// Round2 rounds a money value to two decimal places. Repeated calls on the
// same input always yield the same result.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
