package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vouchershop/internal/model"
)

func tieredCategory() model.Category {
	prices := model.EmptyPriceTable()
	prices.Set(model.Tier1, 50)
	prices.Set(model.Tier5, 45)
	prices.Set(model.Tier10, 40)
	prices.Set(model.Tier20Plus, 35)
	return model.Category{ID: "100", Value: 100, Prices: prices}
}

func TestResolvePriceBreakpoints(t *testing.T) {
	cat := tieredCategory()

	cases := []struct {
		qty  int
		want float64
	}{
		{1, 50},
		{4, 50},
		{5, 45},
		{9, 45},
		{10, 40},
		{19, 40},
		{20, 35},
		{25, 35},
	}
	for _, tc := range cases {
		got, err := ResolvePrice(cat, tc.qty)
		require.NoError(t, err, "qty %d", tc.qty)
		assert.Equal(t, tc.want, got, "qty %d", tc.qty)
	}
}

func TestResolvePriceFallsThroughUnpopulatedTiers(t *testing.T) {
	prices := model.EmptyPriceTable()
	prices.Set(model.Tier1, 50)
	prices.Set(model.Tier5, 45)
	cat := model.Category{ID: "50", Value: 50, Prices: prices}

	// Tier10 and Tier20Plus are unpopulated, large quantities fall to Tier5.
	got, err := ResolvePrice(cat, 30)
	require.NoError(t, err)
	assert.Equal(t, 45.0, got)

	got, err = ResolvePrice(cat, 3)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got)
}

func TestResolvePriceNotPriced(t *testing.T) {
	cat := model.Category{ID: "10", Value: 10, Prices: model.EmptyPriceTable()}
	_, err := ResolvePrice(cat, 3)
	assert.ErrorIs(t, err, ErrNotPriced)
}

func TestResolvePriceRejectsNonPositiveQuantity(t *testing.T) {
	cat := tieredCategory()
	_, err := ResolvePrice(cat, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = ResolvePrice(cat, -2)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestTotalCostRoundsDeterministically(t *testing.T) {
	prices := model.EmptyPriceTable()
	prices.Set(model.Tier1, 33.335)
	cat := model.Category{ID: "33", Value: 33, Prices: prices}

	first, err := TotalCost(cat, 3)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		again, err := TotalCost(cat, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, Round2(first), first)
}
