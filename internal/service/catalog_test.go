package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/store"
)

func newCatalog(t *testing.T) (*Catalog, *store.Categories) {
	t.Helper()
	rs := store.NewMemory()
	repo := store.NewCategories(rs)
	return NewCatalog(repo, nil), repo
}

func TestAddCategoryDefaultsAllTiers(t *testing.T) {
	catalog, _ := newCatalog(t)
	ctx := context.Background()

	cat, err := catalog.AddCategory(ctx, 100, 90)
	require.NoError(t, err)
	assert.Equal(t, "100", cat.ID)
	assert.Equal(t, 0, cat.Stock)

	stored, err := catalog.Get(ctx, "100")
	require.NoError(t, err)
	for _, tier := range model.Tiers {
		price, ok := stored.Prices.Get(tier)
		require.True(t, ok, "tier %d", tier)
		assert.Equal(t, 90.0, price)
	}

	_, err = catalog.AddCategory(ctx, 100, 80)
	assert.Error(t, err)
}

func TestSetTierPriceValidation(t *testing.T) {
	catalog, _ := newCatalog(t)
	ctx := context.Background()
	_, err := catalog.AddCategory(ctx, 100, 90)
	require.NoError(t, err)

	assert.ErrorIs(t, catalog.SetTierPrice(ctx, "100", model.Tier10, 0), ErrInvalidPrice)
	assert.ErrorIs(t, catalog.SetTierPrice(ctx, "100", model.Tier10, -5), ErrInvalidPrice)
	assert.ErrorIs(t, catalog.SetTierPrice(ctx, "100", model.Tier(7), 50), ErrUnknownTier)
	assert.ErrorIs(t, catalog.SetTierPrice(ctx, "200", model.Tier10, 50), ErrCategoryNotFound)

	require.NoError(t, catalog.SetTierPrice(ctx, "100", model.Tier10, 75))
	stored, err := catalog.Get(ctx, "100")
	require.NoError(t, err)
	price, ok := stored.Prices.Get(model.Tier10)
	require.True(t, ok)
	assert.Equal(t, 75.0, price)
}

func TestRemoveCodeScansAllCategories(t *testing.T) {
	catalog, _ := newCatalog(t)
	ctx := context.Background()

	_, err := catalog.AddCategory(ctx, 100, 90)
	require.NoError(t, err)
	_, err = catalog.AddCategory(ctx, 200, 180)
	require.NoError(t, err)

	_, err = catalog.AppendCodes(ctx, "100", []string{"AAA", "BBB"})
	require.NoError(t, err)
	_, err = catalog.AppendCodes(ctx, "200", []string{"CCC"})
	require.NoError(t, err)

	id, err := catalog.RemoveCode(ctx, "CCC")
	require.NoError(t, err)
	assert.Equal(t, "200", id)

	cat, err := catalog.Get(ctx, "200")
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Stock)
	assert.Empty(t, cat.Codes)

	_, err = catalog.RemoveCode(ctx, "CCC")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestDeleteCategoryIsFinal(t *testing.T) {
	catalog, _ := newCatalog(t)
	ctx := context.Background()

	_, err := catalog.AddCategory(ctx, 100, 90)
	require.NoError(t, err)

	require.NoError(t, catalog.DeleteCategory(ctx, "100"))
	_, err = catalog.Get(ctx, "100")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	assert.ErrorIs(t, catalog.DeleteCategory(ctx, "100"), ErrCategoryNotFound)
}
