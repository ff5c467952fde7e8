package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/store"
)

func seedCategory(t *testing.T, rs store.RowStore, id string, codes ...string) *store.Categories {
	t.Helper()
	repo := store.NewCategories(rs)
	cat := model.Category{
		ID:     id,
		Value:  100,
		Prices: model.NewPriceTable(90),
		Stock:  len(codes),
		Codes:  codes,
	}
	require.NoError(t, repo.Create(context.Background(), cat))
	return repo
}

func TestReserveTakesOldestCodesFirst(t *testing.T) {
	rs := store.NewMemory()
	repo := seedCategory(t, rs, "100", "AAA", "BBB", "CCC", "DDD")
	alloc := NewAllocator(repo, nil)

	codes, err := alloc.Reserve(context.Background(), "100", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, codes)

	cat, ok, err := repo.Get(context.Background(), "100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"CCC", "DDD"}, cat.Codes)
	assert.Equal(t, 2, cat.Stock)
}

func TestReserveInsufficientStock(t *testing.T) {
	rs := store.NewMemory()
	repo := seedCategory(t, rs, "100", "AAA", "BBB", "CCC")
	alloc := NewAllocator(repo, nil)

	_, err := alloc.Reserve(context.Background(), "100", 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	cat, _, err := repo.Get(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, 3, cat.Stock)
	assert.Len(t, cat.Codes, 3)
}

func TestReserveRejectsBadInput(t *testing.T) {
	rs := store.NewMemory()
	repo := seedCategory(t, rs, "100", "AAA")
	alloc := NewAllocator(repo, nil)

	_, err := alloc.Reserve(context.Background(), "100", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = alloc.Reserve(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

// Stock conservation: after any sequence of appends and reservations the
// stock count equals the pool length.
func TestConservationAcrossAppendAndReserve(t *testing.T) {
	rs := store.NewMemory()
	repo := seedCategory(t, rs, "100")
	catalog := NewCatalog(repo, nil)
	alloc := NewAllocator(repo, nil)
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		batch := make([]string, 4)
		for i := range batch {
			batch[i] = fmt.Sprintf("code-%d-%d", round, i)
		}
		_, err := catalog.AppendCodes(ctx, "100", batch)
		require.NoError(t, err)

		_, err = alloc.Reserve(ctx, "100", 3)
		require.NoError(t, err)

		cat, _, err := repo.Get(ctx, "100")
		require.NoError(t, err)
		assert.Equal(t, len(cat.Codes), cat.Stock)
	}

	cat, _, err := repo.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 5, cat.Stock)
}

// Two concurrent reservations summing past the pool size must not both
// succeed, and no code may be handed out twice.
func TestNoOverAllocationUnderConcurrency(t *testing.T) {
	rs := store.NewMemory()
	repo := seedCategory(t, rs, "100", "A", "B", "C", "D", "E")
	alloc := NewAllocator(repo, nil)
	ctx := context.Background()

	results := make([][]string, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i, qty := range []int{3, 4} {
		wg.Add(1)
		go func(i, qty int) {
			defer wg.Done()
			results[i], errs[i] = alloc.Reserve(ctx, "100", qty)
		}(i, qty)
	}
	wg.Wait()

	succeeded := 0
	seen := map[string]bool{}
	for i := range results {
		if errs[i] == nil {
			succeeded++
			for _, code := range results[i] {
				assert.False(t, seen[code], "code %s allocated twice", code)
				seen[code] = true
			}
		} else {
			assert.ErrorIs(t, errs[i], ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded)

	cat, _, err := repo.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, len(cat.Codes), cat.Stock)
	assert.Equal(t, 5-len(seen), cat.Stock)
}
