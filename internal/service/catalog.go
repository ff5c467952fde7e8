package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/vouchershop/core/logger"
	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/store"
)

// Catalog manages voucher categories: creation, tier pricing, and the
// raw code pools behind them.
type Catalog struct {
	categories *store.Categories
	locks      Locker
}

// NewCatalog builds a Catalog sharing the allocator's per-category locker
// so stock mutations never race a reservation.
func NewCatalog(categories *store.Categories, locks Locker) *Catalog {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Catalog{categories: categories, locks: locks}
}

// List returns every category.
func (c *Catalog) List(ctx context.Context) ([]model.Category, error) {
	return c.categories.List(ctx)
}

// Get returns one category or ErrCategoryNotFound.
func (c *Catalog) Get(ctx context.Context, categoryID string) (model.Category, error) {
	cat, ok, err := c.categories.Get(ctx, categoryID)
	if err != nil {
		return model.Category{}, err
	}
	if !ok {
		return model.Category{}, ErrCategoryNotFound
	}
	return cat, nil
}

// AddCategory creates a category with every tier defaulted to basePrice and
// an empty code pool. The category id is the face value's decimal string.
func (c *Catalog) AddCategory(ctx context.Context, faceValue int, basePrice float64) (model.Category, error) {
	if faceValue <= 0 {
		return model.Category{}, fmt.Errorf("catalog: face value %d: %w", faceValue, ErrInvalidQuantity)
	}
	if basePrice <= 0 {
		return model.Category{}, ErrInvalidPrice
	}

	cat := model.Category{
		ID:     strconv.Itoa(faceValue),
		Value:  faceValue,
		Prices: model.NewPriceTable(basePrice),
	}

	if _, ok, err := c.categories.Get(ctx, cat.ID); err != nil {
		return model.Category{}, err
	} else if ok {
		return model.Category{}, fmt.Errorf("catalog: category %s already exists", cat.ID)
	}

	if err := c.categories.Create(ctx, cat); err != nil {
		return model.Category{}, err
	}

	logger.SVCCatalog.Info("category created",
		slog.String("event", "category.add"),
		slog.String("category_id", cat.ID),
		slog.Float64("base_price", basePrice),
	)
	return cat, nil
}

// SetTierPrice updates one tier's unit price.
func (c *Catalog) SetTierPrice(ctx context.Context, categoryID string, tier model.Tier, price float64) error {
	if price <= 0 {
		return ErrInvalidPrice
	}
	valid := false
	for _, t := range model.Tiers {
		if t == tier {
			valid = true
			break
		}
	}
	if !valid {
		return ErrUnknownTier
	}

	cat, err := c.Get(ctx, categoryID)
	if err != nil {
		return err
	}
	cat.Prices.Set(tier, price)
	return c.categories.Update(ctx, cat)
}

// AppendCodes adds codes to a category's pool. Duplicates are the caller's
// responsibility; stock grows by the appended length.
func (c *Catalog) AppendCodes(ctx context.Context, categoryID string, codes []string) (int, error) {
	if len(codes) == 0 {
		return 0, fmt.Errorf("catalog: no codes to append")
	}

	c.locks.Lock(categoryID)
	defer c.locks.Unlock(categoryID)

	cat, err := c.Get(ctx, categoryID)
	if err != nil {
		return 0, err
	}
	cat.Codes = append(cat.Codes, codes...)
	cat.Stock = len(cat.Codes)
	if err := c.categories.Update(ctx, cat); err != nil {
		return 0, err
	}

	logger.SVCCatalog.Info("stock added",
		slog.String("event", "stock.add"),
		slog.String("category_id", categoryID),
		slog.Int("codes", len(codes)),
		slog.Int("stock", cat.Stock),
	)
	return cat.Stock, nil
}

// RemoveCode scans every category and removes the first exact match.
func (c *Catalog) RemoveCode(ctx context.Context, code string) (string, error) {
	cats, err := c.categories.List(ctx)
	if err != nil {
		return "", err
	}

	for _, cat := range cats {
		idx := -1
		for i, existing := range cat.Codes {
			if existing == code {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		c.locks.Lock(cat.ID)
		fresh, err := c.Get(ctx, cat.ID)
		if err != nil {
			c.locks.Unlock(cat.ID)
			return "", err
		}
		removed := false
		for i, existing := range fresh.Codes {
			if existing == code {
				fresh.Codes = append(fresh.Codes[:i:i], fresh.Codes[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			c.locks.Unlock(cat.ID)
			continue
		}
		fresh.Stock = len(fresh.Codes)
		err = c.categories.Update(ctx, fresh)
		c.locks.Unlock(cat.ID)
		if err != nil {
			return "", err
		}

		logger.SVCCatalog.Info("code removed",
			slog.String("event", "stock.remove"),
			slog.String("category_id", fresh.ID),
			slog.Int("stock", fresh.Stock),
		)
		return fresh.ID, nil
	}
	return "", ErrCodeNotFound
}

// DeleteCategory removes a category for good, pool included.
func (c *Catalog) DeleteCategory(ctx context.Context, categoryID string) error {
	found, err := c.categories.Delete(ctx, categoryID)
	if err != nil {
		return err
	}
	if !found {
		return ErrCategoryNotFound
	}
	logger.SVCCatalog.Info("category deleted",
		slog.String("event", "category.delete"),
		slog.String("category_id", categoryID),
	)
	return nil
}
