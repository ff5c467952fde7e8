package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/vouchershop/core/logger"
	"github.com/m3rciful/vouchershop/internal/store"
)

// Locker serializes inventory mutations per category. The default keyed
// mutex covers a single-instance deployment; multi-instance setups can
// inject a lock backed by an external lease service.
type Locker interface {
	Lock(key string)
	Unlock(key string)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex returns an in-process Locker with one mutex per key.
func NewKeyedMutex() Locker {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

func (k *keyedMutex) Lock(key string)   { k.get(key).Lock() }
func (k *keyedMutex) Unlock(key string) { k.get(key).Unlock() }

// Allocator reserves voucher codes from category pools. All reservations
// for one category pass through a critical section because the row store
// offers no transactions; the pool is re-read inside the section so the
// decision is made against the freshest state.
type Allocator struct {
	categories *store.Categories
	locks      Locker
}

// NewAllocator builds an Allocator. A nil locker falls back to in-process
// keyed mutexes.
func NewAllocator(categories *store.Categories, locks Locker) *Allocator {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Allocator{categories: categories, locks: locks}
}

// Reserve takes the oldest quantity codes from the category pool and
// persists the shrunken pool. It fails with ErrInsufficientStock when the
// pool is too small at decision time.
func (a *Allocator) Reserve(ctx context.Context, categoryID string, quantity int) ([]string, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	a.locks.Lock(categoryID)
	defer a.locks.Unlock(categoryID)

	cat, ok, err := a.categories.Get(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("inventory: read category %s: %w", categoryID, err)
	}
	if !ok {
		return nil, ErrCategoryNotFound
	}
	if quantity > len(cat.Codes) {
		logger.SVCInventory.Warn("reservation rejected",
			slog.String("event", "reserve.short"),
			slog.String("category_id", categoryID),
			slog.Int("qty", quantity),
			slog.Int("stock", len(cat.Codes)),
		)
		return nil, ErrInsufficientStock
	}

	reserved := append([]string(nil), cat.Codes[:quantity]...)
	cat.Codes = append([]string(nil), cat.Codes[quantity:]...)
	cat.Stock = len(cat.Codes)

	if err := a.categories.Update(ctx, cat); err != nil {
		return nil, fmt.Errorf("inventory: commit pool of %s: %w", categoryID, err)
	}

	logger.SVCInventory.Info("codes reserved",
		slog.String("event", "reserve.ok"),
		slog.String("category_id", categoryID),
		slog.Int("qty", quantity),
		slog.Int("stock", cat.Stock),
	)
	return reserved, nil
}
