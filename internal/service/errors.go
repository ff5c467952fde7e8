// Package service implements the shop's business core: pricing, inventory
// allocation, the catalog, and the order workflow.
package service

import "errors"

var (
	// ErrNotPriced means no tier of a category resolves to a unit price.
	ErrNotPriced = errors.New("category has no resolvable price")
	// ErrInsufficientStock means the requested quantity exceeds the code pool.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCategoryNotFound means the referenced category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCodeNotFound means no category holds the given voucher code.
	ErrCodeNotFound = errors.New("voucher code not found")
	// ErrOrderNotFound means the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUserNotFound means the referenced user is not registered.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyProcessed guards terminal orders against a second decision.
	ErrAlreadyProcessed = errors.New("order already processed")
	// ErrNotOwner rejects a recovery attempt by a non-owner.
	ErrNotOwner = errors.New("order belongs to a different user")
	// ErrNotReady rejects recovery of an order that has not been delivered.
	ErrNotReady = errors.New("order has no delivered codes yet")
	// ErrInvalidUTR rejects a transaction reference that is not 12 digits.
	ErrInvalidUTR = errors.New("utr must be a 12-digit number")
	// ErrInvalidQuantity rejects non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidPrice rejects non-positive tier prices.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrUnknownTier rejects a tier outside the configured breakpoints.
	ErrUnknownTier = errors.New("unknown price tier")

	// ErrInconsistentState flags an order whose inventory was deducted but
	// whose record could not be updated. Manual reconciliation required.
	ErrInconsistentState = errors.New("inventory deducted but order update failed")
)
