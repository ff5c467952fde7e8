// Package model defines the typed records persisted through the row store.
// All identifiers are canonical strings; Telegram numeric ids are converted
// once at the transport boundary.
package model

import "time"

// UserStatus enumerates the admin-controlled account states.
type UserStatus string

const (
	UserActive  UserStatus = "Active"
	UserBlocked UserStatus = "Blocked"
)

// User is one shop customer, created on first successful verification.
type User struct {
	ID       string
	Name     string
	JoinedAt time.Time
	Status   UserStatus
	Verified bool
}

// Blocked reports whether the user is barred from the shop.
func (u User) Blocked() bool {
	return u.Status == UserBlocked
}

// Tier is a quantity breakpoint at which a discounted unit price applies.
type Tier int

const (
	Tier1      Tier = 1
	Tier2      Tier = 2
	Tier3      Tier = 3
	Tier4      Tier = 4
	Tier5      Tier = 5
	Tier10     Tier = 10
	Tier20Plus Tier = 20
)

// Tiers lists all breakpoints in descending priority order.
var Tiers = []Tier{Tier20Plus, Tier10, Tier5, Tier4, Tier3, Tier2, Tier1}

// PriceTable holds the per-tier unit prices of a category.
// A nil entry means the tier is unpopulated and pricing falls through
// to the next lower tier.
type PriceTable struct {
	prices map[Tier]*float64
}

// NewPriceTable builds a table with every tier set to basePrice.
func NewPriceTable(basePrice float64) PriceTable {
	t := PriceTable{prices: make(map[Tier]*float64, len(Tiers))}
	for _, tier := range Tiers {
		p := basePrice
		t.prices[tier] = &p
	}
	return t
}

// EmptyPriceTable builds a table with no populated tiers.
func EmptyPriceTable() PriceTable {
	return PriceTable{prices: make(map[Tier]*float64, len(Tiers))}
}

// Set populates the unit price for a tier.
func (t *PriceTable) Set(tier Tier, price float64) {
	if t.prices == nil {
		t.prices = make(map[Tier]*float64, len(Tiers))
	}
	p := price
	t.prices[tier] = &p
}

// Get returns the unit price for a tier and whether it is populated.
func (t PriceTable) Get(tier Tier) (float64, bool) {
	p, ok := t.prices[tier]
	if !ok || p == nil {
		return 0, false
	}
	return *p, true
}

// Unset clears a tier.
func (t *PriceTable) Unset(tier Tier) {
	delete(t.prices, tier)
}

// Category is a purchasable voucher denomination with its own price tiers
// and code inventory. Stock must equal len(Codes) after every committed
// mutation.
type Category struct {
	ID     string
	Value  int
	Prices PriceTable
	Stock  int
	Codes  []string
}

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderSuccessful OrderStatus = "Successful"
	OrderDeclined   OrderStatus = "Declined"
)

// Order is one purchase attempt. Delivered is non-empty iff the order is
// Successful, and then holds exactly Quantity codes.
type Order struct {
	ID         string
	UserID     string
	UserName   string
	CategoryID string
	Quantity   int
	Total      float64
	UTR        string
	Status     OrderStatus
	Delivered  []string
	CreatedAt  time.Time
}

// Processed reports whether the order has reached a terminal status.
func (o Order) Processed() bool {
	return o.Status != OrderPending
}

// LogEntry is one audit trail record.
type LogEntry struct {
	Timestamp time.Time
	UserID    string
	Action    string
	Details   string
}
