package store

import (
	"context"
	"fmt"

	"github.com/m3rciful/vouchershop/internal/model"
)

// ErrRowMissing reports an update against a record that disappeared from the
// backing table between read and write.
var ErrRowMissing = fmt.Errorf("store: row not found")

// Users is the typed repository over the Users table.
type Users struct {
	rs RowStore
}

// NewUsers wraps a RowStore.
func NewUsers(rs RowStore) *Users { return &Users{rs: rs} }

// Get returns the user with the given id, reporting presence separately.
func (u *Users) Get(ctx context.Context, id string) (model.User, bool, error) {
	rows, err := u.rs.ListRows(ctx, TableUsers)
	if err != nil {
		return model.User{}, false, err
	}
	for _, r := range rows {
		if r["UserID"] == id {
			return userFromRow(r), true, nil
		}
	}
	return model.User{}, false, nil
}

// List returns every registered user.
func (u *Users) List(ctx context.Context) ([]model.User, error) {
	rows, err := u.rs.ListRows(ctx, TableUsers)
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, userFromRow(r))
	}
	return out, nil
}

// Create appends a new user record.
func (u *Users) Create(ctx context.Context, user model.User) error {
	return u.rs.AppendRow(ctx, TableUsers, userToValues(user))
}

// Update rewrites the mutable cells of an existing user.
func (u *Users) Update(ctx context.Context, user model.User) error {
	verified := "No"
	if user.Verified {
		verified = "Yes"
	}
	found, err := u.rs.UpdateRow(ctx, TableUsers, "UserID", user.ID, map[string]string{
		"Name":     user.Name,
		"Status":   string(user.Status),
		"Verified": verified,
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %s: %w", user.ID, ErrRowMissing)
	}
	return nil
}

// Categories is the typed repository over the Categories table.
type Categories struct {
	rs RowStore
}

// NewCategories wraps a RowStore.
func NewCategories(rs RowStore) *Categories { return &Categories{rs: rs} }

// List returns every category in insertion order.
func (c *Categories) List(ctx context.Context) ([]model.Category, error) {
	rows, err := c.rs.ListRows(ctx, TableCategories)
	if err != nil {
		return nil, err
	}
	out := make([]model.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, categoryFromRow(r))
	}
	return out, nil
}

// Get returns the category with the given id, reporting presence separately.
func (c *Categories) Get(ctx context.Context, id string) (model.Category, bool, error) {
	rows, err := c.rs.ListRows(ctx, TableCategories)
	if err != nil {
		return model.Category{}, false, err
	}
	for _, r := range rows {
		if r["CategoryID"] == id {
			return categoryFromRow(r), true, nil
		}
	}
	return model.Category{}, false, nil
}

// Create appends a new category record.
func (c *Categories) Create(ctx context.Context, cat model.Category) error {
	return c.rs.AppendRow(ctx, TableCategories, categoryToValues(cat))
}

// Update rewrites every mutable cell of an existing category.
func (c *Categories) Update(ctx context.Context, cat model.Category) error {
	found, err := c.rs.UpdateRow(ctx, TableCategories, "CategoryID", cat.ID, categoryToPatch(cat))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("category %s: %w", cat.ID, ErrRowMissing)
	}
	return nil
}

// Delete removes a category record for good.
func (c *Categories) Delete(ctx context.Context, id string) (bool, error) {
	return c.rs.DeleteRow(ctx, TableCategories, "CategoryID", id)
}

// Orders is the typed repository over the Orders table.
type Orders struct {
	rs RowStore
}

// NewOrders wraps a RowStore.
func NewOrders(rs RowStore) *Orders { return &Orders{rs: rs} }

// Get returns the order with the given id, reporting presence separately.
func (o *Orders) Get(ctx context.Context, id string) (model.Order, bool, error) {
	rows, err := o.rs.ListRows(ctx, TableOrders)
	if err != nil {
		return model.Order{}, false, err
	}
	for _, r := range rows {
		if r["OrderID"] == id {
			return orderFromRow(r), true, nil
		}
	}
	return model.Order{}, false, nil
}

// ListByUser returns all orders created by one user, oldest first.
func (o *Orders) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := o.rs.ListRows(ctx, TableOrders)
	if err != nil {
		return nil, err
	}
	var out []model.Order
	for _, r := range rows {
		if r["UserID"] == userID {
			out = append(out, orderFromRow(r))
		}
	}
	return out, nil
}

// ListPending returns all orders still awaiting an admin decision.
func (o *Orders) ListPending(ctx context.Context) ([]model.Order, error) {
	rows, err := o.rs.ListRows(ctx, TableOrders)
	if err != nil {
		return nil, err
	}
	var out []model.Order
	for _, r := range rows {
		if model.OrderStatus(r["Status"]) == model.OrderPending {
			out = append(out, orderFromRow(r))
		}
	}
	return out, nil
}

// Create appends a new order record.
func (o *Orders) Create(ctx context.Context, order model.Order) error {
	return o.rs.AppendRow(ctx, TableOrders, orderToValues(order))
}

// SetOutcome writes the terminal status and delivered codes of an order.
func (o *Orders) SetOutcome(ctx context.Context, orderID string, status model.OrderStatus, delivered []string) error {
	found, err := o.rs.UpdateRow(ctx, TableOrders, "OrderID", orderID, map[string]string{
		"Status":               string(status),
		"VoucherCodeDelivered": joinCodes(delivered),
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("order %s: %w", orderID, ErrRowMissing)
	}
	return nil
}

// Logs is the typed repository over the Logs table.
type Logs struct {
	rs RowStore
}

// NewLogs wraps a RowStore.
func NewLogs(rs RowStore) *Logs { return &Logs{rs: rs} }

// Append writes one audit record.
func (l *Logs) Append(ctx context.Context, e model.LogEntry) error {
	return l.rs.AppendRow(ctx, TableLogs, logToValues(e))
}

// List returns the whole audit trail, oldest first.
func (l *Logs) List(ctx context.Context) ([]model.LogEntry, error) {
	rows, err := l.rs.ListRows(ctx, TableLogs)
	if err != nil {
		return nil, err
	}
	out := make([]model.LogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.LogEntry{
			Timestamp: parseTime(r["Timestamp"]),
			UserID:    r["UserID"],
			Action:    r["Action"],
			Details:   r["Details"],
		})
	}
	return out, nil
}
