package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/m3rciful/vouchershop/core/logger"
	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/store"
)

const (
	orderIDLength  = 13
	orderIDCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var utrPattern = regexp.MustCompile(`^[0-9]{12}$`)

// OrderNotifier delivers the workflow's outbound side effects: the admin
// review request on submission and the user's verdict message afterwards.
type OrderNotifier interface {
	NotifyAdminNewOrder(ctx context.Context, order model.Order, proofRef string) error
	NotifyUserDelivered(ctx context.Context, order model.Order) error
	NotifyUserDeclined(ctx context.Context, order model.Order) error
	AlertAdmin(ctx context.Context, text string) error
}

// Workflow drives an order from submission through the admin decision.
// Inventory is only touched at approval, so a Pending order can always be
// declined without rollback. Decisions on one order are serialized through
// a per-order lock; the Pending check is re-run inside it, so concurrent
// approvals (an admin double-click, or approve racing decline) resolve to
// exactly one outcome and one inventory deduction.
type Workflow struct {
	orders    *store.Orders
	allocator *Allocator
	audit     *Audit
	notify    OrderNotifier
	locks     Locker
	now       func() time.Time
}

// NewWorkflow wires the order workflow. notify may be nil in tests.
func NewWorkflow(orders *store.Orders, allocator *Allocator, audit *Audit, notify OrderNotifier) *Workflow {
	return &Workflow{
		orders:    orders,
		allocator: allocator,
		audit:     audit,
		notify:    notify,
		locks:     NewKeyedMutex(),
		now:       time.Now,
	}
}

// NewOrderID returns a 13-character random alphanumeric identifier.
func NewOrderID() (string, error) {
	return orderIDFrom(rand.Reader)
}

// orderIDFrom maps random bytes onto the 62-character set. Bytes that would
// map unevenly are discarded so every character is equally likely.
func orderIDFrom(r io.Reader) (string, error) {
	const limit = byte(256 - 256%len(orderIDCharset))

	id := make([]byte, 0, orderIDLength)
	buf := make([]byte, orderIDLength*2)
	for len(id) < orderIDLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("orders: id generation: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			id = append(id, orderIDCharset[int(b)%len(orderIDCharset)])
			if len(id) == orderIDLength {
				break
			}
		}
	}
	return string(id), nil
}

// ValidUTR reports whether s is an exact 12-digit transaction reference.
func ValidUTR(s string) bool {
	return utrPattern.MatchString(s)
}

// Submit validates the payment reference, persists a Pending order and asks
// the admin for a decision. No stock is reserved here.
func (w *Workflow) Submit(ctx context.Context, user model.User, categoryID string, quantity int, total float64, utr, proofRef string) (model.Order, error) {
	if quantity <= 0 {
		return model.Order{}, ErrInvalidQuantity
	}
	if !ValidUTR(utr) {
		return model.Order{}, ErrInvalidUTR
	}

	id, err := NewOrderID()
	if err != nil {
		return model.Order{}, err
	}

	order := model.Order{
		ID:         id,
		UserID:     user.ID,
		UserName:   user.Name,
		CategoryID: categoryID,
		Quantity:   quantity,
		Total:      Round2(total),
		UTR:        utr,
		Status:     model.OrderPending,
		CreatedAt:  w.now(),
	}

	if err := w.orders.Create(ctx, order); err != nil {
		return model.Order{}, fmt.Errorf("orders: persist %s: %w", id, err)
	}

	w.audit.Record(ctx, user.ID, "order.submit",
		fmt.Sprintf("order %s: %d x category %s, utr %s", id, quantity, categoryID, utr))

	if w.notify != nil {
		if err := w.notify.NotifyAdminNewOrder(ctx, order, proofRef); err != nil {
			logger.SVCOrders.Warn("admin notification failed",
				slog.String("event", "order.submit.notify"),
				slog.String("order_id", id),
				slog.String("err", err.Error()),
			)
		}
	}

	logger.SVCOrders.Info("order submitted",
		slog.String("event", "order.submit"),
		slog.String("order_id", id),
		slog.String("user_id", user.ID),
		slog.String("category_id", categoryID),
		slog.Int("qty", quantity),
		slog.Float64("total", order.Total),
	)
	return order, nil
}

// Approve reserves codes for a Pending order and marks it Successful.
// A second call on the same order returns ErrAlreadyProcessed and deducts
// nothing, even when the calls overlap.
func (w *Workflow) Approve(ctx context.Context, orderID string) (model.Order, error) {
	w.locks.Lock(orderID)
	defer w.locks.Unlock(orderID)

	order, ok, err := w.orders.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if !ok {
		return model.Order{}, ErrOrderNotFound
	}
	if order.Processed() {
		return order, ErrAlreadyProcessed
	}

	codes, err := w.allocator.Reserve(ctx, order.CategoryID, order.Quantity)
	if err != nil {
		return order, err
	}

	if err := w.orders.SetOutcome(ctx, orderID, model.OrderSuccessful, codes); err != nil {
		// The pool shrank but the order record did not move. Reconciliation
		// is manual; the admin must be told and the caller must not report
		// success to the user.
		logger.SVCOrders.Error("order left inconsistent",
			slog.String("event", "order.approve.failed"),
			slog.String("order_id", orderID),
			slog.String("category_id", order.CategoryID),
			slog.Int("qty", order.Quantity),
			slog.String("err", err.Error()),
		)
		w.audit.Record(ctx, order.UserID, "order.inconsistent",
			fmt.Sprintf("order %s: %d codes deducted from category %s but status write failed", orderID, order.Quantity, order.CategoryID))
		if w.notify != nil {
			_ = w.notify.AlertAdmin(ctx, fmt.Sprintf(
				"Order %s is inconsistent: %d codes were taken from category %s but the order could not be updated. Manual fix required.",
				orderID, order.Quantity, order.CategoryID))
		}
		return order, fmt.Errorf("orders: %s: %w", orderID, ErrInconsistentState)
	}

	order.Status = model.OrderSuccessful
	order.Delivered = codes

	w.audit.Record(ctx, order.UserID, "order.approve",
		fmt.Sprintf("order %s: %d codes delivered", orderID, len(codes)))
	if w.notify != nil {
		if err := w.notify.NotifyUserDelivered(ctx, order); err != nil {
			logger.SVCOrders.Warn("delivery notification failed",
				slog.String("event", "order.approve.notify"),
				slog.String("order_id", orderID),
				slog.String("err", err.Error()),
			)
		}
	}

	logger.SVCOrders.Info("order approved",
		slog.String("event", "order.approve"),
		slog.String("order_id", orderID),
		slog.String("user_id", order.UserID),
		slog.Int("codes", len(codes)),
	)
	return order, nil
}

// Decline marks a Pending order Declined. No inventory side effect.
func (w *Workflow) Decline(ctx context.Context, orderID string) (model.Order, error) {
	w.locks.Lock(orderID)
	defer w.locks.Unlock(orderID)

	order, ok, err := w.orders.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if !ok {
		return model.Order{}, ErrOrderNotFound
	}
	if order.Processed() {
		return order, ErrAlreadyProcessed
	}

	if err := w.orders.SetOutcome(ctx, orderID, model.OrderDeclined, nil); err != nil {
		return order, fmt.Errorf("orders: decline %s: %w", orderID, err)
	}
	order.Status = model.OrderDeclined

	w.audit.Record(ctx, order.UserID, "order.decline", "order "+orderID+" declined")
	if w.notify != nil {
		if err := w.notify.NotifyUserDeclined(ctx, order); err != nil {
			logger.SVCOrders.Warn("decline notification failed",
				slog.String("event", "order.decline.notify"),
				slog.String("order_id", orderID),
				slog.String("err", err.Error()),
			)
		}
	}

	logger.SVCOrders.Info("order declined",
		slog.String("event", "order.decline"),
		slog.String("order_id", orderID),
		slog.String("user_id", order.UserID),
	)
	return order, nil
}

// Recover returns the delivered codes of a Successful order to its owner.
// The ownership check applies regardless of order status so an order id
// alone never leaks codes.
func (w *Workflow) Recover(ctx context.Context, orderID, requestingUserID string) ([]string, error) {
	order, ok, err := w.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOrderNotFound
	}
	if order.UserID != requestingUserID {
		return nil, ErrNotOwner
	}
	if order.Status != model.OrderSuccessful {
		return nil, ErrNotReady
	}
	return order.Delivered, nil
}

// ListByUser returns all orders created by one user.
func (w *Workflow) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return w.orders.ListByUser(ctx, userID)
}

// ListPending returns all orders awaiting a decision.
func (w *Workflow) ListPending(ctx context.Context) ([]model.Order, error) {
	return w.orders.ListPending(ctx)
}

// Get returns one order or ErrOrderNotFound.
func (w *Workflow) Get(ctx context.Context, orderID string) (model.Order, error) {
	order, ok, err := w.orders.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if !ok {
		return model.Order{}, ErrOrderNotFound
	}
	return order, nil
}
