package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/vouchershop/internal/service"
	"github.com/m3rciful/vouchershop/internal/session"
)

func (e *Engine) showOrders(ctx context.Context, ev Event) error {
	if _, ok, err := e.requireCustomer(ctx, ev); !ok {
		return err
	}

	orders, err := e.workflow.ListByUser(ctx, ev.UserID)
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	if len(orders) == 0 {
		return e.msgr.SendText(ctx, ev.UserID, "You have no orders yet.")
	}

	var b strings.Builder
	b.WriteString("Your orders:\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "\n%s: %d x ₹%s = %.2f [%s]", o.ID, o.Quantity, o.CategoryID, o.Total, o.Status)
	}
	return e.msgr.SendText(ctx, ev.UserID, b.String())
}

func (e *Engine) promptRecovery(ctx context.Context, ev Event) error {
	if _, ok, err := e.requireCustomer(ctx, ev); !ok {
		return err
	}
	e.sessions.Set(ev.UserID, session.StateAwaitingRecoveryID, session.Payload{})
	return e.msgr.SendText(ctx, ev.UserID, "Send the order ID you want to recover codes for:")
}

func (e *Engine) readRecoveryID(ctx context.Context, ev Event, _ session.Session) error {
	orderID := strings.TrimSpace(ev.Text)
	if orderID == "" {
		return e.msgr.SendText(ctx, ev.UserID, "Send the order ID as plain text:")
	}

	codes, err := e.workflow.Recover(ctx, orderID, ev.UserID)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrOrderNotFound):
		e.sessions.Clear(ev.UserID)
		return e.msgr.SendText(ctx, ev.UserID, "No order with that ID.")
	case errors.Is(err, service.ErrNotOwner):
		e.sessions.Clear(ev.UserID)
		return e.msgr.SendText(ctx, ev.UserID, "That order belongs to someone else.")
	case errors.Is(err, service.ErrNotReady):
		e.sessions.Clear(ev.UserID)
		return e.msgr.SendText(ctx, ev.UserID, "That order has no delivered codes yet.")
	default:
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}

	e.sessions.Clear(ev.UserID)
	e.audit.Record(ctx, ev.UserID, "order.recover", "order "+orderID)
	return e.msgr.SendText(ctx, ev.UserID,
		fmt.Sprintf("Codes for order %s:\n%s", orderID, strings.Join(codes, "\n")))
}
