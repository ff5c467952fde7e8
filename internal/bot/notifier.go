package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/service"
)

// The engine is the workflow's OrderNotifier: submission review requests go
// to the admin, verdicts go back to the buyer, and approvals are mirrored
// to the audit channel.

// NotifyAdminNewOrder sends the payment proof with an approve/decline choice.
func (e *Engine) NotifyAdminNewOrder(ctx context.Context, order model.Order, proofRef string) error {
	if e.cfg.AdminID == "" {
		return nil
	}

	caption := fmt.Sprintf(
		"New order %s\nUser: %s (%s)\nCategory: ₹%s x %d\nTotal: %.2f\nUTR: %s",
		order.ID, order.UserName, order.UserID, order.CategoryID, order.Quantity, order.Total, order.UTR)
	kb := [][]Button{{
		{Label: "✅ Approve", Action: actApprove, Data: order.ID},
		{Label: "❌ Decline", Action: actDecline, Data: order.ID},
	}}

	if proofRef != "" {
		return e.msgr.SendPhoto(ctx, e.cfg.AdminID, proofRef, caption, kb...)
	}
	return e.msgr.SendText(ctx, e.cfg.AdminID, caption, kb...)
}

// NotifyUserDelivered hands the codes to the buyer and mirrors a summary to
// the audit channel.
func (e *Engine) NotifyUserDelivered(ctx context.Context, order model.Order) error {
	text := fmt.Sprintf(
		"Order %s approved! Your codes:\n%s\n\nKeep the order ID to recover them later.",
		order.ID, strings.Join(order.Delivered, "\n"))
	if err := e.msgr.SendText(ctx, order.UserID, text); err != nil {
		return err
	}

	if e.cfg.AuditChannelID != "" {
		summary := fmt.Sprintf("Order %s: %d x ₹%s delivered to %s",
			order.ID, order.Quantity, order.CategoryID, order.UserID)
		_ = e.msgr.SendText(ctx, e.cfg.AuditChannelID, summary)
	}
	return nil
}

// NotifyUserDeclined tells the buyer the order was rejected.
func (e *Engine) NotifyUserDeclined(ctx context.Context, order model.Order) error {
	return e.msgr.SendText(ctx, order.UserID, fmt.Sprintf(
		"Order %s was declined. Contact support if you believe this is a mistake.", order.ID))
}

// AlertAdmin pushes an operational warning to the admin.
func (e *Engine) AlertAdmin(ctx context.Context, text string) error {
	if e.cfg.AdminID == "" {
		return nil
	}
	return e.msgr.SendText(ctx, e.cfg.AdminID, text)
}

// adminDecision handles the approve/decline buttons on the review message.
func (e *Engine) adminDecision(ctx context.Context, ev Event) error {
	if !e.isAdmin(ev.UserID) {
		return e.msgr.SendText(ctx, ev.UserID, "Access denied.")
	}
	orderID := strings.TrimSpace(ev.Data)
	if orderID == "" {
		return nil
	}

	var (
		order model.Order
		err   error
	)
	if ev.Action == actApprove {
		order, err = e.workflow.Approve(ctx, orderID)
	} else {
		order, err = e.workflow.Decline(ctx, orderID)
	}

	switch {
	case err == nil:
		verdict := "declined"
		if order.Status == model.OrderSuccessful {
			verdict = fmt.Sprintf("approved, %d codes delivered", len(order.Delivered))
		}
		return e.msgr.SendText(ctx, ev.UserID, fmt.Sprintf("Order %s %s.", orderID, verdict))
	case errors.Is(err, service.ErrAlreadyProcessed):
		return e.msgr.SendText(ctx, ev.UserID,
			fmt.Sprintf("Order %s was already %s.", orderID, order.Status))
	case errors.Is(err, service.ErrOrderNotFound):
		return e.msgr.SendText(ctx, ev.UserID, "No order with that ID.")
	case errors.Is(err, service.ErrInsufficientStock):
		return e.msgr.SendText(ctx, ev.UserID,
			fmt.Sprintf("Not enough stock to approve %s. Add codes first.", orderID))
	default:
		return e.storeFailure(ctx, ev.UserID, err)
	}
}
