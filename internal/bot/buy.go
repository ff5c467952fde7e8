package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/service"
	"github.com/m3rciful/vouchershop/internal/session"
)

// Callback actions of the purchase flow.
const (
	actCancel         = "cancel"
	actCategory       = "cat"
	actQuantity       = "qty"
	actQuantityCustom = "qtycustom"
	actApprove        = "approve"
	actDecline        = "decline"
)

var quantityChoices = []int{1, 2, 3, 4, 5, 10, 20}

func (e *Engine) showCategories(ctx context.Context, ev Event) error {
	if _, ok, err := e.requireCustomer(ctx, ev); !ok {
		return err
	}

	cats, err := e.catalog.List(ctx)
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	if len(cats) == 0 {
		return e.msgr.SendText(ctx, ev.UserID, "No vouchers available right now.")
	}

	var rows [][]Button
	for _, cat := range cats {
		label := fmt.Sprintf("₹%d (stock: %d)", cat.Value, cat.Stock)
		rows = append(rows, []Button{{Label: label, Action: actCategory, Data: cat.ID}})
	}
	rows = append(rows, []Button{{Label: "Cancel", Action: actCancel}})
	return e.msgr.SendText(ctx, ev.UserID, "Pick a voucher:", rows...)
}

func (e *Engine) selectCategory(ctx context.Context, ev Event) error {
	if _, ok, err := e.requireCustomer(ctx, ev); !ok {
		return err
	}

	cat, err := e.catalog.Get(ctx, ev.Data)
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			e.sessions.Clear(ev.UserID)
			return e.msgr.SendText(ctx, ev.UserID, "That voucher no longer exists.")
		}
		return e.storeFailure(ctx, ev.UserID, err)
	}

	e.sessions.Set(ev.UserID, session.StateAwaitingQuantity, session.Payload{CategoryID: cat.ID})
	return e.sendQuantityPrompt(ctx, ev.UserID, cat)
}

func (e *Engine) sendQuantityPrompt(ctx context.Context, userID string, cat model.Category) error {
	var row []Button
	var rows [][]Button
	for _, q := range quantityChoices {
		row = append(row, Button{
			Label:  strconv.Itoa(q),
			Action: actQuantity,
			Data:   cat.ID + "|" + strconv.Itoa(q),
		})
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []Button{
		{Label: "Custom", Action: actQuantityCustom, Data: cat.ID},
		{Label: "Cancel", Action: actCancel},
	})
	text := fmt.Sprintf("₹%d voucher, %d in stock. How many?", cat.Value, cat.Stock)
	return e.msgr.SendText(ctx, userID, text, rows...)
}

func (e *Engine) selectQuantity(ctx context.Context, ev Event) error {
	if _, ok, err := e.requireCustomer(ctx, ev); !ok {
		return err
	}

	parts := strings.SplitN(ev.Data, "|", 2)
	if len(parts) != 2 {
		return nil
	}
	qty, err := strconv.Atoi(parts[1])
	if err != nil || qty <= 0 {
		return nil
	}
	return e.proceedToPayment(ctx, ev, parts[0], qty)
}

func (e *Engine) promptCustomQuantity(ctx context.Context, ev Event) error {
	if _, ok, err := e.requireCustomer(ctx, ev); !ok {
		return err
	}

	e.sessions.Set(ev.UserID, session.StateAwaitingCustomQuantity, session.Payload{CategoryID: ev.Data})
	return e.msgr.SendText(ctx, ev.UserID, "Type the quantity you want:")
}

// readQuantityText accepts a typed number while the quantity buttons are up.
func (e *Engine) readQuantityText(ctx context.Context, ev Event, sess session.Session) error {
	qty, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil || qty <= 0 {
		return e.msgr.SendText(ctx, ev.UserID, "Please pick a quantity from the buttons or type a positive number.")
	}
	return e.proceedToPayment(ctx, ev, sess.Payload.CategoryID, qty)
}

func (e *Engine) readCustomQuantity(ctx context.Context, ev Event, sess session.Session) error {
	qty, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil || qty <= 0 {
		return e.msgr.SendText(ctx, ev.UserID, "That is not a valid quantity, try again:")
	}
	return e.proceedToPayment(ctx, ev, sess.Payload.CategoryID, qty)
}

// proceedToPayment prices the request and pre-checks stock. Insufficient
// stock sends the user back to quantity selection with the session intact.
func (e *Engine) proceedToPayment(ctx context.Context, ev Event, categoryID string, qty int) error {
	cat, err := e.catalog.Get(ctx, categoryID)
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			e.sessions.Clear(ev.UserID)
			return e.msgr.SendText(ctx, ev.UserID, "That voucher no longer exists.")
		}
		return e.storeFailure(ctx, ev.UserID, err)
	}

	if qty > cat.Stock {
		e.sessions.Set(ev.UserID, session.StateAwaitingQuantity, session.Payload{CategoryID: cat.ID})
		if err := e.msgr.SendText(ctx, ev.UserID,
			fmt.Sprintf("Only %d in stock, pick a smaller quantity.", cat.Stock)); err != nil {
			return err
		}
		return e.sendQuantityPrompt(ctx, ev.UserID, cat)
	}

	total, err := service.TotalCost(cat, qty)
	if err != nil {
		e.sessions.Clear(ev.UserID)
		if errors.Is(err, service.ErrNotPriced) {
			return e.msgr.SendText(ctx, ev.UserID, "This voucher has no price configured yet.")
		}
		return e.storeFailure(ctx, ev.UserID, err)
	}

	e.sessions.Set(ev.UserID, session.StateAwaitingScreenshot, session.Payload{
		CategoryID: cat.ID,
		Quantity:   qty,
		Total:      total,
	})

	text := fmt.Sprintf(
		"%d x ₹%d voucher = %.2f\n\nPay to: %s\nThen send a screenshot of the payment.",
		qty, cat.Value, total, e.cfg.PaymentAddress)
	return e.msgr.SendText(ctx, ev.UserID, text)
}

func (e *Engine) readScreenshot(ctx context.Context, ev Event, sess session.Session) error {
	if ev.PhotoRef == "" {
		return e.msgr.SendText(ctx, ev.UserID, "Please send the payment screenshot as a photo.")
	}

	p := sess.Payload
	p.ProofRef = ev.PhotoRef
	e.sessions.Set(ev.UserID, session.StateAwaitingUTR, p)
	return e.msgr.SendText(ctx, ev.UserID, "Got it. Now send the 12-digit UTR number:")
}

func (e *Engine) readUTR(ctx context.Context, ev Event, sess session.Session) error {
	utr := strings.TrimSpace(ev.Text)
	if !service.ValidUTR(utr) {
		return e.msgr.SendText(ctx, ev.UserID, "A UTR is exactly 12 digits. Try again:")
	}

	user, ok, err := e.requireCustomer(ctx, ev)
	if !ok {
		e.sessions.Clear(ev.UserID)
		return err
	}

	p := sess.Payload
	order, err := e.workflow.Submit(ctx, user, p.CategoryID, p.Quantity, p.Total, utr, p.ProofRef)
	if err != nil {
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}

	e.sessions.Clear(ev.UserID)
	return e.msgr.SendText(ctx, ev.UserID, fmt.Sprintf(
		"Order %s received! You will get your codes once the payment is confirmed.", order.ID))
}
