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

// Admin hub callback actions.
const (
	actAdmStats       = "adm_stats"
	actAdmAddCat      = "adm_addcat"
	actAdmTier        = "adm_tier"
	actAdmTierPick    = "adm_tierpick"
	actAdmStock       = "adm_stock"
	actAdmStockPick   = "adm_stockpick"
	actAdmRemoveCode  = "adm_delcode"
	actAdmDeleteCat   = "adm_delcat"
	actAdmDelCatPick  = "adm_delcatpick"
	actAdmPending     = "adm_pending"
	actAdmBroadcast   = "adm_broadcast"
	actAdmDM          = "adm_dm"
	actAdmBlockToggle = "adm_block"
)

// EnterAdminHub opens the admin console for the configured admin. It is an
// explicit entry point so other flows can call it directly instead of
// replaying a synthetic /admin event.
func (e *Engine) EnterAdminHub(ctx context.Context, userID string) error {
	if !e.isAdmin(userID) {
		return e.msgr.SendText(ctx, userID, "Access denied.")
	}
	e.sessions.Clear(userID)

	kb := [][]Button{
		{{Label: "📊 Stats", Action: actAdmStats}, {Label: "🕓 Pending", Action: actAdmPending}},
		{{Label: "➕ Category", Action: actAdmAddCat}, {Label: "💲 Tier price", Action: actAdmTier}},
		{{Label: "📥 Add stock", Action: actAdmStock}, {Label: "🗑 Remove code", Action: actAdmRemoveCode}},
		{{Label: "❌ Delete category", Action: actAdmDeleteCat}},
		{{Label: "📣 Broadcast", Action: actAdmBroadcast}, {Label: "✉️ DM user", Action: actAdmDM}},
		{{Label: "🚫 Block/unblock", Action: actAdmBlockToggle}},
	}
	return e.msgr.SendText(ctx, userID, "Admin console:", kb...)
}

func (e *Engine) adminHubAction(ctx context.Context, ev Event) error {
	if !e.isAdmin(ev.UserID) {
		return e.msgr.SendText(ctx, ev.UserID, "Access denied.")
	}

	switch ev.Action {
	case actAdmStats:
		return e.adminStats(ctx, ev)
	case actAdmAddCat:
		e.sessions.Set(ev.UserID, session.StateAdminAwaitingCategoryValue, session.Payload{})
		return e.msgr.SendText(ctx, ev.UserID, "Face value of the new category (whole number):")
	case actAdmTier:
		return e.adminPickCategory(ctx, ev, actAdmTierPick, "Set tier price for which category?")
	case actAdmTierPick:
		e.sessions.Set(ev.UserID, session.StateAdminAwaitingTierPrice, session.Payload{CategoryID: ev.Data})
		return e.msgr.SendText(ctx, ev.UserID,
			"Send: <tier> <price>\nTiers: 1, 2, 3, 4, 5, 10, 20 (20 = 20+).")
	case actAdmStock:
		return e.adminPickCategory(ctx, ev, actAdmStockPick, "Add stock to which category?")
	case actAdmStockPick:
		e.sessions.Set(ev.UserID, session.StateAdminAwaitingStockCodes, session.Payload{CategoryID: ev.Data})
		return e.msgr.SendText(ctx, ev.UserID, "Send the voucher codes, one per line:")
	case actAdmRemoveCode:
		e.sessions.Set(ev.UserID, session.StateAdminAwaitingCodeRemoval, session.Payload{})
		return e.msgr.SendText(ctx, ev.UserID, "Send the exact code to remove:")
	case actAdmDeleteCat:
		return e.adminPickCategory(ctx, ev, actAdmDelCatPick, "Delete which category? This cannot be undone.")
	case actAdmDelCatPick:
		return e.adminDeleteCategory(ctx, ev)
	case actAdmPending:
		return e.adminPendingOrders(ctx, ev)
	case actAdmBroadcast:
		e.sessions.Set(ev.UserID, session.StateAdminAwaitingBroadcast, session.Payload{})
		return e.msgr.SendText(ctx, ev.UserID, "Send the broadcast text:")
	case actAdmDM:
		e.sessions.Set(ev.UserID, session.StateAdminAwaitingDMTarget, session.Payload{})
		return e.msgr.SendText(ctx, ev.UserID, "Send the target user ID:")
	case actAdmBlockToggle:
		e.sessions.Set(ev.UserID, session.StateAdminAwaitingBlockTarget, session.Payload{})
		return e.msgr.SendText(ctx, ev.UserID, "Send the user ID to block or unblock:")
	}
	return nil
}

func (e *Engine) adminStats(ctx context.Context, ev Event) error {
	users, err := e.users.List(ctx)
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	cats, err := e.catalog.List(ctx)
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	pending, err := e.workflow.ListPending(ctx)
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}

	stock := 0
	for _, c := range cats {
		stock += c.Stock
	}
	return e.msgr.SendText(ctx, ev.UserID, fmt.Sprintf(
		"Users: %d\nCategories: %d\nTotal stock: %d\nPending orders: %d",
		len(users), len(cats), stock, len(pending)))
}

func (e *Engine) adminPickCategory(ctx context.Context, ev Event, action, prompt string) error {
	cats, err := e.catalog.List(ctx)
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	if len(cats) == 0 {
		return e.msgr.SendText(ctx, ev.UserID, "No categories yet.")
	}

	var rows [][]Button
	for _, cat := range cats {
		label := fmt.Sprintf("₹%d (stock: %d)", cat.Value, cat.Stock)
		rows = append(rows, []Button{{Label: label, Action: action, Data: cat.ID}})
	}
	return e.msgr.SendText(ctx, ev.UserID, prompt, rows...)
}

func (e *Engine) adminDeleteCategory(ctx context.Context, ev Event) error {
	err := e.catalog.DeleteCategory(ctx, ev.Data)
	if errors.Is(err, service.ErrCategoryNotFound) {
		return e.msgr.SendText(ctx, ev.UserID, "Category not found.")
	}
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	e.audit.Record(ctx, ev.UserID, "category.delete", "category "+ev.Data)
	return e.msgr.SendText(ctx, ev.UserID, "Category "+ev.Data+" deleted.")
}

func (e *Engine) adminPendingOrders(ctx context.Context, ev Event) error {
	pending, err := e.workflow.ListPending(ctx)
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	if len(pending) == 0 {
		return e.msgr.SendText(ctx, ev.UserID, "No pending orders.")
	}

	for _, o := range pending {
		text := fmt.Sprintf("Order %s\nUser: %s (%s)\n₹%s x %d = %.2f\nUTR: %s",
			o.ID, o.UserName, o.UserID, o.CategoryID, o.Quantity, o.Total, o.UTR)
		kb := [][]Button{{
			{Label: "✅ Approve", Action: actApprove, Data: o.ID},
			{Label: "❌ Decline", Action: actDecline, Data: o.ID},
		}}
		if err := e.msgr.SendText(ctx, ev.UserID, text, kb...); err != nil {
			return err
		}
	}
	return nil
}

// adminDirectMessage handles the global /msg <id> <text> interrupt.
func (e *Engine) adminDirectMessage(ctx context.Context, ev Event, rest string) error {
	parts := strings.SplitN(strings.TrimSpace(rest), " ", 2)
	if len(parts) != 2 || parts[0] == "" || strings.TrimSpace(parts[1]) == "" {
		return e.msgr.SendText(ctx, ev.UserID, "Usage: /msg <user id> <text>")
	}
	if err := e.msgr.SendText(ctx, parts[0], parts[1]); err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	e.audit.Record(ctx, ev.UserID, "admin.dm", "to "+parts[0])
	return e.msgr.SendText(ctx, ev.UserID, "Sent.")
}

func (e *Engine) adminReadCategoryValue(ctx context.Context, ev Event) error {
	value, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil || value <= 0 {
		return e.msgr.SendText(ctx, ev.UserID, "Face value must be a positive whole number. Try again:")
	}
	e.sessions.Set(ev.UserID, session.StateAdminAwaitingBasePrice, session.Payload{FaceValue: value})
	return e.msgr.SendText(ctx, ev.UserID, fmt.Sprintf("Base price for the ₹%d category:", value))
}

func (e *Engine) adminReadBasePrice(ctx context.Context, ev Event, sess session.Session) error {
	price, err := strconv.ParseFloat(strings.TrimSpace(ev.Text), 64)
	if err != nil || price <= 0 {
		return e.msgr.SendText(ctx, ev.UserID, "Price must be a positive number. Try again:")
	}

	cat, err := e.catalog.AddCategory(ctx, sess.Payload.FaceValue, price)
	if err != nil {
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}
	e.sessions.Clear(ev.UserID)
	e.audit.Record(ctx, ev.UserID, "category.add", "category "+cat.ID)
	return e.msgr.SendText(ctx, ev.UserID, fmt.Sprintf(
		"Category ₹%d created with base price %.2f. Add stock from the admin console.", cat.Value, price))
}

func (e *Engine) adminReadTierPrice(ctx context.Context, ev Event, sess session.Session) error {
	parts := strings.Fields(strings.TrimSpace(ev.Text))
	if len(parts) != 2 {
		return e.msgr.SendText(ctx, ev.UserID, "Send: <tier> <price>, for example: 10 42.50")
	}
	tierNum, err := strconv.Atoi(parts[0])
	if err != nil {
		return e.msgr.SendText(ctx, ev.UserID, "Tier must be one of 1, 2, 3, 4, 5, 10, 20. Try again:")
	}
	price, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return e.msgr.SendText(ctx, ev.UserID, "Price must be a number. Try again:")
	}

	err = e.catalog.SetTierPrice(ctx, sess.Payload.CategoryID, model.Tier(tierNum), price)
	switch {
	case errors.Is(err, service.ErrUnknownTier):
		return e.msgr.SendText(ctx, ev.UserID, "Tier must be one of 1, 2, 3, 4, 5, 10, 20. Try again:")
	case errors.Is(err, service.ErrInvalidPrice):
		return e.msgr.SendText(ctx, ev.UserID, "Price must be positive. Try again:")
	case errors.Is(err, service.ErrCategoryNotFound):
		e.sessions.Clear(ev.UserID)
		return e.msgr.SendText(ctx, ev.UserID, "Category not found.")
	case err != nil:
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}

	e.sessions.Clear(ev.UserID)
	return e.msgr.SendText(ctx, ev.UserID, fmt.Sprintf(
		"Tier %d of category %s now costs %.2f.", tierNum, sess.Payload.CategoryID, price))
}

func (e *Engine) adminReadStockCodes(ctx context.Context, ev Event, sess session.Session) error {
	var codes []string
	for _, line := range strings.Split(ev.Text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			codes = append(codes, line)
		}
	}
	if len(codes) == 0 {
		return e.msgr.SendText(ctx, ev.UserID, "Send the codes as text, one per line:")
	}

	stock, err := e.catalog.AppendCodes(ctx, sess.Payload.CategoryID, codes)
	if err != nil {
		e.sessions.Clear(ev.UserID)
		if errors.Is(err, service.ErrCategoryNotFound) {
			return e.msgr.SendText(ctx, ev.UserID, "Category not found.")
		}
		return e.storeFailure(ctx, ev.UserID, err)
	}

	e.sessions.Clear(ev.UserID)
	e.audit.Record(ctx, ev.UserID, "stock.add",
		fmt.Sprintf("category %s: +%d codes", sess.Payload.CategoryID, len(codes)))
	return e.msgr.SendText(ctx, ev.UserID, fmt.Sprintf(
		"Added %d codes. Category %s now has %d in stock.", len(codes), sess.Payload.CategoryID, stock))
}

func (e *Engine) adminReadCodeRemoval(ctx context.Context, ev Event) error {
	code := strings.TrimSpace(ev.Text)
	if code == "" {
		return e.msgr.SendText(ctx, ev.UserID, "Send the exact code to remove:")
	}

	categoryID, err := e.catalog.RemoveCode(ctx, code)
	if errors.Is(err, service.ErrCodeNotFound) {
		e.sessions.Clear(ev.UserID)
		return e.msgr.SendText(ctx, ev.UserID, "No category holds that code.")
	}
	if err != nil {
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}

	e.sessions.Clear(ev.UserID)
	e.audit.Record(ctx, ev.UserID, "stock.remove", "category "+categoryID)
	return e.msgr.SendText(ctx, ev.UserID, "Code removed from category "+categoryID+".")
}

func (e *Engine) adminReadBroadcast(ctx context.Context, ev Event) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return e.msgr.SendText(ctx, ev.UserID, "Send the broadcast text:")
	}

	users, err := e.users.List(ctx)
	if err != nil {
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}

	sent := 0
	for _, u := range users {
		if u.Blocked() || u.ID == ev.UserID {
			continue
		}
		if err := e.msgr.SendText(ctx, u.ID, text); err == nil {
			sent++
		}
	}

	e.sessions.Clear(ev.UserID)
	e.audit.Record(ctx, ev.UserID, "admin.broadcast", fmt.Sprintf("%d recipients", sent))
	return e.msgr.SendText(ctx, ev.UserID, fmt.Sprintf("Broadcast sent to %d users.", sent))
}

func (e *Engine) adminReadDMTarget(ctx context.Context, ev Event) error {
	target := strings.TrimSpace(ev.Text)
	if target == "" {
		return e.msgr.SendText(ctx, ev.UserID, "Send the target user ID:")
	}
	e.sessions.Set(ev.UserID, session.StateAdminAwaitingDMText, session.Payload{TargetID: target})
	return e.msgr.SendText(ctx, ev.UserID, "Now send the message for "+target+":")
}

func (e *Engine) adminReadDMText(ctx context.Context, ev Event, sess session.Session) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return e.msgr.SendText(ctx, ev.UserID, "Send the message text:")
	}

	if err := e.msgr.SendText(ctx, sess.Payload.TargetID, text); err != nil {
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}
	e.sessions.Clear(ev.UserID)
	e.audit.Record(ctx, ev.UserID, "admin.dm", "to "+sess.Payload.TargetID)
	return e.msgr.SendText(ctx, ev.UserID, "Sent.")
}

// adminReadBlockTarget toggles the block flag of the given user.
func (e *Engine) adminReadBlockTarget(ctx context.Context, ev Event) error {
	target := strings.TrimSpace(ev.Text)
	if target == "" {
		return e.msgr.SendText(ctx, ev.UserID, "Send the user ID to block or unblock:")
	}

	user, ok, err := e.users.Get(ctx, target)
	if err != nil {
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}
	if !ok {
		e.sessions.Clear(ev.UserID)
		return e.msgr.SendText(ctx, ev.UserID, "No registered user with that ID.")
	}

	updated, err := e.users.SetBlocked(ctx, target, !user.Blocked())
	if err != nil {
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}

	e.sessions.Clear(ev.UserID)
	e.audit.Record(ctx, ev.UserID, "user.block", fmt.Sprintf("user %s -> %s", target, updated.Status))
	return e.msgr.SendText(ctx, ev.UserID, fmt.Sprintf("User %s is now %s.", target, updated.Status))
}
