package bot

import (
	"fmt"
	"strconv"
	"strings"

	tg "github.com/m3rciful/vouchershop/core/telegram"
	"github.com/m3rciful/vouchershop/core/telegram/callbacks"
	"github.com/m3rciful/vouchershop/core/telegram/commands"
	"github.com/m3rciful/vouchershop/core/telegram/format"
	tghelpers "github.com/m3rciful/vouchershop/core/telegram/helpers"
	"github.com/m3rciful/vouchershop/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

// callbackActions lists every action the engine answers.
var callbackActions = []string{
	actCancel, actCategory, actQuantity, actQuantityCustom,
	actApprove, actDecline,
	actAdmStats, actAdmAddCat, actAdmTier, actAdmTierPick,
	actAdmStock, actAdmStockPick, actAdmRemoveCode,
	actAdmDeleteCat, actAdmDelCatPick, actAdmPending,
	actAdmBroadcast, actAdmDM, actAdmBlockToggle,
}

func eventFromMessage(c tele.Context) Event {
	sender := c.Sender()
	ev := Event{}
	if sender != nil {
		ev.UserID = strconv.FormatInt(sender.ID, 10)
		ev.UserName = strings.TrimSpace(strings.TrimSpace(sender.FirstName + " " + sender.LastName))
		if ev.UserName == "" {
			ev.UserName = sender.Username
		}
	}

	msg := c.Message()
	if msg != nil && msg.Photo != nil {
		ev.PhotoRef = msg.Photo.FileID
		ev.Text = msg.Caption
		return ev
	}
	ev.Text = c.Text()
	return ev
}

func eventFromCallback(c tele.Context) Event {
	ev := eventFromMessage(c)
	cb := c.Callback()
	if cb == nil {
		return ev
	}
	key, payload := callbacks.ParseCallbackData(cb)
	ev.CallbackID = cb.ID
	ev.Action = key
	ev.Data = payload
	ev.Text = ""
	ev.PhotoRef = ""
	return ev
}

func messageHandler(e *Engine) tele.HandlerFunc {
	return func(c tele.Context) error {
		return e.HandleMessage(tghelpers.BuildContext(c), eventFromMessage(c))
	}
}

func callbackHandler(e *Engine) tele.HandlerFunc {
	return func(c tele.Context) error {
		return e.HandleCallback(tghelpers.BuildContext(c), eventFromCallback(c))
	}
}

// BuildRegistry declares the bot's commands and callback handlers. Commands
// and menu texts all funnel into the engine's dispatch; the registry gives
// the transport layer its command list and callback table.
func BuildRegistry(e *Engine) *tg.Registry {
	reg := tg.NewRegistry()

	handle := messageHandler(e)
	reg.RegisterCommand("/start", commands.Command{
		Handler:     handle,
		Description: "Verify and open the shop",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     handle,
		Description: "Abort the current flow",
	})
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     handle,
		Description: "Admin console",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/msg", commands.Command{
		Handler:     handle,
		Description: "Message a user directly",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     helpHandler(e, reg),
		Description: "How to use the shop",
	})

	onCallback := callbackHandler(e)
	for _, action := range callbackActions {
		_ = reg.RegisterCallback(action, onCallback)
	}

	reg.SetTextFallback(handle)
	return reg
}

// helpHandler renders the visible command list plus the menu actions. It is
// the one handler that replies at the transport layer directly.
func helpHandler(e *Engine, reg *tg.Registry) tele.HandlerFunc {
	return func(c tele.Context) error {
		var b strings.Builder
		b.WriteString("*Voucher Shop*\n\n")
		for _, cmd := range reg.ListCommands(true) {
			fmt.Fprintf(&b, "%s - %s\n", cmd.Text, cmd.Description)
		}
		b.WriteString("\nUse the menu buttons to buy vouchers, list your orders or recover delivered codes.")
		if e.cfg.SupportContact != "" {
			contact, err := format.EscapeMarkdown(e.cfg.SupportContact, format.MarkdownV1)
			if err != nil {
				contact = e.cfg.SupportContact
			}
			b.WriteString("\nSupport: " + contact)
		}
		return tghelpers.SendMD(c, b.String())
	}
}

// fsmAdapter exposes the engine's session store to the text router's
// state-first dispatch.
type fsmAdapter struct {
	e *Engine
}

func (f fsmAdapter) InProgress(userID int64) bool {
	return f.e.Sessions().InProgress(strconv.FormatInt(userID, 10))
}

func (f fsmAdapter) ManagerHandler(c tele.Context) error {
	return f.e.HandleMessage(tghelpers.BuildContext(c), eventFromMessage(c))
}

// BuildRoutes assembles the transport routes: commands wrapped with shared
// middleware, the callback route, and state-first text/photo routing.
func BuildRoutes(e *Engine, reg *tg.Registry, adminID int64) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: adminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(fsmAdapter{e: e}, reg, router.TextOptions{
		UnknownText:  messageHandler(e),
		UnknownPhoto: messageHandler(e),
	})...)
	return routes
}
