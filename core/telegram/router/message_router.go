package router

import (
	"time"

	tg "github.com/m3rciful/vouchershop/core/telegram"
	"github.com/m3rciful/vouchershop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for a session state manager.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/photo updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownPhoto tele.HandlerFunc
}

// TextRoutes builds handlers for text and photo routing. An active session
// always wins over commands: the user is mid-conversation and free text is
// an answer, not a command. Commands are matched next, then the registry
// fallback, then the unknown-text handler.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()

		if target, name := resolveText(c, fsmMgr, reg, opts); target != nil {
			return handleWithSummary(c, name, start, "", "", func() error {
				return target(c)
			})
		}
		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	photoHandler := func(c tele.Context) error {
		start := time.Now()
		switch {
		case fsmMgr != nil && fsmMgr.InProgress(c.Sender().ID):
			return handleWithSummary(c, "fsm_photo", start, "", "", func() error {
				return fsmMgr.ManagerHandler(c)
			})
		case opts.UnknownPhoto != nil:
			return handleWithSummary(c, "unexpected_photo", start, "", "", func() error {
				return opts.UnknownPhoto(c)
			})
		}
		logHandlerSummary(c, "unexpected_photo", start, "skip", "ok", nil)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnPhoto, Handler: wrap(photoHandler)},
	}
}

func resolveText(c tele.Context, fsmMgr FSM, reg *tg.Registry, opts TextOptions) (tele.HandlerFunc, string) {
	if fsmMgr != nil && fsmMgr.InProgress(c.Sender().ID) {
		return fsmMgr.ManagerHandler, "fsm"
	}
	if reg != nil {
		if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
			return cmd.Handler, normalizeHandlerName(key)
		}
		if fb := reg.TextFallback(); fb != nil {
			return fb, "fallback"
		}
	}
	if opts.UnknownText != nil {
		return opts.UnknownText, "unknown_text"
	}
	return nil, ""
}
