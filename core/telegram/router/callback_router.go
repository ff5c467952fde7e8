package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/vouchershop/core/telegram"
	"github.com/m3rciful/vouchershop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions supplies a fallback for actions the registry misses.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every callback press through the registry's
// action table. The press is acknowledged before the handler runs so the
// client spinner never outlives a slow handler.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		start := time.Now()
		key, _ := parseCallback(cb)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		_ = c.Respond()

		target, ok := reg.GetCallback(key)
		if !ok || target == nil {
			target = reg.CallbackNotFound()
			if target == nil {
				target = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
		}

		return handleWithSummary(c, name, start, "", "", func() error {
			if target == nil {
				return nil
			}
			return target(c)
		}, extras...)
	}

	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
