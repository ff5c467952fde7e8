// Package middleware holds the global handler wrappers: panic recovery,
// update logging, rate limiting, metrics and the admin gate.
package middleware

import (
	"runtime/debug"

	"github.com/m3rciful/vouchershop/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into an error log. No update may
// take the whole bot down.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.TG.Error("panic recovered",
					slog.String("event", "tg.panic"),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}
