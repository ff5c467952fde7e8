package router

import (
	"log/slog"

	"github.com/m3rciful/vouchershop/core/logger"
	tg "github.com/m3rciful/vouchershop/core/telegram"
	"github.com/m3rciful/vouchershop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions carries the admin identity for admin-only commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command to an endpoint, wrapping each
// handler with recovery and logging, and admin-only ones with the admin gate.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	gate := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for name, cmd := range reg.Commands() {
		h := middleware.LoggerMiddleware(cmd.Handler)
		h = middleware.RecoverMiddleware(h)
		if cmd.AdminOnly {
			h = gate(h)
		}
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
