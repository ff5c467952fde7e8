// Package commands defines the command table entry shared by the registry
// and the routers.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command binds a slash command to its handler. AdminOnly commands get the
// admin-only middleware at wire time; Hidden ones stay out of the Telegram
// command menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}
