package bot

import (
	"context"
	"fmt"

	"github.com/m3rciful/vouchershop/internal/session"
)

func (e *Engine) enterSupport(ctx context.Context, ev Event) error {
	if _, ok, err := e.requireCustomer(ctx, ev); !ok {
		return err
	}
	e.sessions.Set(ev.UserID, session.StateInSupport, session.Payload{})

	text := "You are now talking to support. Everything you send will be forwarded. /cancel to leave."
	if e.cfg.SupportContact != "" {
		text += "\nDirect contact: " + e.cfg.SupportContact
	}
	return e.msgr.SendText(ctx, ev.UserID, text)
}

// relaySupport forwards the user's message to the admin. The session stays
// in support mode until /cancel.
func (e *Engine) relaySupport(ctx context.Context, ev Event) error {
	if e.cfg.AdminID == "" {
		return e.msgr.SendText(ctx, ev.UserID, "Support is unavailable right now.")
	}

	header := fmt.Sprintf("Support message from %s (%s):", ev.UserName, ev.UserID)
	var err error
	if ev.PhotoRef != "" {
		err = e.msgr.SendPhoto(ctx, e.cfg.AdminID, ev.PhotoRef, header+"\n"+ev.Text)
	} else {
		err = e.msgr.SendText(ctx, e.cfg.AdminID, header+"\n"+ev.Text)
	}
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	return e.msgr.SendText(ctx, ev.UserID, "Forwarded. Anything else?")
}
