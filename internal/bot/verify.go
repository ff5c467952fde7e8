package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/vouchershop/core/logger"
	"github.com/m3rciful/vouchershop/internal/session"
)

// startVerification handles /start: block check, channel membership check,
// then an arithmetic captcha.
func (e *Engine) startVerification(ctx context.Context, ev Event) error {
	user, ok, err := e.users.Get(ctx, ev.UserID)
	if err != nil {
		return e.storeFailure(ctx, ev.UserID, err)
	}
	if ok && user.Blocked() {
		return e.msgr.SendText(ctx, ev.UserID, "Your account is blocked.")
	}
	if ok && user.Verified {
		return e.sendMainMenu(ctx, ev.UserID)
	}

	if e.cfg.ChannelRef != "" {
		membership, err := e.msgr.GetMembership(ctx, e.cfg.ChannelRef, ev.UserID)
		if err != nil {
			return e.storeFailure(ctx, ev.UserID, err)
		}
		if !membership.Joined() {
			return e.msgr.SendText(ctx, ev.UserID,
				fmt.Sprintf("Please join %s first, then send /start again.", e.cfg.ChannelRef))
		}
	}

	return e.issueCaptcha(ctx, ev.UserID, "Almost there! Solve this to continue:")
}

// issueCaptcha generates a fresh challenge with new random operands. The
// previous answer, if any, becomes unusable.
func (e *Engine) issueCaptcha(ctx context.Context, userID, prefix string) error {
	a := e.randInt(9) + 1
	b := e.randInt(9) + 1
	e.sessions.Set(userID, session.StateAwaitingCaptcha, session.Payload{CaptchaAnswer: a + b})

	logger.TG.Debug("captcha issued",
		slog.String("event", "captcha.issue"),
		slog.String("user_id", userID),
	)
	return e.msgr.SendText(ctx, userID, fmt.Sprintf("%s\n%d + %d = ?", prefix, a, b))
}

func (e *Engine) checkCaptcha(ctx context.Context, ev Event, sess session.Session) error {
	answer, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil || answer != sess.Payload.CaptchaAnswer {
		return e.issueCaptcha(ctx, ev.UserID, "Wrong answer, try this one:")
	}

	user, err := e.users.MarkVerified(ctx, ev.UserID, ev.UserName)
	if err != nil {
		e.sessions.Clear(ev.UserID)
		return e.storeFailure(ctx, ev.UserID, err)
	}
	e.sessions.Clear(ev.UserID)
	e.audit.Record(ctx, user.ID, "user.verified", "captcha passed")

	if err := e.msgr.SendText(ctx, ev.UserID, "Verified! Welcome to the shop."); err != nil {
		return err
	}
	return e.sendMainMenu(ctx, ev.UserID)
}
