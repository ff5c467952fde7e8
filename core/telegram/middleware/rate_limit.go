package middleware

import (
	"sync"
	"time"

	"github.com/m3rciful/vouchershop/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// throttle tracks the last accepted update per user.
type throttle struct {
	mu       sync.Mutex
	lastSeen map[int64]time.Time
	interval time.Duration
}

// allow records the sighting and reports whether the update may proceed.
func (t *throttle) allow(userID int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.lastSeen[userID]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.lastSeen[userID] = now
	return true
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user. Excluded update kinds pass through.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	t := &throttle{lastSeen: make(map[int64]time.Time), interval: opts.Interval}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}
			if t.allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.TG.Warn("rate limit",
				slog.String("event", "tg.rate_limit"),
				slog.Int64("user_id", user.ID),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
