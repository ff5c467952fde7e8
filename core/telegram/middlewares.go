package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/vouchershop/core/config"
	"github.com/m3rciful/vouchershop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares assembles the global chain: panic recovery first, then
// optional per-user rate limiting, then update logging and metrics.
// onLimited, when set, replies to throttled users.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited func(tele.Context) error) []Middleware {
	chain := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil {
		if interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
			exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, kind := range cfg.RateLimit.ExcludeUpdates {
				exclude[strings.ToLower(kind)] = struct{}{}
			}
			chain = append(chain, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   exclude,
					OnLimited: onLimited,
				}),
			})
		}
	}

	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}
