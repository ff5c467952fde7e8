package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const (
	keyMessages = "messages"
	keyKeyboard = "kb"
)

// metricsContext wraps tele.Context so every outgoing message bumps the
// per-update counters the handler summary reports.
type metricsContext struct{ tele.Context }

func (m metricsContext) record(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	m.Set(keyMessages, ctxInt(m.Context, keyMessages)+1)
	if carriesKeyboard(opts) {
		m.Set(keyKeyboard, true)
	}
	return nil
}

func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Send(what, opts...), opts)
}

func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Reply(what, opts...), opts)
}

func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.Edit(what, opts...), opts)
}

func (m metricsContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.record(m.Context.EditOrSend(what, opts...), opts)
}

func carriesKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func ctxInt(c tele.Context, key string) int {
	if n, ok := c.Get(key).(int); ok {
		return n
	}
	return 0
}

// MessageMetricsMiddleware instruments context to track messages count and keyboard usage.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(keyMessages, 0)
		c.Set(keyKeyboard, false)
		return next(metricsContext{Context: c})
	}
}

// GetCounters reads message count and keyboard presence flags from context.
func GetCounters(c tele.Context) (int, bool) {
	kb, _ := c.Get(keyKeyboard).(bool)
	return ctxInt(c, keyMessages), kb
}
