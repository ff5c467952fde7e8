package router

import (
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/vouchershop/core/logger"
	"github.com/m3rciful/vouchershop/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/vouchershop/core/telegram/helpers"
	"github.com/m3rciful/vouchershop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary is the single "handler.handled" line emitted per routed update.
type summary struct {
	handler string
	start   time.Time
	status  string
	outcome string
	err     error
	extras  []slog.Attr
}

func (s summary) emit(c tele.Context) {
	ctx := tghelpers.WithHandler(c, s.handler)
	msgs, kb := middleware.GetCounters(c)

	status, outcome := s.status, s.outcome
	if status == "" {
		status = okOrFail(s.err)
	}
	if outcome == "" {
		outcome = okOrFail(s.err)
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(s.start)).Milliseconds()),
	}
	if s.err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(s.err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(s.err)),
			slog.String("cause", s.handler),
		)
	}
	attrs = append(attrs, s.extras...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

func okOrFail(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

func handleWithSummary(c tele.Context, handlerName string, start time.Time, statusOverride, outcomeOverride string, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	summary{
		handler: handlerName,
		start:   start,
		status:  statusOverride,
		outcome: outcomeOverride,
		err:     err,
		extras:  extras,
	}.emit(c)
	return err
}

func logHandlerSummary(c tele.Context, handlerName string, start time.Time, statusOverride, outcomeOverride string, err error, extras ...slog.Attr) {
	summary{
		handler: handlerName,
		start:   start,
		status:  statusOverride,
		outcome: outcomeOverride,
		err:     err,
		extras:  extras,
	}.emit(c)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode picks a stable machine code for an error: an explicit
// Code() if the error carries one, otherwise the error's type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	if c, ok := err.(coder); ok {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil {
		return strings.ToUpper(strings.ReplaceAll(t.Name(), " ", "_"))
	}
	return "UNKNOWN_ERROR"
}

func parseCallback(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return callbacks.ParseCallbackData(cb)
}
