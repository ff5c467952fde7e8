package logger

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"log/slog"
)

// captureLine runs emit against a fresh handler and returns the single line
// it produced, flushed and trimmed.
func captureLine(t *testing.T, format lineFormat, emit func(ctx context.Context, log *slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: format,
	})
	emit(Background(), slog.New(handler))
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line")
	}
	return line
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	line := captureLine(t, formatKV, func(ctx context.Context, log *slog.Logger) {
		ctx = WithRID(ctx, "rid-123")
		ctx = WithUpdateMeta(ctx, 42, 7, 9)
		LogEvent(ctx, log.With("component", "app"), slog.LevelInfo, "test.event",
			slog.String("status", "ok"),
			slog.String("cause", "unit"),
		)
	})

	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	line := captureLine(t, formatJSON, func(ctx context.Context, log *slog.Logger) {
		ctx = WithRID(ctx, "rid-json")
		ctx = WithUpdateMeta(ctx, 11, 22, 33)
		LogEvent(ctx, log.With("component", "service.orders"), slog.LevelError, "order.approve.failed",
			slog.String("status", "fail"),
			slog.String("err", "boom"),
			slog.String("err_code", "STORE_FAIL"),
		)
	})

	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.orders"`, `"event":"order.approve.failed"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	const rawRID = "123:456:789"
	line := captureLine(t, formatKV, func(ctx context.Context, log *slog.Logger) {
		LogEvent(WithRID(ctx, rawRID), log.With("component", "app"), slog.LevelInfo, "rid.test",
			slog.String("status", "ok"),
		)
	})

	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
}

func TestStructuredHandlerDomainKeysOrdered(t *testing.T) {
	line := captureLine(t, formatKV, func(ctx context.Context, log *slog.Logger) {
		LogEvent(ctx, log.With("component", "service.inventory"), slog.LevelInfo, "inventory.reserved",
			slog.String("status", "ok"),
			slog.Int("qty", 3),
			slog.String("category_id", "CAT100"),
			slog.Int("stock", 7),
		)
	})

	catIdx := strings.Index(line, "category_id=CAT100")
	qtyIdx := strings.Index(line, "qty=3")
	stockIdx := strings.Index(line, "stock=7")
	if catIdx == -1 || qtyIdx == -1 || stockIdx == -1 {
		t.Fatalf("missing domain keys in %s", line)
	}
	if !(catIdx < qtyIdx && qtyIdx < stockIdx) {
		t.Fatalf("domain keys out of schema order in %s", line)
	}
}

func TestStructuredHandlerDurationsBecomeMillis(t *testing.T) {
	line := captureLine(t, formatKV, func(ctx context.Context, log *slog.Logger) {
		LogEvent(ctx, log.With("component", "tg"), slog.LevelInfo, "send.done",
			slog.Duration("duration", 250*time.Millisecond),
		)
	})

	if !strings.Contains(line, "duration_ms=250") {
		t.Fatalf("expected duration_ms in %s", line)
	}
}
