package logger

import "strings"

// Canonical severity names used in emitted lines.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return strings.ToUpper(level)
	}
}

// normalizeStatus lowercases the status value and reports whether it is one
// of the known outcomes. Unknown statuses pass through so ad-hoc values are
// not silently lost.
func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "":
		return "", false
	case "ok", "fail", "skip", "retry", "rate_limited", "cancelled":
		return status, true
	}
	return status, false
}

// normalizeOutcome accepts only the closed outcome vocabulary; anything else
// is dropped from the line.
func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	switch outcome {
	case "ok", "fail", "cancelled", "rate_limited":
		return outcome, true
	}
	return "", false
}

// defaultKeyOrder fixes the column order of emitted lines so logs stay
// scannable without a viewer. Unlisted keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"state",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"order_id",
	"category_id",
	"qty",
	"stock",
	"total",
	"codes",
	"tier",
	"action",
	"table",
	"count",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
}
