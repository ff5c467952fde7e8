package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/vouchershop/core/logger"
	"github.com/m3rciful/vouchershop/internal/model"
	"github.com/m3rciful/vouchershop/internal/store"
)

// Audit appends business events to the Logs table. A failed audit write is
// logged and swallowed: the trail is best-effort and must never abort the
// operation it describes.
type Audit struct {
	logs *store.Logs
	now  func() time.Time
}

// NewAudit builds the audit sink.
func NewAudit(logs *store.Logs) *Audit {
	return &Audit{logs: logs, now: time.Now}
}

// Record writes one audit entry.
func (a *Audit) Record(ctx context.Context, userID, action, details string) {
	if a == nil || a.logs == nil {
		return
	}
	entry := model.LogEntry{
		Timestamp: a.now(),
		UserID:    userID,
		Action:    action,
		Details:   details,
	}
	if err := a.logs.Append(ctx, entry); err != nil {
		logger.SVCAudit.Warn("audit write failed",
			slog.String("event", "audit.append"),
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
	}
}
