package logger

import (
	"testing"

	"log/slog"
)

// The component loggers must be safe to call before InitLogger runs; the
// service layer logs through them unconditionally and its tests never
// initialize the logging stack.
func TestComponentLoggersUsableBeforeInit(t *testing.T) {
	for name, l := range map[string]*slog.Logger{
		"L":            L,
		"DB":           DB,
		"TG":           TG,
		"MIG":          MIG,
		"TWire":        TWire,
		"STORE":        STORE,
		"SVCCatalog":   SVCCatalog,
		"SVCOrders":    SVCOrders,
		"SVCInventory": SVCInventory,
		"SVCUsers":     SVCUsers,
		"SVCAudit":     SVCAudit,
	} {
		if l == nil {
			t.Fatalf("logger %s is nil before InitLogger", name)
		}
	}

	// Must not panic.
	SVCOrders.Info("order submitted", slog.String("order_id", "TESTORDER0001"))
	STORE.Debug("row appended", slog.String("table", "orders"))
}
