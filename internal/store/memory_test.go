package store

import (
	"context"
	"testing"
)

func TestMemoryAppendAndList(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.AppendRow(ctx, TableUsers, []string{"1", "Alice", "2026-01-01 00:00:00", "Active", "Yes"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.AppendRow(ctx, TableUsers, []string{"2", "Bob"}); err != nil {
		t.Fatalf("append short row: %v", err)
	}

	rows, err := m.ListRows(ctx, TableUsers)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["Name"] != "Alice" || rows[1]["UserID"] != "2" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	// Short rows leave trailing cells absent, not empty.
	if _, ok := rows[1]["Status"]; ok {
		t.Fatal("absent cell should be a missing key")
	}
}

func TestMemoryListReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.AppendRow(ctx, TableUsers, []string{"1", "Alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows, _ := m.ListRows(ctx, TableUsers)
	rows[0]["Name"] = "Mallory"

	again, _ := m.ListRows(ctx, TableUsers)
	if again[0]["Name"] != "Alice" {
		t.Fatal("mutating a listed row leaked into the store")
	}
}

func TestMemoryUpdateFirstMatch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.AppendRow(ctx, TableOrders, []string{"o1", "1", "Alice", "100", "1", "90.00", "123456789012", "Pending"})
	_ = m.AppendRow(ctx, TableOrders, []string{"o2", "1", "Alice", "100", "2", "180.00", "123456789012", "Pending"})

	found, err := m.UpdateRow(ctx, TableOrders, "OrderID", "o2", map[string]string{"Status": "Declined"})
	if err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}

	rows, _ := m.ListRows(ctx, TableOrders)
	if rows[0]["Status"] != "Pending" || rows[1]["Status"] != "Declined" {
		t.Fatalf("wrong row updated: %v", rows)
	}

	found, err = m.UpdateRow(ctx, TableOrders, "OrderID", "o9", map[string]string{"Status": "Declined"})
	if err != nil || found {
		t.Fatalf("missing row: found=%v err=%v", found, err)
	}
}

func TestMemoryDeleteRow(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.AppendRow(ctx, TableCategories, []string{"100", "100"})
	_ = m.AppendRow(ctx, TableCategories, []string{"200", "200"})

	found, err := m.DeleteRow(ctx, TableCategories, "CategoryID", "100")
	if err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}

	rows, _ := m.ListRows(ctx, TableCategories)
	if len(rows) != 1 || rows[0]["CategoryID"] != "200" {
		t.Fatalf("unexpected rows after delete: %v", rows)
	}

	found, _ = m.DeleteRow(ctx, TableCategories, "CategoryID", "100")
	if found {
		t.Fatal("second delete should report not found")
	}
}

func TestMemoryUnknownTable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.ListRows(ctx, "Nope"); err == nil {
		t.Fatal("expected error for unknown table")
	}
	if err := m.AppendRow(ctx, "Nope", []string{"x"}); err == nil {
		t.Fatal("expected error for unknown table")
	}
}
