// Package store provides the row-oriented persistence layer: a generic
// RowStore abstraction with Postgres, Google Sheets and in-memory drivers,
// and typed repositories that map rows to model records at the boundary.
package store

import "context"

// Row is one record of a logical table. Cells are string-typed; an absent
// cell is a missing key, not an empty string.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RowStore is a schema-less table service. It offers no native transactions
// or compare-and-swap; callers that need atomicity must serialize access
// themselves.
type RowStore interface {
	// ListRows returns all records of a table in insertion order.
	ListRows(ctx context.Context, table string) ([]Row, error)
	// AppendRow appends one record; values follow the table's header order.
	AppendRow(ctx context.Context, table string, values []string) error
	// UpdateRow patches the first row whose matchCol cell equals matchVal.
	// Returns false when no row matched.
	UpdateRow(ctx context.Context, table, matchCol, matchVal string, patch map[string]string) (bool, error)
	// DeleteRow removes the first row whose matchCol cell equals matchVal.
	// Returns false when no row matched.
	DeleteRow(ctx context.Context, table, matchCol, matchVal string) (bool, error)
}

// Logical table names.
const (
	TableUsers      = "Users"
	TableCategories = "Categories"
	TableOrders     = "Orders"
	TableLogs       = "Logs"
)

// Column headers per table, in persisted order.
var (
	UsersHeader = []string{
		"UserID", "Name", "JoinedAt", "Status", "Verified",
	}
	CategoriesHeader = []string{
		"CategoryID", "Value",
		"Price1", "Price2", "Price3", "Price4", "Price5", "Price10", "Price20Plus",
		"Stock", "VoucherCodes",
	}
	OrdersHeader = []string{
		"OrderID", "UserID", "UserName", "CategoryID", "Quantity",
		"Total", "UTR", "Status", "VoucherCodeDelivered", "CreatedAt",
	}
	LogsHeader = []string{
		"Timestamp", "UserID", "Action", "Details",
	}
)

// Headers maps every logical table to its column order.
var Headers = map[string][]string{
	TableUsers:      UsersHeader,
	TableCategories: CategoriesHeader,
	TableOrders:     OrdersHeader,
	TableLogs:       LogsHeader,
}
