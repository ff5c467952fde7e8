package store

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/m3rciful/vouchershop/core/logger"
)

// Sheets backs the RowStore with one Google Sheets tab per logical table.
// Row 1 of every tab is the header; data rows follow. The Sheets API has no
// targeted row deletion by value, so DeleteRow rewrites the whole tab.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheets builds a Sheets-backed store from a service-account credentials file.
func NewSheets(ctx context.Context, spreadsheetID, credentialsFile string) (*Sheets, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets store: service init: %w", err)
	}
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (s *Sheets) readAll(ctx context.Context, table string) ([]string, [][]string, error) {
	if _, ok := Headers[table]; !ok {
		return nil, nil, fmt.Errorf("sheets store: unknown table %q", table)
	}

	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, table).
		Context(ctx).
		Do()
	if err != nil {
		return nil, nil, fmt.Errorf("sheets store: read %s: %w", table, err)
	}
	if len(resp.Values) == 0 {
		return Headers[table], nil, nil
	}

	header := make([]string, 0, len(resp.Values[0]))
	for _, c := range resp.Values[0] {
		header = append(header, fmt.Sprint(c))
	}

	rows := make([][]string, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		row := make([]string, 0, len(raw))
		for _, c := range raw {
			row = append(row, fmt.Sprint(c))
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// ListRows returns all data rows of a tab mapped through its header row.
func (s *Sheets) ListRows(ctx context.Context, table string) ([]Row, error) {
	header, rows, err := s.readAll(ctx, table)
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(rows))
	for _, cells := range rows {
		row := make(Row, len(header))
		for i, v := range cells {
			if i >= len(header) {
				break
			}
			row[header[i]] = v
		}
		out = append(out, row)
	}

	logger.STORE.Debug("rows listed",
		slog.String("event", "list"),
		slog.String("table", table),
		slog.Int("count", len(out)),
	)
	return out, nil
}

// AppendRow appends one record below the existing data.
func (s *Sheets) AppendRow(ctx context.Context, table string, values []string) error {
	if _, ok := Headers[table]; !ok {
		return fmt.Errorf("sheets store: unknown table %q", table)
	}

	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, table, &sheets.ValueRange{Values: [][]any{cells}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets store: append %s: %w", table, err)
	}
	return nil
}

// UpdateRow rewrites the first matching data row in place.
func (s *Sheets) UpdateRow(ctx context.Context, table, matchCol, matchVal string, patch map[string]string) (bool, error) {
	header, rows, err := s.readAll(ctx, table)
	if err != nil {
		return false, err
	}

	colIdx := indexOf(header, matchCol)
	if colIdx < 0 {
		return false, fmt.Errorf("sheets store: column %q not in %s header", matchCol, table)
	}

	for i, row := range rows {
		if cellAt(row, colIdx) != matchVal {
			continue
		}

		patched := make([]any, len(header))
		for j, col := range header {
			if v, ok := patch[col]; ok {
				patched[j] = v
			} else {
				patched[j] = cellAt(row, j)
			}
		}

		// Data rows start at sheet row 2, after the header.
		target := fmt.Sprintf("%s!A%d", table, i+2)
		_, err := s.svc.Spreadsheets.Values.
			Update(s.spreadsheetID, target, &sheets.ValueRange{Values: [][]any{patched}}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return false, fmt.Errorf("sheets store: update %s: %w", table, err)
		}
		return true, nil
	}
	return false, nil
}

// DeleteRow removes the first matching data row by clearing the tab and
// rewriting the header plus the remaining rows in their original order.
func (s *Sheets) DeleteRow(ctx context.Context, table, matchCol, matchVal string) (bool, error) {
	header, rows, err := s.readAll(ctx, table)
	if err != nil {
		return false, err
	}

	colIdx := indexOf(header, matchCol)
	if colIdx < 0 {
		return false, fmt.Errorf("sheets store: column %q not in %s header", matchCol, table)
	}

	match := -1
	for i, row := range rows {
		if cellAt(row, colIdx) == matchVal {
			match = i
			break
		}
	}
	if match < 0 {
		return false, nil
	}

	values := make([][]any, 0, len(rows))
	values = append(values, toCells(header))
	for i, row := range rows {
		if i == match {
			continue
		}
		values = append(values, toCells(row))
	}

	_, err = s.svc.Spreadsheets.Values.
		Clear(s.spreadsheetID, table, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("sheets store: clear %s: %w", table, err)
	}

	_, err = s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, fmt.Sprintf("%s!A1", table), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("sheets store: rewrite %s: %w", table, err)
	}
	return true, nil
}

func indexOf(header []string, col string) int {
	for i, h := range header {
		if h == col {
			return i
		}
	}
	return -1
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
