package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/vouchershop/core/logger"
)

// Postgres backs the RowStore with per-table SQL tables created by the
// migrations under migrations/. Every cell is stored as text; a seq column
// preserves insertion order and identifies "the first matching row".
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an established sqlx connection.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func sqlTable(table string) (string, []string, error) {
	header, ok := Headers[table]
	if !ok {
		return "", nil, fmt.Errorf("postgres store: unknown table %q", table)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.ToLower(h)
	}
	return strings.ToLower(table), cols, nil
}

// ListRows returns all records ordered by insertion.
func (p *Postgres) ListRows(ctx context.Context, table string) ([]Row, error) {
	name, cols, err := sqlTable(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", strings.Join(cols, ", "), name)
	sqlRows, err := p.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list %s: %w", table, err)
	}
	defer sqlRows.Close()

	header := Headers[table]
	var out []Row
	for sqlRows.Next() {
		cells := make([]any, len(cols))
		for i := range cells {
			cells[i] = new(*string)
		}
		if err := sqlRows.Scan(cells...); err != nil {
			return nil, fmt.Errorf("postgres store: scan %s: %w", table, err)
		}
		row := make(Row, len(cols))
		for i, c := range cells {
			if v := *(c.(**string)); v != nil {
				row[header[i]] = *v
			}
		}
		out = append(out, row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate %s: %w", table, err)
	}

	logger.STORE.Debug("rows listed",
		slog.String("event", "list"),
		slog.String("table", table),
		slog.Int("count", len(out)),
	)
	return out, nil
}

// AppendRow inserts one record; values follow the table's header order.
func (p *Postgres) AppendRow(ctx context.Context, table string, values []string) error {
	name, cols, err := sqlTable(table)
	if err != nil {
		return err
	}
	if len(values) > len(cols) {
		return fmt.Errorf("postgres store: %d values for %d columns in %q", len(values), len(cols), table)
	}

	cols = cols[:len(values)]
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = v
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres store: append %s: %w", table, err)
	}
	return nil
}

// UpdateRow patches the first row (lowest seq) whose matchCol equals matchVal.
func (p *Postgres) UpdateRow(ctx context.Context, table, matchCol, matchVal string, patch map[string]string) (bool, error) {
	name, _, err := sqlTable(table)
	if err != nil {
		return false, err
	}
	if len(patch) == 0 {
		return false, fmt.Errorf("postgres store: empty patch for %q", table)
	}

	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+1)
	// Deterministic column order keeps the query stable across calls.
	for _, h := range Headers[table] {
		v, ok := patch[h]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", strings.ToLower(h), len(args)))
	}
	if len(sets) == 0 {
		return false, fmt.Errorf("postgres store: patch references no known columns of %q", table)
	}
	args = append(args, matchVal)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE seq = (SELECT seq FROM %s WHERE %s = $%d ORDER BY seq LIMIT 1)",
		name, strings.Join(sets, ", "), name, strings.ToLower(matchCol), len(args))
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("postgres store: update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres store: update %s: %w", table, err)
	}
	return n > 0, nil
}

// DeleteRow removes the first row (lowest seq) whose matchCol equals matchVal.
func (p *Postgres) DeleteRow(ctx context.Context, table, matchCol, matchVal string) (bool, error) {
	name, _, err := sqlTable(table)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE seq = (SELECT seq FROM %s WHERE %s = $1 ORDER BY seq LIMIT 1)",
		name, name, strings.ToLower(matchCol))
	res, err := p.db.ExecContext(ctx, query, matchVal)
	if err != nil {
		return false, fmt.Errorf("postgres store: delete %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres store: delete %s: %w", table, err)
	}
	return n > 0, nil
}
