package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process RowStore used by tests and local development.
// Rows are deep-copied on every read so callers cannot alias internal state.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

// NewMemory returns an empty in-memory store aware of all logical tables.
func NewMemory() *Memory {
	tables := make(map[string][]Row, len(Headers))
	for table := range Headers {
		tables[table] = nil
	}
	return &Memory{tables: tables}
}

func (m *Memory) header(table string) ([]string, error) {
	header, ok := Headers[table]
	if !ok {
		return nil, fmt.Errorf("memory store: unknown table %q", table)
	}
	return header, nil
}

// ListRows returns copies of all rows in insertion order.
func (m *Memory) ListRows(_ context.Context, table string) ([]Row, error) {
	if _, err := m.header(table); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.tables[table]
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	return out, nil
}

// AppendRow appends one record using the table's header order.
func (m *Memory) AppendRow(_ context.Context, table string, values []string) error {
	header, err := m.header(table)
	if err != nil {
		return err
	}
	if len(values) > len(header) {
		return fmt.Errorf("memory store: %d values for %d columns in %q", len(values), len(header), table)
	}

	row := make(Row, len(values))
	for i, v := range values {
		row[header[i]] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], row)
	return nil
}

// UpdateRow patches the first matching row.
func (m *Memory) UpdateRow(_ context.Context, table, matchCol, matchVal string, patch map[string]string) (bool, error) {
	if _, err := m.header(table); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.tables[table] {
		if row[matchCol] != matchVal {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		return true, nil
	}
	return false, nil
}

// DeleteRow removes the first matching row.
func (m *Memory) DeleteRow(_ context.Context, table, matchCol, matchVal string) (bool, error) {
	if _, err := m.header(table); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	for i, row := range rows {
		if row[matchCol] != matchVal {
			continue
		}
		m.tables[table] = append(rows[:i:i], rows[i+1:]...)
		return true, nil
	}
	return false, nil
}
