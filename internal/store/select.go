package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotSelect is returned by Select for anything but a SELECT or WITH
// statement.
var ErrNotSelect = errors.New("store: only SELECT queries are allowed")

// Select runs a read-only statement and returns each row as a map from
// column name to value. Text stored as blobs comes back as a string.
func (s *Store) Select(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	head := strings.ToUpper(strings.TrimSpace(query))
	if !strings.HasPrefix(head, "SELECT") && !strings.HasPrefix(head, "WITH") {
		return nil, ErrNotSelect
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select: columns: %w", err)
	}

	out := []map[string]any{}
	cells := make([]any, len(cols))
	dest := make([]any, len(cols))
	for rows.Next() {
		for i := range cells {
			cells[i] = nil
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("select: scan: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := cells[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = cells[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return out, nil
}
