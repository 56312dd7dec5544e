package store

import (
	"context"
	"fmt"
	"strings"
)

// QueryResult holds the outcome of an arbitrary statement.
// Row-returning statements fill Columns and Rows; others fill RowsAffected and LastInsertID.
// A write with RETURNING fills Columns and Rows and counts its rows in RowsAffected.
type QueryResult struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected"`
	LastInsertID int64    `json:"last_insert_id"`
}

// IsWrite reports whether the statement may modify the database. A WITH
// statement is judged by the statement that follows its common table expressions.
func IsWrite(query string) bool {
	return !parseStatement(query).readOnly()
}

// statement holds what decides how an arbitrary query is run
type statement struct {
	main      string // SELECT, INSERT, PRAGMA... with any WITH prefix skipped
	returning bool   // top-level RETURNING clause
}

func (st statement) readOnly() bool {
	switch st.main {
	case "SELECT", "VALUES", "PRAGMA", "EXPLAIN":
		return true
	}
	return false
}

func (st statement) returnsRows() bool {
	return st.readOnly() || st.returning
}

// parseStatement scans top-level keywords, skipping literals, quoted
// identifiers, comments and anything inside parentheses
func parseStatement(query string) statement {
	var (
		st    statement
		lead  string
		depth int
	)
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			closing := c
			if c == '[' {
				closing = ']'
			}
			j := strings.IndexByte(query[i+1:], closing)
			if j < 0 {
				return st
			}
			i += j + 2
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			j := strings.IndexByte(query[i:], '\n')
			if j < 0 {
				return st
			}
			i += j + 1
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			j := strings.Index(query[i+2:], "*/")
			if j < 0 {
				return st
			}
			i += j + 4
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case isWordByte(c):
			j := i
			for j < len(query) && isWordByte(query[j]) {
				j++
			}
			word := strings.ToUpper(query[i:j])
			i = j
			if depth != 0 {
				continue
			}
			if lead == "" {
				lead = word
				if lead != "WITH" {
					st.main = lead
				}
				continue
			}
			switch word {
			case "SELECT", "INSERT", "UPDATE", "DELETE", "REPLACE", "VALUES":
				if st.main == "" {
					st.main = word
				}
			case "RETURNING":
				st.returning = true
			}
		default:
			i++
		}
	}
	return st
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// Execute runs an arbitrary SQL statement with positional arguments
func (s *Store) Execute(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}

	st := parseStatement(query)
	if !st.returnsRows() {
		result, err := s.q.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to execute query: %w", classifyRecordingError(classifyFolderError(err)))
		}
		affected, _ := result.RowsAffected()
		lastID, _ := result.LastInsertId()
		return &QueryResult{RowsAffected: affected, LastInsertID: lastID}, nil
	}

	// RETURNING rows must be read to the end before the write is complete
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", classifyRecordingError(classifyFolderError(err)))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	res := &QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", classifyRecordingError(classifyFolderError(err)))
	}

	if !st.readOnly() {
		res.RowsAffected = int64(len(res.Rows))
	}
	return res, nil
}
