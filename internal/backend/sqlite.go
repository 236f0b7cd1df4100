package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite serves tables from a SQLite database.
// It implements both Queryable and TableLister.
type SQLite struct {
	db       *sql.DB
	readOnly bool
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	readOnly bool
}

// ReadOnly opens the database with mode=ro. The file must already exist.
func ReadOnly() Option {
	return func(c *openConfig) { c.readOnly = true }
}

// Open creates or opens a SQLite database at path.
func Open(path string, opts ...Option) (*SQLite, error) {
	cfg := &openConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	dsn := path
	if cfg.readOnly {
		dsn = "file:" + path + "?mode=ro"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, cfg.readOnly); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &SQLite{db: db, readOnly: cfg.readOnly}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Tables lists user tables in name order.
func (s *SQLite) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

// Query reads every row of table matching all conds.
// Returns (nil, nil) if the table does not exist.
func (s *SQLite) Query(ctx context.Context, table string, conds []Cond) (*Frame, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup table %q: %w", table, err)
	}

	query, params, err := compileSelect(table, conds)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", table, err)
	}
	defer rows.Close()

	return scanFrame(rows)
}

// compileSelect builds a parameterized SELECT over table.
//
// CRITICAL: values are NEVER interpolated - always ? placeholders.
// Identifiers are double-quoted. rowid leads the column list and the
// ORDER BY so output is deterministic.
func compileSelect(table string, conds []Cond) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT rowid, * FROM ")
	sb.WriteString(quoteIdent(table))

	params := make([]any, 0, len(conds))
	for i, c := range conds {
		op, ok := sqlOps[c.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported condition operator %q", c.Op)
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "%s %s ?", quoteIdent(c.Field), op)
		params = append(params, c.Value)
	}

	sb.WriteString(" ORDER BY rowid ASC")
	return sb.String(), params, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// scanFrame materializes rows whose first column is the rowid.
func scanFrame(rows *sql.Rows) (*Frame, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("query returned no columns")
	}

	frame := &Frame{
		Columns: append([]string{}, cols[1:]...),
		Index:   []int64{},
		Rows:    [][]any{},
	}

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rowid, ok := vals[0].(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected rowid type %T", vals[0])
		}
		frame.Index = append(frame.Index, rowid)
		frame.Rows = append(frame.Rows, vals[1:])
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return frame, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, readOnly bool) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
	}
	if !readOnly {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
