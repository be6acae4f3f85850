package records

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteWorkbook stores worksheets as sparse cells in a local database,
// for running without Google credentials.
type SQLiteWorkbook struct {
	sql *sql.DB
}

func OpenSQLite(path string) (*SQLiteWorkbook, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS sheets (
  name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS cells (
  sheet TEXT    NOT NULL,
  row   INTEGER NOT NULL,
  col   INTEGER NOT NULL,
  value TEXT    NOT NULL,
  PRIMARY KEY (sheet, row, col)
);
`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteWorkbook{sql: db}, nil
}

func (w *SQLiteWorkbook) Close() error {
	if w == nil || w.sql == nil {
		return nil
	}
	return w.sql.Close()
}

// CreateTable registers an empty worksheet. Existing sheets are kept.
func (w *SQLiteWorkbook) CreateTable(ctx context.Context, name string) error {
	_, err := w.sql.ExecContext(ctx, `INSERT OR IGNORE INTO sheets(name) VALUES(?)`, name)
	return err
}

// Import replaces a worksheet's content with rows, header first.
func (w *SQLiteWorkbook) Import(ctx context.Context, name string, rows [][]string) (err error) {
	tx, err := w.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO sheets(name) VALUES(?)`, name); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ?`, name); err != nil {
		return err
	}
	if err = insertRows(ctx, tx, name, 1, rows); err != nil {
		return err
	}
	return tx.Commit()
}

func (w *SQLiteWorkbook) Table(ctx context.Context, name string) (Table, error) {
	var found string
	err := w.sql.QueryRowContext(ctx, `SELECT name FROM sheets WHERE name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrTabNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &sqliteTable{db: w.sql, name: name}, nil
}

type sqliteTable struct {
	db   *sql.DB
	name string
}

func (t *sqliteTable) Name() string {
	return t.name
}

func (t *sqliteTable) Values(ctx context.Context) ([][]string, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT row, col, value FROM cells WHERE sheet = ? AND value <> '' ORDER BY row, col`, t.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var (
			r, c  int
			value string
		)
		if err := rows.Scan(&r, &c, &value); err != nil {
			return nil, err
		}
		for len(out) < r {
			out = append(out, nil)
		}
		row := out[r-1]
		for len(row) < c {
			row = append(row, "")
		}
		row[c-1] = value
		out[r-1] = row
	}
	return out, rows.Err()
}

func (t *sqliteTable) DeleteRow(ctx context.Context, row int) (err error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ? AND row = ?`, t.name, row); err != nil {
		return err
	}
	// Two passes through negative rows so the primary key never collides.
	if _, err = tx.ExecContext(ctx, `UPDATE cells SET row = -(row - 1) WHERE sheet = ? AND row > ?`, t.name, row); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE cells SET row = -row WHERE sheet = ? AND row < 0`, t.name); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *sqliteTable) WriteColumn(ctx context.Context, col, fromRow int, values []string, clearTo int) (err error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if clearTo >= fromRow {
		if _, err = tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ? AND col = ? AND row BETWEEN ? AND ?`, t.name, col, fromRow, clearTo); err != nil {
			return err
		}
	}
	for i, v := range values {
		if _, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO cells(sheet, row, col, value) VALUES(?,?,?,?)`, t.name, fromRow+i, col, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (t *sqliteTable) AppendRows(ctx context.Context, rows [][]string) (err error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var last sql.NullInt64
	if err = tx.QueryRowContext(ctx, `SELECT MAX(row) FROM cells WHERE sheet = ? AND value <> ''`, t.name).Scan(&last); err != nil {
		return err
	}
	if err = insertRows(ctx, tx, t.name, int(last.Int64)+1, rows); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRows(ctx context.Context, tx *sql.Tx, sheet string, startRow int, rows [][]string) error {
	for i, row := range rows {
		for j, v := range row {
			if v == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO cells(sheet, row, col, value) VALUES(?,?,?,?)`, sheet, startRow+i, j+1, v); err != nil {
				return err
			}
		}
	}
	return nil
}
