package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Nterah/QualiPro/internal/storage"
)

// Repo implements storage.Backend for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has a single table namespace per database file. Schema
//     qualifiers are logical only: "pqp.section41" is stored as "section41".
//     ListTables echoes the requested schema back on every name so callers
//     can compare against configured qualified names.
//   - Timestamps are stored as RFC3339Nano TEXT for reliable round-trips.
//   - The pool is limited to one connection; writes serialize on it.
type Repo struct {
	db         *sqlx.DB
	sections   storage.TableName
	autoCreate bool
	now        func() time.Time
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the SQLite database at cfg.DSN (a path or file: URI).
func New(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
	sections := storage.ParseTableName(cfg.SectionsTable)
	if sections.IsZero() {
		return nil, fmt.Errorf("sqlite: sections table is required")
	}
	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repo{db: db, sections: sections, autoCreate: cfg.AutoCreate, now: time.Now}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// DB exposes the underlying handle for seeding fixtures and debugging.
func (r *Repo) DB() *sqlx.DB { return r.db }

// EnsureSchema creates the sections table when auto-create is on.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if !r.autoCreate {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, buildCreateSectionsSQL(r.sections)); err != nil {
		return fmt.Errorf("sqlite: ensure sections table %s: %w", r.sections, err)
	}
	return nil
}

// ListTables returns every user table, tagged with schema.
func (r *Repo) ListTables(ctx context.Context, schema string) ([]storage.TableName, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	out := make([]storage.TableName, 0, len(names))
	for _, n := range names {
		out = append(out, storage.TableName{Schema: schema, Name: n})
	}
	return out, nil
}

// Columns returns the declared columns of table in cid order. A missing
// table yields no rows from pragma_table_info, hence an empty slice.
func (r *Repo) Columns(ctx context.Context, table storage.TableName) ([]storage.Column, error) {
	if table.IsZero() {
		return nil, nil
	}
	var cols []struct {
		Name string `db:"name"`
		Type string `db:"type"`
	}
	err := r.db.SelectContext(ctx, &cols, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table.Name)
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns %s: %w", table, err)
	}
	out := make([]storage.Column, 0, len(cols))
	for _, c := range cols {
		out = append(out, storage.Column{Name: c.Name, DataType: c.Type})
	}
	return out, nil
}

// SelectEqual returns every row of table where column equals value.
func (r *Repo) SelectEqual(ctx context.Context, table storage.TableName, column string, value any) ([]storage.Row, error) {
	if table.IsZero() || column == "" {
		return nil, fmt.Errorf("sqlite: SelectEqual: table and column are required")
	}
	rows, err := r.db.QueryxContext(ctx, buildSelectEqualSQL(table, column), value)
	if err != nil {
		return nil, fmt.Errorf("sqlite: select %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var out []storage.Row
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", table, err)
		}
		out = append(out, storage.Row(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: select %s: %w", table, err)
	}
	return out, nil
}

// sectionRow mirrors the sections table for sqlx scanning.
type sectionRow struct {
	ProjectCode   string `db:"project_code"`
	SectionNumber int    `db:"section_number"`
	Title         string `db:"title"`
	RowsJSON      string `db:"rows_json"`
	ColumnsJSON   string `db:"columns_json"`
	Completed     bool   `db:"completed"`
	SourceTable   string `db:"source_table"`
	Guessed       bool   `db:"guessed"`
	CreatedAt     string `db:"created_at"`
	LastEditedOn  string `db:"last_edited_on"`
}

func (s sectionRow) record() storage.SectionRecord {
	rec := storage.SectionRecord{
		ProjectCode:   s.ProjectCode,
		SectionNumber: s.SectionNumber,
		Title:         s.Title,
		RowsJSON:      s.RowsJSON,
		ColumnsJSON:   s.ColumnsJSON,
		Completed:     s.Completed,
		SourceTable:   s.SourceTable,
		Guessed:       s.Guessed,
	}
	if ts, err := parseSQLiteTime(s.CreatedAt); err == nil {
		rec.CreatedAt = ts
	}
	if ts, err := parseSQLiteTime(s.LastEditedOn); err == nil {
		rec.LastEditedOn = ts
	}
	return rec
}

const sectionColumns = "project_code, section_number, title, rows_json, columns_json, completed, source_table, guessed, created_at, last_edited_on"

// GetSection returns the stored record for (code, number), or nil.
func (r *Repo) GetSection(ctx context.Context, code string, number int) (*storage.SectionRecord, error) {
	var row sectionRow
	q := "SELECT " + sectionColumns + " FROM " + tableIdent(r.sections) + " WHERE project_code = ? AND section_number = ?"
	err := r.db.GetContext(ctx, &row, q, code, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get section %s/%d: %w", code, number, err)
	}
	rec := row.record()
	return &rec, nil
}

// ListSections returns every stored record for code ordered by number.
func (r *Repo) ListSections(ctx context.Context, code string) ([]storage.SectionRecord, error) {
	var rows []sectionRow
	q := "SELECT " + sectionColumns + " FROM " + tableIdent(r.sections) + " WHERE project_code = ? ORDER BY section_number"
	if err := r.db.SelectContext(ctx, &rows, q, code); err != nil {
		return nil, fmt.Errorf("sqlite: list sections %s: %w", code, err)
	}
	out := make([]storage.SectionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

// InsertMissingSections creates placeholder records with INSERT OR IGNORE.
func (r *Repo) InsertMissingSections(ctx context.Context, code string, shells []storage.SectionShell) (int, error) {
	if len(shells) == 0 {
		return 0, nil
	}
	q, args := buildInsertShellsSQL(r.sections, code, shells, formatSQLiteTime(r.now()))
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: ensure sections %s: %w", code, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// UpdateSection performs one transactional read-modify-write cycle.
// SQLite serializes writers on the database lock, so no row lock is needed.
func (r *Repo) UpdateSection(ctx context.Context, code string, number int, fn func(rec *storage.SectionRecord) error) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := formatSQLiteTime(r.now())

		q, args := buildInsertShellsSQL(r.sections, code, []storage.SectionShell{{Number: number}}, now)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("sqlite: update section %s/%d: seed: %w", code, number, err)
		}

		var row sectionRow
		sel := "SELECT " + sectionColumns + " FROM " + tableIdent(r.sections) + " WHERE project_code = ? AND section_number = ?"
		if err := tx.GetContext(ctx, &row, sel, code, number); err != nil {
			return fmt.Errorf("sqlite: update section %s/%d: read: %w", code, number, err)
		}

		rec := row.record()
		if err := fn(&rec); err != nil {
			return err
		}

		upd := "UPDATE " + tableIdent(r.sections) + ` SET title = ?, rows_json = ?, columns_json = ?,
 completed = ?, source_table = ?, guessed = ?, last_edited_on = ?
 WHERE project_code = ? AND section_number = ?`
		if _, err := tx.ExecContext(ctx, upd,
			rec.Title, rec.RowsJSON, rec.ColumnsJSON, rec.Completed, rec.SourceTable, rec.Guessed, now,
			code, number,
		); err != nil {
			return fmt.Errorf("sqlite: update section %s/%d: write: %w", code, number, err)
		}
		return nil
	})
}

// withTx commits when fn succeeds. storage.ErrNoChange rolls back and is
// reported as success.
func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, storage.ErrNoChange) {
			return nil
		}
		return err
	}
	return tx.Commit()
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// tableIdent drops the logical schema; see Repo.
func tableIdent(t storage.TableName) string {
	return sqlIdent(t.Name)
}

func buildSelectEqualSQL(table storage.TableName, column string) string {
	return "SELECT * FROM " + tableIdent(table) + " WHERE " + sqlIdent(column) + " = ?"
}

func buildInsertShellsSQL(table storage.TableName, code string, shells []storage.SectionShell, now string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (project_code, section_number, title, rows_json, completed, created_at, last_edited_on) VALUES ")

	args := make([]any, 0, len(shells)*5)
	for i, s := range shells {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, '[]', 0, ?, ?)")
		args = append(args, code, s.Number, s.Title, now, now)
	}
	return b.String(), args
}

func buildCreateSectionsSQL(table storage.TableName) string {
	return "CREATE TABLE IF NOT EXISTS " + tableIdent(table) + ` (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  project_code TEXT NOT NULL,
  section_number INTEGER NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  rows_json TEXT NOT NULL DEFAULT '[]',
  columns_json TEXT NOT NULL DEFAULT '',
  completed INTEGER NOT NULL DEFAULT 0,
  source_table TEXT NOT NULL DEFAULT '',
  guessed INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL DEFAULT '',
  last_edited_on TEXT NOT NULL DEFAULT '',
  UNIQUE (project_code, section_number)
)`
}

// formatSQLiteTime formats a time as RFC3339Nano in UTC.
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseSQLiteTime parses timestamps returned by SQLite into time.Time.
//
// Supported formats:
//   - RFC3339Nano (what we write)
//   - RFC3339
//   - "2006-01-02 15:04:05Z07:00" and its fractional variant
//   - "2006-01-02 15:04:05" (interpreted as UTC)
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}

var _ storage.Backend = (*Repo)(nil)
