package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/Nterah/QualiPro/internal/storage"
)

// Repo implements storage.Backend for Microsoft SQL Server.
//
// Concurrency:
//   - UpdateSection reads the record WITH (UPDLOCK, ROWLOCK) so writers for
//     the same (project_code, section_number) serialize without table locks.
//
// Driver registration:
//   - This package does NOT import a SQL Server driver. The binary must
//     register "sqlserver" (internal/storage/all does).
type Repo struct {
	db         *sqlx.DB
	sections   storage.TableName
	autoCreate bool
}

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server connection pool and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
	sections := storage.ParseTableName(cfg.SectionsTable)
	if sections.IsZero() {
		return nil, fmt.Errorf("mssql: sections table is required")
	}
	db, err := sqlx.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(16)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Repo{db: db, sections: sections, autoCreate: cfg.AutoCreate}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureSchema creates the schema and sections table when auto-create is on.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if !r.autoCreate {
		return nil
	}
	for _, stmt := range buildCreateSectionsSQL(r.sections) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mssql: ensure sections table %s: %w", r.sections, err)
		}
	}
	return nil
}

// ListTables returns every base table in schema ordered by name. An empty
// schema means the caller's default schema.
func (r *Repo) ListTables(ctx context.Context, schema string) ([]storage.TableName, error) {
	var rows []struct {
		Schema string `db:"table_schema"`
		Name   string `db:"table_name"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT TABLE_SCHEMA AS table_schema, TABLE_NAME AS table_name
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME()) AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`, schema)
	if err != nil {
		return nil, fmt.Errorf("mssql: list tables %q: %w", schema, err)
	}
	out := make([]storage.TableName, 0, len(rows))
	for _, t := range rows {
		out = append(out, storage.TableName{Schema: t.Schema, Name: t.Name})
	}
	return out, nil
}

// Columns returns the ordered columns of table, empty when it is missing.
func (r *Repo) Columns(ctx context.Context, table storage.TableName) ([]storage.Column, error) {
	if table.IsZero() {
		return nil, nil
	}
	var rows []struct {
		Name string `db:"column_name"`
		Type string `db:"data_type"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT COLUMN_NAME AS column_name, DATA_TYPE AS data_type
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME()) AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION`, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("mssql: columns %s: %w", table, err)
	}
	out := make([]storage.Column, 0, len(rows))
	for _, c := range rows {
		out = append(out, storage.Column{Name: c.Name, DataType: c.Type})
	}
	return out, nil
}

// SelectEqual returns every row of table where column equals value.
func (r *Repo) SelectEqual(ctx context.Context, table storage.TableName, column string, value any) ([]storage.Row, error) {
	if table.IsZero() || column == "" {
		return nil, fmt.Errorf("mssql: SelectEqual: table and column are required")
	}
	rows, err := r.db.QueryxContext(ctx, buildSelectEqualSQL(table, column), value)
	if err != nil {
		return nil, fmt.Errorf("mssql: select %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("mssql: column types %s: %w", table, err)
	}
	guids := guidColumns(types)

	var out []storage.Row
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("mssql: scan %s: %w", table, err)
		}
		decodeGUIDs(m, guids)
		out = append(out, storage.Row(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: select %s: %w", table, err)
	}
	return out, nil
}

// guidColumns names the uniqueidentifier columns of a result set.
func guidColumns(types []*sql.ColumnType) []string {
	var out []string
	for _, t := range types {
		if strings.EqualFold(t.DatabaseTypeName(), "UNIQUEIDENTIFIER") {
			out = append(out, t.Name())
		}
	}
	return out
}

// decodeGUIDs replaces the driver's raw 16-byte uniqueidentifier values
// (mixed-endian) with their canonical string form.
func decodeGUIDs(m map[string]any, cols []string) {
	for _, c := range cols {
		b, ok := m[c].([]byte)
		if !ok || len(b) != 16 {
			continue
		}
		var u mssqldb.UniqueIdentifier
		if err := u.Scan(b); err != nil {
			continue
		}
		m[c] = u.String()
	}
}

type sectionRow struct {
	ProjectCode   string    `db:"project_code"`
	SectionNumber int       `db:"section_number"`
	Title         string    `db:"title"`
	RowsJSON      string    `db:"rows_json"`
	ColumnsJSON   string    `db:"columns_json"`
	Completed     bool      `db:"completed"`
	SourceTable   string    `db:"source_table"`
	Guessed       bool      `db:"guessed"`
	CreatedAt     time.Time `db:"created_at"`
	LastEditedOn  time.Time `db:"last_edited_on"`
}

func (s sectionRow) record() storage.SectionRecord {
	return storage.SectionRecord{
		ProjectCode:   s.ProjectCode,
		SectionNumber: s.SectionNumber,
		Title:         s.Title,
		RowsJSON:      s.RowsJSON,
		ColumnsJSON:   s.ColumnsJSON,
		Completed:     s.Completed,
		SourceTable:   s.SourceTable,
		Guessed:       s.Guessed,
		CreatedAt:     s.CreatedAt,
		LastEditedOn:  s.LastEditedOn,
	}
}

const sectionColumns = "project_code, section_number, title, rows_json, columns_json, completed, source_table, guessed, created_at, last_edited_on"

// GetSection returns the stored record for (code, number), or nil.
func (r *Repo) GetSection(ctx context.Context, code string, number int) (*storage.SectionRecord, error) {
	var row sectionRow
	q := "SELECT " + sectionColumns + " FROM " + mssqlTableIdent(r.sections) +
		" WHERE project_code = @p1 AND section_number = @p2"
	err := r.db.GetContext(ctx, &row, q, code, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mssql: get section %s/%d: %w", code, number, err)
	}
	rec := row.record()
	return &rec, nil
}

// ListSections returns every stored record for code ordered by number.
func (r *Repo) ListSections(ctx context.Context, code string) ([]storage.SectionRecord, error) {
	var rows []sectionRow
	q := "SELECT " + sectionColumns + " FROM " + mssqlTableIdent(r.sections) +
		" WHERE project_code = @p1 ORDER BY section_number"
	if err := r.db.SelectContext(ctx, &rows, q, code); err != nil {
		return nil, fmt.Errorf("mssql: list sections %s: %w", code, err)
	}
	out := make([]storage.SectionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

// InsertMissingSections inserts each missing shell with an INSERT ... WHERE
// NOT EXISTS guard (avoids MERGE).
func (r *Repo) InsertMissingSections(ctx context.Context, code string, shells []storage.SectionShell) (int, error) {
	total := 0
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, s := range shells {
			q, args := buildInsertShellSQL(r.sections, code, s)
			res, err := tx.ExecContext(ctx, q, args...)
			if err != nil {
				return fmt.Errorf("mssql: ensure section %s/%d: %w", code, s.Number, err)
			}
			n, _ := res.RowsAffected()
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateSection performs one transactional read-modify-write cycle.
func (r *Repo) UpdateSection(ctx context.Context, code string, number int, fn func(rec *storage.SectionRecord) error) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		q, args := buildInsertShellSQL(r.sections, code, storage.SectionShell{Number: number})
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("mssql: update section %s/%d: seed: %w", code, number, err)
		}

		var row sectionRow
		if err := tx.GetContext(ctx, &row, buildLockSectionSQL(r.sections), code, number); err != nil {
			return fmt.Errorf("mssql: update section %s/%d: lock: %w", code, number, err)
		}

		rec := row.record()
		if err := fn(&rec); err != nil {
			return err
		}

		upd := "UPDATE " + mssqlTableIdent(r.sections) + ` SET title = @p3, rows_json = @p4, columns_json = @p5,
 completed = @p6, source_table = @p7, guessed = @p8, last_edited_on = SYSUTCDATETIME()
 WHERE project_code = @p1 AND section_number = @p2`
		if _, err := tx.ExecContext(ctx, upd, code, number,
			rec.Title, rec.RowsJSON, rec.ColumnsJSON, rec.Completed, rec.SourceTable, rec.Guessed,
		); err != nil {
			return fmt.Errorf("mssql: update section %s/%d: write: %w", code, number, err)
		}
		return nil
	})
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mssql: begin: %w", err)
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

/* ---------- SQL builders ---------- */

func buildSelectEqualSQL(table storage.TableName, column string) string {
	return "SELECT * FROM " + mssqlTableIdent(table) + " WHERE " + mssqlIdent(column) + " = @p1"
}

func buildLockSectionSQL(table storage.TableName) string {
	return "SELECT " + sectionColumns + " FROM " + mssqlTableIdent(table) +
		" WITH (UPDLOCK, ROWLOCK) WHERE project_code = @p1 AND section_number = @p2"
}

// buildInsertShellSQL inserts one placeholder unless the key already exists.
// HOLDLOCK on the probe closes the gap between the check and the insert.
func buildInsertShellSQL(table storage.TableName, code string, s storage.SectionShell) (string, []any) {
	t := mssqlTableIdent(table)
	q := "INSERT INTO " + t + " (project_code, section_number, title, rows_json, completed)" +
		" SELECT @p1, @p2, @p3, '[]', 0 WHERE NOT EXISTS (SELECT 1 FROM " + t +
		" WITH (UPDLOCK, HOLDLOCK) WHERE project_code = @p1 AND section_number = @p2)"
	return q, []any{code, s.Number, s.Title}
}

// buildCreateSectionsSQL returns OBJECT_ID/SCHEMA_ID guarded DDL.
func buildCreateSectionsSQL(table storage.TableName) []string {
	var out []string
	if table.Schema != "" {
		out = append(out, fmt.Sprintf(
			"IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s');",
			sqlString(table.Schema), sqlString(mssqlIdent(table.Schema)),
		))
	}
	out = append(out, fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		sqlString(table.String()),
		mssqlTableIdent(table),
		`id BIGINT IDENTITY(1,1) PRIMARY KEY,
  project_code NVARCHAR(64) NOT NULL,
  section_number INT NOT NULL,
  title NVARCHAR(255) NOT NULL DEFAULT '',
  rows_json NVARCHAR(MAX) NOT NULL DEFAULT '[]',
  columns_json NVARCHAR(MAX) NOT NULL DEFAULT '',
  completed BIT NOT NULL DEFAULT 0,
  source_table NVARCHAR(255) NOT NULL DEFAULT '',
  guessed BIT NOT NULL DEFAULT 0,
  created_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
  last_edited_on DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
  CONSTRAINT uq_pqp_sections_code_number UNIQUE (project_code, section_number)`,
	))
	return out
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns [schema].[table], or [table] when unqualified.
func mssqlTableIdent(t storage.TableName) string {
	if t.Schema == "" {
		return mssqlIdent(t.Name)
	}
	return mssqlIdent(t.Schema) + "." + mssqlIdent(t.Name)
}

// sqlString escapes a value for use inside an N'...' literal.
func sqlString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

var _ storage.Backend = (*Repo)(nil)
