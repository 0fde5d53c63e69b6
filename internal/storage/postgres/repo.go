package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nterah/QualiPro/internal/storage"
)

/*
Repo implements storage.Backend for Postgres.

It provides:
  - Schema metadata from information_schema (base tables only)
  - Parametrized equality fetches with sanitized identifiers
  - The JSON section store, with read-merge-write cycles serialized per
    (project_code, section_number) using SELECT ... FOR UPDATE
*/
type Repo struct {
	pool       *pgxpool.Pool
	sections   storage.TableName
	autoCreate bool
}

// New creates a Postgres-backed Repo.
func New(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
	sections := storage.ParseTableName(cfg.SectionsTable)
	if sections.IsZero() {
		return nil, fmt.Errorf("postgres: sections table is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool, sections: sections, autoCreate: cfg.AutoCreate}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureSchema creates the schema and sections table when auto-create is on.
// This method is idempotent.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if !r.autoCreate {
		return nil
	}
	for _, stmt := range buildCreateSectionsSQL(r.sections) {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure sections table %s: %w", r.sections, err)
		}
	}
	return nil
}

// ListTables returns every base table in schema ordered by name.
// An empty schema means the connection's current_schema().
func (r *Repo) ListTables(ctx context.Context, schema string) ([]storage.TableName, error) {
	rows, err := r.pool.Query(ctx, listTablesSQL, schema)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables %q: %w", schema, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.TableName, error) {
		var t storage.TableName
		err := row.Scan(&t.Schema, &t.Name)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables %q: %w", schema, err)
	}
	return out, nil
}

// Columns returns the ordered columns of table, or an empty slice when the
// table does not exist.
func (r *Repo) Columns(ctx context.Context, table storage.TableName) ([]storage.Column, error) {
	if table.IsZero() {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, columnsSQL, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("postgres: columns %s: %w", table, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Column, error) {
		var c storage.Column
		err := row.Scan(&c.Name, &c.DataType)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: columns %s: %w", table, err)
	}
	return out, nil
}

// SelectEqual returns every row of table where column equals value.
func (r *Repo) SelectEqual(ctx context.Context, table storage.TableName, column string, value any) ([]storage.Row, error) {
	if table.IsZero() || column == "" {
		return nil, fmt.Errorf("postgres: SelectEqual: table and column are required")
	}
	rows, err := r.pool.Query(ctx, buildSelectEqualSQL(table, column), value)
	if err != nil {
		return nil, fmt.Errorf("postgres: select %s.%s: %w", table, column, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan %s: %w", table, err)
	}
	out := make([]storage.Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, storage.Row(m))
	}
	return out, nil
}

// GetSection returns the stored record for (code, number), or nil.
func (r *Repo) GetSection(ctx context.Context, code string, number int) (*storage.SectionRecord, error) {
	q := "SELECT " + sectionColumns + " FROM " + tableIdent(r.sections) +
		" WHERE project_code = $1 AND section_number = $2"
	rec, err := scanSection(r.pool.QueryRow(ctx, q, code, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get section %s/%d: %w", code, number, err)
	}
	return rec, nil
}

// ListSections returns every stored record for code ordered by number.
func (r *Repo) ListSections(ctx context.Context, code string) ([]storage.SectionRecord, error) {
	q := "SELECT " + sectionColumns + " FROM " + tableIdent(r.sections) +
		" WHERE project_code = $1 ORDER BY section_number"
	rows, err := r.pool.Query(ctx, q, code)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sections %s: %w", code, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.SectionRecord, error) {
		rec, err := scanSection(row)
		if err != nil {
			return storage.SectionRecord{}, err
		}
		return *rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list sections %s: %w", code, err)
	}
	return out, nil
}

// InsertMissingSections creates placeholder records with ON CONFLICT DO NOTHING.
func (r *Repo) InsertMissingSections(ctx context.Context, code string, shells []storage.SectionShell) (int, error) {
	if len(shells) == 0 {
		return 0, nil
	}
	q, args := buildInsertShellsSQL(r.sections, code, shells)
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: ensure sections %s: %w", code, err)
	}
	return int(tag.RowsAffected()), nil
}

// UpdateSection performs one transactional read-modify-write cycle.
//
// The record row is created first (ON CONFLICT DO NOTHING) so that the
// subsequent SELECT ... FOR UPDATE always has a row to lock; concurrent
// writers to the same section serialize on that lock.
func (r *Repo) UpdateSection(ctx context.Context, code string, number int, fn func(rec *storage.SectionRecord) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: update section %s/%d: begin: %w", code, number, err)
	}
	defer tx.Rollback(ctx)

	q, args := buildInsertShellsSQL(r.sections, code, []storage.SectionShell{{Number: number}})
	if _, err := tx.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("postgres: update section %s/%d: seed: %w", code, number, err)
	}

	sel := "SELECT " + sectionColumns + " FROM " + tableIdent(r.sections) +
		" WHERE project_code = $1 AND section_number = $2 FOR UPDATE"
	rec, err := scanSection(tx.QueryRow(ctx, sel, code, number))
	if err != nil {
		return fmt.Errorf("postgres: update section %s/%d: lock: %w", code, number, err)
	}

	if err := fn(rec); err != nil {
		if errors.Is(err, storage.ErrNoChange) {
			return nil
		}
		return err
	}

	upd := "UPDATE " + tableIdent(r.sections) + ` SET title = $3, rows_json = $4, columns_json = $5,
 completed = $6, source_table = $7, guessed = $8, last_edited_on = now()
 WHERE project_code = $1 AND section_number = $2`
	if _, err := tx.Exec(ctx, upd, code, number,
		rec.Title, rec.RowsJSON, rec.ColumnsJSON, rec.Completed, rec.SourceTable, rec.Guessed,
	); err != nil {
		return fmt.Errorf("postgres: update section %s/%d: write: %w", code, number, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: update section %s/%d: commit: %w", code, number, err)
	}
	return nil
}

/* ---------- SQL builders ---------- */

const listTablesSQL = `SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
  AND table_type = 'BASE TABLE'
ORDER BY table_name`

const columnsSQL = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
  AND table_name = $2
ORDER BY ordinal_position`

const sectionColumns = "project_code, section_number, title, rows_json, columns_json, completed, source_table, guessed, created_at, last_edited_on"

// pgIdent quotes a single identifier.
func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// tableIdent quotes a possibly schema-qualified table.
func tableIdent(t storage.TableName) string {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}.Sanitize()
	}
	return pgx.Identifier{t.Schema, t.Name}.Sanitize()
}

// buildSelectEqualSQL is pure so identifier quoting can be unit tested.
func buildSelectEqualSQL(table storage.TableName, column string) string {
	return "SELECT * FROM " + tableIdent(table) + " WHERE " + pgIdent(column) + " = $1"
}

// buildInsertShellsSQL builds one multi-row INSERT ... ON CONFLICT DO NOTHING.
func buildInsertShellsSQL(table storage.TableName, code string, shells []storage.SectionShell) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (project_code, section_number, title, rows_json, completed) VALUES ")

	args := make([]any, 0, len(shells)*3)
	p := 1
	for i, s := range shells {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d, $%d, $%d, '[]', FALSE)", p, p+1, p+2)
		args = append(args, code, s.Number, s.Title)
		p += 3
	}
	b.WriteString(" ON CONFLICT (project_code, section_number) DO NOTHING")
	return b.String(), args
}

// buildCreateSectionsSQL returns the DDL statements for the sections table.
func buildCreateSectionsSQL(table storage.TableName) []string {
	var out []string
	if table.Schema != "" {
		out = append(out, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(table.Schema))
	}
	out = append(out, "CREATE TABLE IF NOT EXISTS "+tableIdent(table)+` (
  id BIGSERIAL PRIMARY KEY,
  project_code TEXT NOT NULL,
  section_number INTEGER NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  rows_json TEXT NOT NULL DEFAULT '[]',
  columns_json TEXT NOT NULL DEFAULT '',
  completed BOOLEAN NOT NULL DEFAULT FALSE,
  source_table TEXT NOT NULL DEFAULT '',
  guessed BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_edited_on TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (project_code, section_number)
)`)
	return out
}

func scanSection(row pgx.Row) (*storage.SectionRecord, error) {
	var rec storage.SectionRecord
	if err := row.Scan(
		&rec.ProjectCode, &rec.SectionNumber, &rec.Title, &rec.RowsJSON, &rec.ColumnsJSON,
		&rec.Completed, &rec.SourceTable, &rec.Guessed, &rec.CreatedAt, &rec.LastEditedOn,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ storage.Backend = (*Repo)(nil)
