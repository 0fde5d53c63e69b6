// Types shared by the PQP core and every backend live here so backend
// packages can import them without circular deps.
package storage

import (
	"errors"
	"strings"
	"time"
)

// Errors describing why a section could not be filled. The core absorbs
// them (sections degrade to empty shells); they surface in logs, debug
// output and tests.
var (
	// ErrNotConfigured means no static table mapping and no guess candidate
	// produced data for a section.
	ErrNotConfigured = errors.New("section not configured")

	// ErrSchemaMismatch means an expected column is absent on a table.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrQueryFailure wraps a database error raised by a speculative fetch.
	ErrQueryFailure = errors.New("query failure")

	// ErrNoChange aborts an UpdateSection cycle without writing.
	ErrNoChange = errors.New("no change")
)

// TableName is a schema-qualified table reference.
type TableName struct {
	Schema string
	Name   string
}

// ParseTableName splits "schema.table". A name without a dot has an empty
// schema; names with more than one dot are kept whole as the table name.
func ParseTableName(name string) TableName {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return TableName{Name: name}
	}
	return TableName{Schema: strings.TrimSpace(parts[0]), Name: strings.TrimSpace(parts[1])}
}

// String returns "schema.table", or just "table" when the schema is empty.
func (t TableName) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// IsZero reports whether no table is named.
func (t TableName) IsZero() bool { return t.Name == "" }

// Equal compares two names case-insensitively.
func (t TableName) Equal(o TableName) bool {
	return strings.EqualFold(t.Schema, o.Schema) && strings.EqualFold(t.Name, o.Name)
}

// ColumnKind is the coarse type class of a column.
type ColumnKind int

const (
	KindOther ColumnKind = iota
	KindText
	KindInteger
	KindNumeric
	KindBool
	KindTime
	KindJSON
)

func (k ColumnKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindNumeric:
		return "numeric"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindJSON:
		return "json"
	default:
		return "other"
	}
}

// Column is one introspected column.
type Column struct {
	Name     string
	DataType string
}

// Kind classifies the column's database type.
func (c Column) Kind() ColumnKind { return ClassifyType(c.DataType) }

// IsText reports whether the column holds character data.
func (c Column) IsText() bool { return c.Kind() == KindText }

// IsInteger reports whether the column holds whole numbers.
func (c Column) IsInteger() bool { return c.Kind() == KindInteger }

// ClassifyType maps a database type name (Postgres, SQLite or SQL Server
// spelling) to a ColumnKind. Length and precision suffixes are ignored.
func ClassifyType(sqlType string) ColumnKind {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSuffix(t, " unsigned")

	switch t {
	case "int", "integer", "bigint", "smallint", "tinyint", "mediumint",
		"int2", "int4", "int8", "serial", "bigserial", "smallserial":
		return KindInteger
	case "real", "float", "float4", "float8", "double", "double precision",
		"numeric", "decimal", "money", "smallmoney":
		return KindNumeric
	case "bool", "boolean", "bit":
		return KindBool
	case "json", "jsonb":
		return KindJSON
	case "uuid", "uniqueidentifier", "citext", "text", "ntext", "clob", "name":
		return KindText
	}
	switch {
	case strings.Contains(t, "char"), strings.Contains(t, "text"):
		return KindText
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "date"), strings.HasPrefix(t, "time"):
		return KindTime
	}
	return KindOther
}

// FindColumn returns the column named name (case-insensitive).
func FindColumn(cols []Column, name string) (Column, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Row is a raw row: native column name to driver value.
type Row map[string]any

// SectionShell describes a placeholder record to create.
type SectionShell struct {
	Number int
	Title  string
}

// SectionRecord is one persisted JSON section record.
//
// RowsJSON is the serialized row list exactly as stored; ColumnsJSON holds
// the optional display column list. SourceTable and Guessed record where
// hydrated rows came from.
type SectionRecord struct {
	ProjectCode   string
	SectionNumber int
	Title         string
	RowsJSON      string
	ColumnsJSON   string
	Completed     bool
	SourceTable   string
	Guessed       bool
	CreatedAt     time.Time
	LastEditedOn  time.Time
}
