// Package fetch loads the raw rows that belong to one project from one
// physical table, choosing the project-linkage strategy from the table's
// introspected columns.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/Nterah/QualiPro/internal/metrics"
	"github.com/Nterah/QualiPro/internal/storage"
)

// Strategy is a project-linkage strategy. Lower values take priority.
type Strategy int

const (
	// StrategyNone means no linkage column exists; the fetch yields nothing.
	StrategyNone Strategy = iota
	// StrategyProjectCode filters a textual project-code column by the code.
	StrategyProjectCode
	// StrategyTextID filters a textual "id" column by the code.
	StrategyTextID
	// StrategyForeignKey filters an integer project_id-style column by the
	// registry key.
	StrategyForeignKey
	// StrategyNumericID filters an integer "id" column by the registry key.
	StrategyNumericID
)

func (s Strategy) String() string {
	switch s {
	case StrategyProjectCode:
		return "project_code"
	case StrategyTextID:
		return "text_id"
	case StrategyForeignKey:
		return "foreign_key"
	case StrategyNumericID:
		return "numeric_id"
	default:
		return "none"
	}
}

// NeedsRegistry reports whether the strategy filters by the numeric key.
func (s Strategy) NeedsRegistry() bool {
	return s == StrategyForeignKey || s == StrategyNumericID
}

// Plan is the detected strategy and the actual column it filters on.
type Plan struct {
	Strategy Strategy
	Column   string
}

// Options names the linkage columns. Zero values use the defaults.
type Options struct {
	// CodeColumns are candidate names for the textual project-code column.
	// Default: project_code.
	CodeColumns []string
	// ForeignKeyColumns are candidate names for the integer registry key
	// column. Default: project_id, projectid, project_fk.
	ForeignKeyColumns []string
}

func (o Options) withDefaults() Options {
	if len(o.CodeColumns) == 0 {
		o.CodeColumns = []string{"project_code"}
	}
	if len(o.ForeignKeyColumns) == 0 {
		o.ForeignKeyColumns = []string{"project_id", "projectid", "project_fk"}
	}
	return o
}

// textual treats undeclared types (SQLite) as text.
func textual(c storage.Column) bool {
	return c.IsText() || strings.TrimSpace(c.DataType) == ""
}

// DetectStrategy picks the first strategy, in fixed priority order, whose
// column exists with a compatible type. It is pure.
func DetectStrategy(cols []storage.Column, opts Options) Plan {
	opts = opts.withDefaults()

	for _, name := range opts.CodeColumns {
		if c, ok := storage.FindColumn(cols, name); ok && textual(c) {
			return Plan{Strategy: StrategyProjectCode, Column: c.Name}
		}
	}
	id, hasID := storage.FindColumn(cols, "id")
	if hasID && textual(id) {
		return Plan{Strategy: StrategyTextID, Column: id.Name}
	}
	for _, name := range opts.ForeignKeyColumns {
		if c, ok := storage.FindColumn(cols, name); ok && c.IsInteger() {
			return Plan{Strategy: StrategyForeignKey, Column: c.Name}
		}
	}
	if hasID && id.IsInteger() {
		return Plan{Strategy: StrategyNumericID, Column: id.Name}
	}
	return Plan{Strategy: StrategyNone}
}

// ColumnSource supplies introspected columns (catalog.Catalog).
type ColumnSource interface {
	Columns(ctx context.Context, table storage.TableName) []storage.Column
}

// KeyResolver resolves a project code to its registry key (registry.Lookup).
type KeyResolver interface {
	ResolveNumericKey(ctx context.Context, code string) (int64, bool, error)
}

// Logger is the minimal logging interface used by the fetcher.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Fetcher is read-only and safe for concurrent use.
type Fetcher struct {
	Columns  ColumnSource
	Querier  storage.Querier
	Registry KeyResolver // optional; strategies 3 and 4 yield nothing without it
	Options  Options
	Logger   Logger
}

// Result is the outcome of one fetch. Err records an absorbed failure
// (wrapping storage.ErrQueryFailure or storage.ErrSchemaMismatch) for
// diagnostics; Rows is empty whenever Err is set.
type Result struct {
	Table   storage.TableName
	Plan    Plan
	Columns []storage.Column
	Rows    []storage.Row
	Err     error
}

func (f *Fetcher) logf() func(format string, v ...any) {
	if f.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return f.Logger.Printf
}

// Fetch returns every row of table that belongs to code. It never fails:
// missing tables, missing linkage columns, unresolvable registry keys and
// query errors all produce an empty Result.
func (f *Fetcher) Fetch(ctx context.Context, table storage.TableName, code string) Result {
	res := Result{Table: table}
	if table.IsZero() {
		return res
	}

	res.Columns = f.Columns.Columns(ctx, table)
	if len(res.Columns) == 0 {
		res.Err = fmt.Errorf("fetch %s: table has no columns: %w", table, storage.ErrSchemaMismatch)
		return res
	}

	res.Plan = DetectStrategy(res.Columns, f.Options)

	var value any
	switch {
	case res.Plan.Strategy == StrategyNone:
		res.Err = fmt.Errorf("fetch %s: no project linkage column: %w", table, storage.ErrSchemaMismatch)
		return res
	case res.Plan.Strategy.NeedsRegistry():
		if f.Registry == nil {
			return res
		}
		key, found, err := f.Registry.ResolveNumericKey(ctx, code)
		if err != nil {
			f.logf()("warn stage=fetch table=%s strategy=%s registry_err=%v", table, res.Plan.Strategy, err)
			res.Err = fmt.Errorf("fetch %s: %w: %v", table, storage.ErrQueryFailure, err)
			metrics.IncCounter(metrics.FetchErrorsTotal, 1, metrics.Labels{"table": table.String()})
			return res
		}
		if !found {
			return res
		}
		value = key
	default:
		value = code
	}

	rows, err := f.Querier.SelectEqual(ctx, table, res.Plan.Column, value)
	if err != nil {
		f.logf()("warn stage=fetch table=%s strategy=%s err=%v", table, res.Plan.Strategy, err)
		res.Err = fmt.Errorf("fetch %s: %w: %v", table, storage.ErrQueryFailure, err)
		metrics.IncCounter(metrics.FetchErrorsTotal, 1, metrics.Labels{"table": table.String()})
		return res
	}
	res.Rows = rows
	return res
}
