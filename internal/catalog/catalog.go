// Package catalog caches runtime schema introspection: table lists and
// ordered column descriptors, discovered through a storage.SchemaProvider.
//
// The cache lives for the process (or for as long as the Catalog value is
// kept) and is cleared explicitly with Invalidate. Lookups never fail: a
// missing table or a metadata error yields an empty result so a single bad
// section cannot fail a whole request.
package catalog

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Nterah/QualiPro/internal/storage"
)

// Logger is the minimal logging interface used by the catalog.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Catalog is safe for concurrent use.
type Catalog struct {
	provider storage.SchemaProvider
	logf     func(format string, v ...any)

	mu      sync.RWMutex
	columns map[string][]storage.Column
	tables  map[string][]storage.TableName
}

// New wraps provider. logger may be nil.
func New(provider storage.SchemaProvider, logger Logger) *Catalog {
	logf := log.New(io.Discard, "", 0).Printf
	if logger != nil {
		logf = logger.Printf
	}
	return &Catalog{
		provider: provider,
		logf:     logf,
		columns:  map[string][]storage.Column{},
		tables:   map[string][]storage.TableName{},
	}
}

func cacheKey(s string) string { return strings.ToLower(s) }

// Columns returns the ordered columns of table. Unknown tables and
// provider errors both yield nil; errors are logged and not cached.
func (c *Catalog) Columns(ctx context.Context, table storage.TableName) []storage.Column {
	if table.IsZero() {
		return nil
	}
	key := cacheKey(table.String())

	c.mu.RLock()
	cols, ok := c.columns[key]
	c.mu.RUnlock()
	if ok {
		return cols
	}

	cols, err := c.provider.Columns(ctx, table)
	if err != nil {
		c.logf("warn stage=catalog table=%s err=%v", table, err)
		return nil
	}

	c.mu.Lock()
	c.columns[key] = cols
	c.mu.Unlock()
	return cols
}

// ColumnNames returns just the column names of table, in order.
func (c *Catalog) ColumnNames(ctx context.Context, table storage.TableName) []string {
	cols := c.Columns(ctx, table)
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		out = append(out, col.Name)
	}
	return out
}

// Exists reports whether table has at least one column.
func (c *Catalog) Exists(ctx context.Context, table storage.TableName) bool {
	return len(c.Columns(ctx, table)) > 0
}

// Tables lists the base tables of schema, in lexical order.
func (c *Catalog) Tables(ctx context.Context, schema string) []storage.TableName {
	key := cacheKey(schema)

	c.mu.RLock()
	ts, ok := c.tables[key]
	c.mu.RUnlock()
	if ok {
		return ts
	}

	ts, err := c.provider.ListTables(ctx, schema)
	if err != nil {
		c.logf("warn stage=catalog schema=%s err=%v", schema, err)
		return nil
	}

	c.mu.Lock()
	c.tables[key] = ts
	c.mu.Unlock()
	return ts
}

// PrettyColumns returns the display names of table's columns.
// See Pretty.
func (c *Catalog) PrettyColumns(ctx context.Context, table storage.TableName) []string {
	return Pretty(c.ColumnNames(ctx, table))
}

// Invalidate drops every cached table list and column list.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.columns = map[string][]storage.Column{}
	c.tables = map[string][]storage.TableName{}
}

// InvalidateTable drops the cached columns of one table.
func (c *Catalog) InvalidateTable(table storage.TableName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.columns, cacheKey(table.String()))
}

// Pretty converts snake_case names to Title Case ("date_val" -> "Date Val").
// An "id" column (any case) is emitted first, as the literal "id"; the rest
// keep their order.
func Pretty(names []string) []string {
	title := cases.Title(language.English)

	out := make([]string, 0, len(names))
	hasID := false
	for _, n := range names {
		if strings.EqualFold(n, "id") {
			hasID = true
			continue
		}
		words := strings.Fields(strings.ReplaceAll(n, "_", " "))
		out = append(out, title.String(strings.Join(words, " ")))
	}
	if hasID {
		out = append([]string{"id"}, out...)
	}
	return out
}
