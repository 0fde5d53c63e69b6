// Package registry resolves a project code to the numeric surrogate key
// held in the project registry table.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/Nterah/QualiPro/internal/storage"
)

// Config names the registry table and its columns.
type Config struct {
	Table      storage.TableName
	CodeColumn string
	KeyColumn  string
}

// ColumnSource returns a table's introspected columns (catalog.Catalog).
type ColumnSource interface {
	Columns(ctx context.Context, table storage.TableName) []storage.Column
}

// Lookup memoizes successful lookups and definite misses for its lifetime.
// Errors are never memoized.
type Lookup struct {
	// Columns, when set, checks the configured table and columns against
	// the live schema before any query is built from them.
	Columns ColumnSource

	q   storage.Querier
	cfg Config

	mu   sync.Mutex
	memo map[string]entry
}

type entry struct {
	key   int64
	found bool
}

// New returns a Lookup over q. Empty column names default to
// "project_code" and "id".
func New(q storage.Querier, cfg Config) *Lookup {
	if cfg.CodeColumn == "" {
		cfg.CodeColumn = "project_code"
	}
	if cfg.KeyColumn == "" {
		cfg.KeyColumn = "id"
	}
	return &Lookup{q: q, cfg: cfg, memo: map[string]entry{}}
}

// Table returns the registry table name.
func (l *Lookup) Table() storage.TableName { return l.cfg.Table }

// ResolveNumericKey returns the registry key for code. found is false when
// the registry has no row for code or its key is not an integer. When
// several rows match, the first one wins.
func (l *Lookup) ResolveNumericKey(ctx context.Context, code string) (key int64, found bool, err error) {
	if code == "" || l.cfg.Table.IsZero() {
		return 0, false, nil
	}

	l.mu.Lock()
	e, ok := l.memo[code]
	l.mu.Unlock()
	if ok {
		return e.key, e.found, nil
	}

	codeCol, keyCol, err := l.columns(ctx)
	if err != nil {
		return 0, false, err
	}
	rows, err := l.q.SelectEqual(ctx, l.cfg.Table, codeCol, code)
	if err != nil {
		return 0, false, fmt.Errorf("registry: resolve %q: %w", code, err)
	}

	e = entry{}
	for _, r := range rows {
		n, perr := strconv.ParseInt(storage.NormalizeKey(r[keyCol]), 10, 64)
		if perr != nil {
			continue
		}
		e = entry{key: n, found: true}
		break
	}

	l.mu.Lock()
	l.memo[code] = e
	l.mu.Unlock()
	return e.key, e.found, nil
}

// columns returns the code and key column names as discovered in the
// schema, or the configured names when no ColumnSource is set.
func (l *Lookup) columns(ctx context.Context) (string, string, error) {
	if l.Columns == nil {
		return l.cfg.CodeColumn, l.cfg.KeyColumn, nil
	}
	cols := l.Columns.Columns(ctx, l.cfg.Table)
	code, okCode := storage.FindColumn(cols, l.cfg.CodeColumn)
	key, okKey := storage.FindColumn(cols, l.cfg.KeyColumn)
	if !okCode || !okKey {
		return "", "", fmt.Errorf("registry: %s needs columns %s and %s: %w",
			l.cfg.Table, l.cfg.CodeColumn, l.cfg.KeyColumn, storage.ErrSchemaMismatch)
	}
	return code.Name, key.Name, nil
}
