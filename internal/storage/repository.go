package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a Backend.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - SectionsTable is the qualified name of the JSON section store table
//     (for example "pqp.pqp_sections").
type Config struct {
	Kind          string
	DSN           string
	SectionsTable string

	// AutoCreate makes EnsureSchema create the sections table if missing.
	AutoCreate bool
}

// SchemaProvider is the schema metadata contract backing the column catalog
// and the table resolver's candidate enumeration.
type SchemaProvider interface {
	// ListTables returns the base tables of schema, qualified, in lexical order.
	ListTables(ctx context.Context, schema string) ([]TableName, error)

	// Columns returns the ordered columns of table. A table that does not
	// exist yields an empty slice and a nil error.
	Columns(ctx context.Context, table TableName) ([]Column, error)
}

// Querier is the raw query executor.
//
// Implementations bind value as a parameter and quote table and column as
// identifiers. Callers must only pass identifiers discovered through a
// SchemaProvider.
type Querier interface {
	// SelectEqual runs SELECT * FROM table WHERE column = value.
	SelectEqual(ctx context.Context, table TableName, column string, value any) ([]Row, error)
}

// SectionRepository persists JSON section records keyed by
// (project_code, section_number).
type SectionRepository interface {
	// GetSection returns the stored record or (nil, nil) when absent.
	GetSection(ctx context.Context, code string, number int) (*SectionRecord, error)

	// ListSections returns every stored record for code ordered by section number.
	ListSections(ctx context.Context, code string) ([]SectionRecord, error)

	// InsertMissingSections creates placeholder records for each shell whose
	// (code, number) is not yet stored. Existing records are left untouched.
	InsertMissingSections(ctx context.Context, code string, shells []SectionShell) (int, error)

	// UpdateSection runs a read-modify-write cycle in a single transaction.
	// fn receives the current record (created empty if missing) and mutates it
	// in place. Returning ErrNoChange from fn commits nothing.
	UpdateSection(ctx context.Context, code string, number int, fn func(rec *SectionRecord) error) error
}

// Backend is everything the PQP core needs from one database.
type Backend interface {
	SchemaProvider
	Querier
	SectionRepository

	// EnsureSchema creates the sections table when Config.AutoCreate is set.
	EnsureSchema(ctx context.Context) error

	// Close releases backend resources. Call once at shutdown.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f func(ctx context.Context, cfg Config) (Backend, error)) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Backend using the registered factory for cfg.Kind.
//
// Concurrency:
//   - Safe for concurrent use with Register.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds in lexical order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
