package config

import (
	"fmt"
	"strings"

	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/storage"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a dotted JSON path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks c. Storage kinds are checked against the registered
// backends when any are registered.
func Validate(c Config) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	kind := strings.TrimSpace(c.Storage.Kind)
	switch {
	case kind == "":
		add(SeverityError, "storage.kind", "is required")
	default:
		if kinds := storage.Kinds(); len(kinds) > 0 && !containsFold(kinds, kind) {
			add(SeverityError, "storage.kind", "unknown backend %q (registered: %s)", kind, strings.Join(kinds, ", "))
		}
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		add(SeverityError, "storage.dsn", "is required (or set PQP_DSN)")
	}
	checkTable(add, "storage.sections_table", c.Storage.SectionsTable, true)
	checkTable(add, "registry.table", c.Registry.Table, false)
	if strings.TrimSpace(c.Registry.Table) == "" {
		add(SeverityWarning, "registry.table", "not set; foreign-key fetch strategies will return no rows")
	}
	for i, t := range c.Resolve.ExcludeTables {
		checkTable(add, fmt.Sprintf("resolve.exclude_tables[%d]", i), t, true)
	}
	if c.Resolve.Schema == "" {
		add(SeverityWarning, "resolve.schema", "empty; guesses enumerate the backend default schema")
	}

	for key, t := range c.Tables {
		path := "tables." + key
		if _, ok := sections.LookupPart(key); !ok {
			add(SeverityError, path, "unknown section key %q", key)
			continue
		}
		if strings.TrimSpace(t) != "" {
			checkTable(add, path, t, false)
		}
	}

	switch p := c.Hydrate.Parallelism; {
	case p < 0:
		add(SeverityError, "hydrate.parallelism", "must be >= 0, got %d", p)
	case p > 32:
		add(SeverityWarning, "hydrate.parallelism", "%d concurrent loads may exhaust the connection pool", p)
	}
	return out
}

func checkTable(add func(Severity, string, string, ...any), path, name string, required bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		if required {
			add(SeverityError, path, "is required")
		}
		return
	}
	if strings.Count(name, ".") > 1 {
		add(SeverityError, path, "%q: expected table or schema.table", name)
		return
	}
	if t := storage.ParseTableName(name); t.Name == "" {
		add(SeverityError, path, "%q: empty table name", name)
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
