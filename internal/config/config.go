// Package config loads the PQP service configuration: a JSON file with
// ${VAR} expansion, defaults, and PQP_* environment overrides.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Nterah/QualiPro/internal/fetch"
	"github.com/Nterah/QualiPro/internal/registry"
	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/storage"
)

type Config struct {
	Job      string   `json:"job"`
	Storage  Storage  `json:"storage"`
	Resolve  Resolve  `json:"resolve"`
	Fetch    Fetch    `json:"fetch"`
	Registry Registry `json:"registry"`
	Hydrate  Hydrate  `json:"hydrate"`

	// Tables overrides configured tables by part key ("41": "pqp.planning").
	// An empty value removes the mapping so the part is always guessed.
	Tables map[string]string `json:"tables,omitempty"`
}

type Storage struct {
	// Backend kind: "postgres" | "mssql" | "sqlite"
	Kind          string `json:"kind"`
	DSN           string `json:"dsn"`
	SectionsTable string `json:"sections_table"`
	AutoCreate    bool   `json:"auto_create"`
}

type Resolve struct {
	// Schema enumerated for table guesses; "" uses the backend default.
	Schema        string   `json:"schema"`
	ExcludeTables []string `json:"exclude_tables,omitempty"`
	// DisableGuessCache forces a scan on every empty lookup.
	DisableGuessCache bool `json:"disable_guess_cache"`
}

type Fetch struct {
	CodeColumns       []string `json:"code_columns,omitempty"`
	ForeignKeyColumns []string `json:"foreign_key_columns,omitempty"`
}

type Registry struct {
	Table      string `json:"table"`
	CodeColumn string `json:"code_column"`
	KeyColumn  string `json:"key_column"`
}

type Hydrate struct {
	Parallelism int `json:"parallelism"`
	// Persist writes physically sourced rows back to the section store on
	// first read. Nil means true.
	Persist *bool `json:"persist,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Job: "pqp",
		Storage: Storage{
			Kind:          "postgres",
			SectionsTable: "pqp.pqp_sections",
		},
		Resolve:  Resolve{Schema: "pqp"},
		Registry: Registry{Table: "pqp.project", CodeColumn: "project_code", KeyColumn: "id"},
		Hydrate:  Hydrate{Parallelism: 4},
	}
}

// Load reads path (when non-empty) over the defaults, expands ${VAR}
// references in the DSN, then applies environment overrides.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := Decode(raw, &c); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	c.ApplyEnv(os.Getenv)
	return c, nil
}

// Decode decodes raw into c and expands environment references in the
// storage DSN. Unknown fields are rejected.
func Decode(raw []byte, c *Config) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	c.Storage.DSN = os.ExpandEnv(c.Storage.DSN)
	return nil
}

// ApplyEnv overrides fields from PQP_STORAGE_KIND, PQP_DSN and PQP_SCHEMA.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("PQP_STORAGE_KIND")); v != "" {
		c.Storage.Kind = v
	}
	if v := strings.TrimSpace(getenv("PQP_DSN")); v != "" {
		c.Storage.DSN = v
	}
	if v, ok := lookup(getenv, "PQP_SCHEMA"); ok {
		c.Resolve.Schema = v
	}
}

func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	return strings.TrimSpace(v), v != ""
}

// PersistEnabled reports the effective hydrate persist setting.
func (c Config) PersistEnabled() bool { return c.Hydrate.Persist == nil || *c.Hydrate.Persist }

// StorageConfig maps the storage block to storage.Config.
func (c Config) StorageConfig() storage.Config {
	return storage.Config{
		Kind:          c.Storage.Kind,
		DSN:           c.Storage.DSN,
		SectionsTable: c.Storage.SectionsTable,
		AutoCreate:    c.Storage.AutoCreate,
	}
}

// RegistryConfig maps the registry block to registry.Config.
func (c Config) RegistryConfig() registry.Config {
	return registry.Config{
		Table:      storage.ParseTableName(c.Registry.Table),
		CodeColumn: c.Registry.CodeColumn,
		KeyColumn:  c.Registry.KeyColumn,
	}
}

// FetchOptions maps the fetch block to fetch.Options.
func (c Config) FetchOptions() fetch.Options {
	return fetch.Options{CodeColumns: c.Fetch.CodeColumns, ForeignKeyColumns: c.Fetch.ForeignKeyColumns}
}

// ExcludedTables lists tables that are never guess candidates: the
// section store, the registry and resolve.exclude_tables.
func (c Config) ExcludedTables() []storage.TableName {
	var out []storage.TableName
	for _, n := range append([]string{c.Storage.SectionsTable, c.Registry.Table}, c.Resolve.ExcludeTables...) {
		if t := storage.ParseTableName(n); !t.IsZero() {
			out = append(out, t)
		}
	}
	return out
}

// Catalogue returns the section catalogue with table overrides applied.
func (c Config) Catalogue() []sections.Section {
	all := sections.All()
	if len(c.Tables) == 0 {
		return all
	}
	for i := range all {
		for j := range all[i].Parts {
			p := &all[i].Parts[j]
			if t, ok := c.Tables[p.Key]; ok {
				p.Table = strings.TrimSpace(t)
			}
		}
	}
	return all
}
