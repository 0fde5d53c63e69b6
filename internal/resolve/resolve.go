// Package resolve picks the physical table that holds a part's rows for a
// project: the configured table when it yields rows, otherwise the best
// keyword-scored guess among the tables of the target schema.
package resolve

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/Nterah/QualiPro/internal/fetch"
	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/storage"
)

// Source says how a resolution was reached.
type Source string

const (
	SourceConfigured Source = "configured"
	SourceCached     Source = "cached"
	SourceGuessed    Source = "guessed"
	SourceNone       Source = "none"
)

// TableLister enumerates base tables (catalog.Catalog).
type TableLister interface {
	Tables(ctx context.Context, schema string) []storage.TableName
}

// RowFetcher loads one project's rows from one table (fetch.Fetcher).
type RowFetcher interface {
	Fetch(ctx context.Context, table storage.TableName, code string) fetch.Result
}

// Logger is the minimal logging interface used by the resolver.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Resolver is safe for concurrent use when its collaborators are.
type Resolver struct {
	Tables  TableLister
	Fetcher RowFetcher
	// Schema is the schema enumerated for guesses ("" means the backend
	// default).
	Schema string
	// Cache is optional.
	Cache GuessCache
	// Parts is the catalogue whose configured tables are never guessed for
	// another part. Nil means sections.Parts().
	Parts []sections.Part
	// Exclude lists further tables that are never guess candidates (the
	// section store, the project registry).
	Exclude []storage.TableName
	Logger  Logger
}

// Resolution is the outcome for one part and one project.
type Resolution struct {
	Part    string
	Table   storage.TableName
	Source  Source
	Guessed bool
	// Result is the fetch from Table; empty when Source is SourceNone.
	Result fetch.Result
	// Candidates holds the scored guess candidates when a scan ran.
	Candidates []Candidate
}

// Hydrated reports whether the resolution produced rows.
func (r Resolution) Hydrated() bool { return len(r.Result.Rows) > 0 }

func (r *Resolver) logf(format string, v ...any) {
	if r.Logger == nil {
		log.New(io.Discard, "", 0).Printf(format, v...)
		return
	}
	r.Logger.Printf(format, v...)
}

// Resolve tries, in order: the configured table, the cached guess tier,
// then a fresh keyword scan. The cache holds only the tier's tables, so the
// row-count tie-break always runs for the current code. Only the highest score tier is considered; among its
// tables the one with the most rows for code wins, then the lexically first
// name. When no table in that tier has rows the part is unhydrated.
func (r *Resolver) Resolve(ctx context.Context, p sections.Part, code string) Resolution {
	out := Resolution{Part: p.Key, Source: SourceNone}

	configured := storage.ParseTableName(p.Table)
	if !configured.IsZero() {
		res := r.Fetcher.Fetch(ctx, configured, code)
		if len(res.Rows) > 0 {
			out.Table, out.Source, out.Result = configured, SourceConfigured, res
			return out
		}
		out.Table, out.Result = configured, res
	}

	if r.Cache != nil {
		if tier, ok := r.Cache.Get(p.Key); ok {
			cands, results := r.countRows(ctx, tier, code)
			if len(cands) > 0 && cands[0].Rows > 0 {
				win := cands[0]
				out.Table, out.Source, out.Guessed, out.Candidates = win.Table, SourceCached, true, cands
				out.Result = results[strings.ToLower(win.Table.String())]
				return out
			}
		}
	}

	cands, results := r.scan(ctx, p, code)
	out.Candidates = cands
	if r.Cache != nil && len(cands) > 0 {
		r.Cache.Put(p.Key, cands)
	}
	if len(cands) == 0 || cands[0].Rows <= 0 {
		r.logf("info stage=resolve part=%s code=%q result=unhydrated candidates=%d", p.Key, code, len(cands))
		return out
	}

	win := cands[0]
	out.Table, out.Source, out.Guessed = win.Table, SourceGuessed, true
	out.Result = results[strings.ToLower(win.Table.String())]
	r.logf("info stage=resolve part=%s code=%q guessed=%s score=%d rows=%d", p.Key, code, win.Table, win.Score, win.Rows)
	return out
}

// scan scores every eligible table and counts rows in the top tier.
func (r *Resolver) scan(ctx context.Context, p sections.Part, code string) ([]Candidate, map[string]fetch.Result) {
	if r.Tables == nil {
		return nil, nil
	}
	keywords := Keywords(p)
	excluded := r.excluded(p)

	var tier []Candidate
	top := 0
	for _, t := range r.Tables.Tables(ctx, r.Schema) {
		if excluded(t) {
			continue
		}
		s := Score(t, keywords)
		switch {
		case s < 1 || s < top:
			continue
		case s > top:
			top, tier = s, tier[:0]
		}
		tier = append(tier, Candidate{Table: t, Score: s, Rows: -1})
	}
	return r.countRows(ctx, tier, code)
}

// countRows fetches code's rows from every table of tier and returns a ranked
// copy of the tier, plus the fetch results keyed by lower-cased table name.
func (r *Resolver) countRows(ctx context.Context, tier []Candidate, code string) ([]Candidate, map[string]fetch.Result) {
	out := make([]Candidate, len(tier))
	results := make(map[string]fetch.Result, len(tier))
	for i, c := range tier {
		res := r.Fetcher.Fetch(ctx, c.Table, code)
		c.Rows = len(res.Rows)
		out[i] = c
		results[strings.ToLower(c.Table.String())] = res
	}
	Rank(out)
	return out, results
}

// excluded returns a predicate for tables that may not be guessed for p:
// explicit exclusions and every other part's configured table.
func (r *Resolver) excluded(p sections.Part) func(storage.TableName) bool {
	parts := r.Parts
	if parts == nil {
		parts = sections.Parts()
	}
	var deny []storage.TableName
	deny = append(deny, r.Exclude...)
	for _, other := range parts {
		if other.Key == p.Key || other.Table == "" {
			continue
		}
		deny = append(deny, storage.ParseTableName(other.Table))
	}
	own := storage.ParseTableName(p.Table)
	return func(t storage.TableName) bool {
		if !own.IsZero() && sameTable(t, own) {
			return true
		}
		for _, d := range deny {
			if sameTable(t, d) {
				return true
			}
		}
		return false
	}
}

// sameTable compares names, and schemas only when both sides carry one.
func sameTable(a, b storage.TableName) bool {
	if !strings.EqualFold(a.Name, b.Name) {
		return false
	}
	return a.Schema == "" || b.Schema == "" || strings.EqualFold(a.Schema, b.Schema)
}
