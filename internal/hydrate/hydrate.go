// Package hydrate assembles a project's full form: for every section and
// sub-section it serves rows from the JSON section store, or resolves,
// fetches and normalizes them from a physical table, and always emits a
// snapshot with the declared columns.
//
// Rows found in a physical table are written back to the store once
// (hydrate-on-first-read). Those writes run after the whole pass has
// completed so a cancelled pass leaves the store untouched.
package hydrate

import (
	"context"
	"io"
	"log"
	"maps"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Nterah/QualiPro/internal/metrics"
	"github.com/Nterah/QualiPro/internal/normalize"
	"github.com/Nterah/QualiPro/internal/resolve"
	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/sectionstore"
	"github.com/Nterah/QualiPro/internal/storage"
)

// SourceStore marks snapshots served from the JSON section store.
const SourceStore = "store"

// SectionStore is the subset of sectionstore.Store the orchestrator uses.
type SectionStore interface {
	EnsureExists(ctx context.Context, code string, shells []storage.SectionShell) (int, error)
	Load(ctx context.Context, code string, number int) (*sectionstore.Section, error)
	PutIfEmpty(ctx context.Context, code string, number int, rows []sectionstore.Row, columns []string, prov sectionstore.Provenance) (bool, error)
	NewID() string
}

// TableResolver resolves and fetches a part's physical rows (resolve.Resolver).
type TableResolver interface {
	Resolve(ctx context.Context, p sections.Part, code string) resolve.Resolution
}

// Logger is the minimal logging interface used by the orchestrator.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Orchestrator is safe for concurrent use when its collaborators are.
type Orchestrator struct {
	Store    SectionStore
	Resolver TableResolver
	// Catalogue defaults to sections.All().
	Catalogue []sections.Section
	// Persist writes physically sourced rows back to an empty store record.
	Persist bool
	// Parallelism bounds concurrent part loads; values below 2 run the
	// parts sequentially.
	Parallelism int
	Logger      Logger
}

// pending is a deferred hydrate-on-first-read write.
type pending struct {
	number  int
	rows    []sectionstore.Row
	columns []string
	prov    sectionstore.Provenance
}

type partResult struct {
	snap  Snapshot
	write *pending
}

func (o *Orchestrator) logf(format string, v ...any) {
	if o.Logger == nil {
		log.New(io.Discard, "", 0).Printf(format, v...)
		return
	}
	o.Logger.Printf(format, v...)
}

// Hydrate returns a snapshot for every declared part of code. Data
// failures never fail the call: they degrade to empty snapshots. The only
// error is the context's.
func (o *Orchestrator) Hydrate(ctx context.Context, code string) (Form, error) {
	start := time.Now()
	runID := uuid.NewString()
	catalogue := o.Catalogue
	if catalogue == nil {
		catalogue = sections.All()
	}

	var parts []sections.Part
	var owners []sections.Section
	var shells []storage.SectionShell
	for _, s := range catalogue {
		if s.Composite() {
			shells = append(shells, storage.SectionShell{Number: s.Number, Title: s.Title})
		}
		for _, p := range s.Parts {
			parts = append(parts, p)
			owners = append(owners, s)
			shells = append(shells, storage.SectionShell{Number: p.Number(), Title: p.Title})
		}
	}

	if o.Store != nil {
		if n, err := o.Store.EnsureExists(ctx, code, shells); err != nil {
			o.logf("warn stage=ensure run=%s code=%q err=%v", runID, code, err)
		} else if n > 0 {
			o.logf("info stage=ensure run=%s code=%q created=%d", runID, code, n)
		}
	}

	results := make([]partResult, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.Parallelism, 1))
	for i, p := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.part(gctx, runID, code, p, owners[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Form{}, err
	}
	if err := ctx.Err(); err != nil {
		return Form{}, err
	}

	if o.Persist && o.Store != nil {
		for _, r := range results {
			if r.write == nil {
				continue
			}
			w := r.write
			if _, err := o.Store.PutIfEmpty(ctx, code, w.number, w.rows, w.columns, w.prov); err != nil {
				o.logf("warn stage=persist run=%s code=%q section=%d err=%v", runID, code, w.number, err)
			}
		}
	}

	form := assemble(code, catalogue, results)
	metrics.ObserveHistogram(metrics.HydrateDurationSeconds, time.Since(start).Seconds(), metrics.Labels{"stage": "form"})
	o.logf("info stage=hydrate run=%s code=%q parts=%d dur=%s", runID, code, len(parts), time.Since(start).Round(time.Millisecond))
	return form, nil
}

// part builds one snapshot: store first, then the physical route. Parts of
// a composite section also receive the rows stored under the section's own
// number that route to them.
func (o *Orchestrator) part(ctx context.Context, runID, code string, p sections.Part, owner sections.Section) partResult {
	start := time.Now()
	defer func() {
		metrics.ObserveHistogram(metrics.HydrateDurationSeconds, time.Since(start).Seconds(), metrics.Labels{"stage": "part"})
	}()

	if o.Store != nil {
		sec, err := o.Store.Load(ctx, code, p.Number())
		if err != nil {
			o.logf("warn stage=store run=%s code=%q part=%s err=%v", runID, code, p.Key, err)
		}
		var rows []sectionstore.Row
		if sec != nil {
			rows = sec.Rows
		}
		if owner.Composite() {
			parent, err := o.Store.Load(ctx, code, owner.Number)
			if err != nil {
				o.logf("warn stage=store run=%s code=%q section=%d err=%v", runID, code, owner.Number, err)
			}
			if parent != nil && len(parent.Rows) > 0 {
				rows = append(rows[:len(rows):len(rows)], routeRows(owner.Parts, parent.Rows)[p.Key]...)
			}
		}
		if len(rows) > 0 {
			return partResult{snap: fromStore(p, code, sec, rows)}
		}
	}

	if o.Resolver == nil {
		metrics.IncCounter(metrics.SectionsTotal, 1, metrics.Labels{"source": string(resolve.SourceNone)})
		return partResult{snap: emptySnapshot(p.Labels, string(resolve.SourceNone))}
	}

	res := o.Resolver.Resolve(ctx, p, code)
	labels := p.Labels
	colNames := columnNames(res.Result.Columns)
	if len(labels) == 0 {
		labels = colNames
	}
	if !res.Hydrated() {
		metrics.IncCounter(metrics.SectionsTotal, 1, metrics.Labels{"source": string(resolve.SourceNone)})
		return partResult{snap: emptySnapshot(labels, string(resolve.SourceNone))}
	}

	spec := normalize.ForPart(p)
	spec.Labels = labels
	records := normalize.New(spec).NormalizeAll(colNames, res.Result.Rows)

	snap := Snapshot{
		Columns: labels,
		Rows:    records,
		Meta: Meta{
			Hydrated:    true,
			SourceTable: res.Table.String(),
			RowCount:    len(records),
			Guessed:     res.Guessed,
			Source:      string(res.Source),
		},
	}
	metrics.IncCounter(metrics.SectionsTotal, 1, metrics.Labels{"source": string(res.Source)})

	if !o.Persist || o.Store == nil {
		return partResult{snap: snap}
	}
	// Stored rows get their own merge keys; the id label keeps echoing code.
	rows := make([]sectionstore.Row, len(records))
	snap.Keys = make([]string, len(records))
	for i, r := range records {
		row := sectionstore.Row(maps.Clone(r))
		row[sectionstore.IDKey] = o.Store.NewID()
		rows[i] = row
		snap.Keys[i] = row.ID()
	}
	return partResult{
		snap: snap,
		write: &pending{
			number:  p.Number(),
			rows:    rows,
			columns: labels,
			prov:    sectionstore.Provenance{SourceTable: res.Table.String(), Guessed: res.Guessed},
		},
	}
}

// fromStore renders stored rows. sec is the part's own record and may be
// nil when every row came from the parent section record.
func fromStore(p sections.Part, code string, sec *sectionstore.Section, rows []sectionstore.Row) Snapshot {
	labels := p.Labels
	if len(labels) == 0 && sec != nil {
		labels = sec.Columns
	}
	records := make([]normalize.Record, len(rows))
	keys := make([]string, len(rows))
	for i, r := range rows {
		rec := normalize.Reshape(labels, r)
		if _, ok := rec[normalize.IDLabel]; ok {
			rec[normalize.IDLabel] = code
		}
		records[i] = rec
		keys[i] = r.ID()
	}
	meta := Meta{Hydrated: true, RowCount: len(records), Source: SourceStore}
	if sec != nil {
		meta.SourceTable, meta.Guessed = sec.SourceTable, sec.Guessed
	}
	metrics.IncCounter(metrics.SectionsTotal, 1, metrics.Labels{"source": SourceStore})
	return Snapshot{Columns: labels, Rows: records, Keys: keys, Meta: meta}
}

func columnNames(cols []storage.Column) []string {
	if len(cols) == 0 {
		return nil
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// assemble groups part snapshots (in catalogue order) into section views.
func assemble(code string, catalogue []sections.Section, results []partResult) Form {
	form := Form{Code: code, Sections: make([]SectionView, 0, len(catalogue))}
	i := 0
	for _, s := range catalogue {
		view := SectionView{Number: s.Number, Title: s.Title}
		if !s.Composite() {
			if len(s.Parts) == 1 {
				snap := results[i].snap
				i++
				view.Snapshot = &snap
				view.PartKeys = []string{s.Parts[0].Key}
				view.TotalRows = snap.Meta.RowCount
			}
			form.Sections = append(form.Sections, view)
			continue
		}
		view.Parts = make(map[string]Snapshot, len(s.Parts))
		for _, p := range s.Parts {
			snap := results[i].snap
			i++
			view.Parts[p.Key] = snap
			view.PartKeys = append(view.PartKeys, p.Key)
			view.TotalRows += snap.Meta.RowCount
		}
		form.Sections = append(form.Sections, view)
	}
	return form
}
