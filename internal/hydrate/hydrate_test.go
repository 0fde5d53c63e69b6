package hydrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Nterah/QualiPro/internal/fetch"
	"github.com/Nterah/QualiPro/internal/resolve"
	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/sectionstore"
	"github.com/Nterah/QualiPro/internal/storage"
)

// memRepo is an in-memory storage.SectionRepository.
type memRepo struct {
	mu      sync.Mutex
	records map[string]storage.SectionRecord
}

func newMemRepo() *memRepo { return &memRepo{records: map[string]storage.SectionRecord{}} }

func rkey(code string, n int) string { return fmt.Sprintf("%s/%d", code, n) }

func (m *memRepo) GetSection(_ context.Context, code string, n int) (*storage.SectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[rkey(code, n)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memRepo) ListSections(context.Context, string) ([]storage.SectionRecord, error) {
	return nil, errors.New("not used")
}

func (m *memRepo) InsertMissingSections(_ context.Context, code string, shells []storage.SectionShell) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range shells {
		if _, ok := m.records[rkey(code, s.Number)]; ok {
			continue
		}
		m.records[rkey(code, s.Number)] = storage.SectionRecord{ProjectCode: code, SectionNumber: s.Number, Title: s.Title, RowsJSON: "[]"}
		n++
	}
	return n, nil
}

func (m *memRepo) UpdateSection(_ context.Context, code string, n int, fn func(*storage.SectionRecord) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[rkey(code, n)]
	if !ok {
		rec = storage.SectionRecord{ProjectCode: code, SectionNumber: n, RowsJSON: "[]"}
	}
	if err := fn(&rec); err != nil {
		if errors.Is(err, storage.ErrNoChange) {
			return nil
		}
		return err
	}
	m.records[rkey(code, n)] = rec
	return nil
}

// fakeResolver serves fixed resolutions per part key and counts calls.
type fakeResolver struct {
	byPart map[string]resolve.Resolution
	calls  atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, p sections.Part, _ string) resolve.Resolution {
	f.calls.Add(1)
	if r, ok := f.byPart[p.Key]; ok {
		return r
	}
	return resolve.Resolution{Part: p.Key, Source: resolve.SourceNone}
}

func planningResolution() resolve.Resolution {
	table := storage.TableName{Schema: "pqp", Name: "section41"}
	return resolve.Resolution{
		Part:   "41",
		Table:  table,
		Source: resolve.SourceConfigured,
		Result: fetch.Result{
			Table: table,
			Columns: []storage.Column{
				{Name: "project_code", DataType: "text"},
				{Name: "design_criteria", DataType: "text"},
				{Name: "planning_design_risks", DataType: "text"},
			},
			Rows: []storage.Row{{
				"project_code":          "291RT P700",
				"design_criteria":       "SANS 10160",
				"planning_design_risks": "Flood line",
			}},
		},
	}
}

func TestHydrateEmptySafe(t *testing.T) {
	t.Parallel()

	o := &Orchestrator{Store: sectionstore.New(newMemRepo(), nil), Resolver: &fakeResolver{}, Persist: true, Parallelism: 4}
	form, err := o.Hydrate(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}

	all := sections.All()
	if len(form.Sections) != len(all) {
		t.Fatalf("sections = %d, want %d", len(form.Sections), len(all))
	}
	for i, s := range all {
		view := form.Sections[i]
		if view.Number != s.Number || view.Title != s.Title || view.TotalRows != 0 {
			t.Fatalf("section %d view = %+v", s.Number, view)
		}
		for _, p := range s.Parts {
			snap, ok := form.Part(p.Key)
			if !ok {
				t.Fatalf("part %s missing", p.Key)
			}
			if !reflect.DeepEqual(snap.Columns, p.Labels) {
				t.Fatalf("part %s columns = %v", p.Key, snap.Columns)
			}
			if snap.Rows == nil || len(snap.Rows) != 0 || snap.Meta.Hydrated {
				t.Fatalf("part %s should be an empty shell: %+v", p.Key, snap)
			}
		}
	}

	b, err := json.Marshal(form)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var shape struct {
		Sections []struct {
			Snapshot *struct {
				Rows json.RawMessage `json:"rows"`
			} `json:"snapshot"`
		} `json:"sections"`
	}
	if err := json.Unmarshal(b, &shape); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := string(shape.Sections[0].Snapshot.Rows); got != "[]" {
		t.Fatalf("empty rows should encode as [], got %s", got)
	}
}

func TestHydratePhysicalThenStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemRepo()
	res := &fakeResolver{byPart: map[string]resolve.Resolution{"41": planningResolution()}}
	o := &Orchestrator{Store: sectionstore.New(repo, nil), Resolver: res, Persist: true}

	first, err := o.Hydrate(ctx, "291RT P700")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	snap, _ := first.Part("41")
	if snap.Meta.Source != "configured" || !snap.Meta.Hydrated || snap.Meta.RowCount != 1 {
		t.Fatalf("meta = %+v", snap.Meta)
	}
	row := snap.Rows[0]
	if row["id"] != "291RT P700" || row["Design Criteria/Requirements"] != "SANS 10160" || row["Design Notes"] != "" {
		t.Fatalf("row = %v", row)
	}
	sec4, _ := first.Section(4)
	if sec4.TotalRows != 1 || !reflect.DeepEqual(sec4.PartKeys, []string{"41", "42"}) {
		t.Fatalf("section 4 = %+v", sec4)
	}

	callsAfterFirst := res.calls.Load()
	second, err := o.Hydrate(ctx, "291RT P700")
	if err != nil {
		t.Fatalf("Hydrate 2: %v", err)
	}
	snap2, _ := second.Part("41")
	if snap2.Meta.Source != SourceStore || snap2.Meta.SourceTable != "pqp.section41" {
		t.Fatalf("second pass should read the store: %+v", snap2.Meta)
	}
	if !reflect.DeepEqual(snap2.Rows, snap.Rows) {
		t.Fatalf("stored rows differ: %v vs %v", snap2.Rows, snap.Rows)
	}
	// Every other part is still empty, so only 41 skips the resolver.
	if got := res.calls.Load() - callsAfterFirst; int(got) != len(sections.Parts())-1 {
		t.Fatalf("resolver calls on second pass = %d", got)
	}
}

func TestHydrateStoreNeverFetchesAndIsStable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemRepo()
	store := sectionstore.New(repo, nil)
	for _, p := range sections.Parts() {
		if err := store.Put(ctx, "322IN", p.Number(), []sectionstore.Row{{"id": "r1", "extra_key": "x"}}, nil); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	res := &fakeResolver{}
	o := &Orchestrator{Store: store, Resolver: res, Persist: true, Parallelism: 8}

	a, err := o.Hydrate(ctx, "322IN")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	b, err := o.Hydrate(ctx, "322IN")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if n := res.calls.Load(); n != 0 {
		t.Fatalf("resolver called %d times for a fully stored project", n)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatalf("snapshots differ:\n%s\n%s", ja, jb)
	}
	snap, _ := a.Part("2")
	if _, leaked := snap.Rows[0]["extra_key"]; leaked {
		t.Fatalf("undeclared key leaked into snapshot: %v", snap.Rows[0])
	}
}

func TestHydrateNoPersist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemRepo()
	o := &Orchestrator{
		Store:    sectionstore.New(repo, nil),
		Resolver: &fakeResolver{byPart: map[string]resolve.Resolution{"41": planningResolution()}},
	}
	if _, err := o.Hydrate(ctx, "291RT P700"); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	rec, _ := repo.GetSection(ctx, "291RT P700", 41)
	if rec == nil || rec.RowsJSON != "[]" {
		t.Fatalf("store should hold only the empty shell, got %+v", rec)
	}
}

func TestHydrateCancelledWritesNothing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := newMemRepo()
	o := &Orchestrator{
		Store:    sectionstore.New(repo, nil),
		Resolver: &fakeResolver{byPart: map[string]resolve.Resolution{"41": planningResolution()}},
		Persist:  true,
	}
	if _, err := o.Hydrate(ctx, "291RT P700"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rec, _ := repo.GetSection(context.Background(), "291RT P700", 41); rec != nil && rec.RowsJSON != "[]" {
		t.Fatalf("cancelled pass wrote rows: %+v", rec)
	}
}

func scopeResolution() resolve.Resolution {
	table := storage.TableName{Schema: "pqp", Name: "section9_scope_register"}
	var rows []storage.Row
	for _, item := range []string{"Survey", "Design", "Tender"} {
		rows = append(rows, storage.Row{"project_code": "291RT P700", "scope_item": item})
	}
	return resolve.Resolution{
		Part:    "9",
		Table:   table,
		Source:  resolve.SourceGuessed,
		Guessed: true,
		Result: fetch.Result{
			Table: table,
			Columns: []storage.Column{
				{Name: "project_code", DataType: "text"},
				{Name: "scope_item", DataType: "text"},
			},
			Rows: rows,
		},
	}
}

func TestHydratedRowsEditableByKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := sectionstore.New(newMemRepo(), nil)
	o := &Orchestrator{
		Store:    store,
		Resolver: &fakeResolver{byPart: map[string]resolve.Resolution{"9": scopeResolution()}},
		Persist:  true,
	}
	first, err := o.Hydrate(ctx, "291RT P700")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	snap, _ := first.Part("9")
	if len(snap.Keys) != 3 || snap.Keys[0] == snap.Keys[1] || snap.Keys[1] == snap.Keys[2] {
		t.Fatalf("hydrated rows need distinct keys, got %v", snap.Keys)
	}
	for _, r := range snap.Rows {
		if r["id"] != "291RT P700" {
			t.Fatalf("id label should echo the project code, got %v", r)
		}
	}

	if _, err := store.SaveRow(ctx, "291RT P700", 9, sectionstore.Row{"id": snap.Keys[2], "Scope Item": "Tender (edited)"}); err != nil {
		t.Fatalf("SaveRow: %v", err)
	}
	rows, err := store.Get(ctx, "291RT P700", 9)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var items []string
	for _, r := range rows {
		items = append(items, r["Scope Item"])
	}
	if want := []string{"Survey", "Design", "Tender (edited)"}; !reflect.DeepEqual(items, want) {
		t.Fatalf("stored items = %v, want %v", items, want)
	}

	second, err := o.Hydrate(ctx, "291RT P700")
	if err != nil {
		t.Fatalf("Hydrate 2: %v", err)
	}
	snap2, _ := second.Part("9")
	if !reflect.DeepEqual(snap2.Keys, snap.Keys) || snap2.Rows[2]["Scope Item"] != "Tender (edited)" || snap2.Rows[2]["id"] != "291RT P700" {
		t.Fatalf("second pass = %+v", snap2)
	}
}

func TestHydrateRoutesCompositeSectionRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := sectionstore.New(newMemRepo(), nil)
	imported := []sectionstore.Row{
		{"id": "a", "Design Criteria/Requirements": "SANS 10160", "Design Notes": "rev B"},
		{"id": "b", "Approval Type": "Municipal", "Status/Reference No.": "MA-17"},
	}
	if _, err := store.Merge(ctx, "291RT P700", 4, imported, nil); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	res := &fakeResolver{}
	o := &Orchestrator{Store: store, Resolver: res, Persist: true}

	form, err := o.Hydrate(ctx, "291RT P700")
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	p41, _ := form.Part("41")
	if p41.Meta.Source != SourceStore || p41.Meta.RowCount != 1 || p41.Rows[0]["Design Criteria/Requirements"] != "SANS 10160" {
		t.Fatalf("part 41 = %+v", p41)
	}
	p42, _ := form.Part("42")
	if p42.Meta.Source != SourceStore || p42.Meta.RowCount != 1 || p42.Rows[0]["Approval Type"] != "Municipal" || p42.Keys[0] != "b" {
		t.Fatalf("part 42 = %+v", p42)
	}
	sec4, _ := form.Section(4)
	if sec4.TotalRows != 2 {
		t.Fatalf("section 4 total = %d, want 2", sec4.TotalRows)
	}
	if rec, _ := store.Load(ctx, "291RT P700", 6); rec == nil {
		t.Fatalf("composite section 6 record should be scaffolded")
	}
}
