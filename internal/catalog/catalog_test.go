package catalog

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/Nterah/QualiPro/internal/storage"
)

type fakeProvider struct {
	mu         sync.Mutex
	tables     map[string][]storage.TableName
	columns    map[string][]storage.Column
	colErr     error
	colCalls   int
	tableCalls int
}

func (f *fakeProvider) ListTables(ctx context.Context, schema string) ([]storage.TableName, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableCalls++
	return f.tables[schema], nil
}

func (f *fakeProvider) Columns(ctx context.Context, table storage.TableName) ([]storage.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.colCalls++
	if f.colErr != nil {
		return nil, f.colErr
	}
	return f.columns[table.String()], nil
}

func TestColumns_CachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{columns: map[string][]storage.Column{
		"pqp.section41": {{Name: "project_code", DataType: "text"}, {Name: "design_criteria", DataType: "text"}},
	}}
	c := New(p, nil)
	tbl := storage.ParseTableName("pqp.section41")

	for i := 0; i < 3; i++ {
		if got := c.ColumnNames(context.Background(), tbl); !reflect.DeepEqual(got, []string{"project_code", "design_criteria"}) {
			t.Fatalf("ColumnNames=%v", got)
		}
	}
	if p.colCalls != 1 {
		t.Fatalf("expected 1 provider call, got %d", p.colCalls)
	}

	c.InvalidateTable(tbl)
	c.Columns(context.Background(), tbl)
	c.Invalidate()
	c.Columns(context.Background(), tbl)
	if p.colCalls != 3 {
		t.Fatalf("expected 3 provider calls after invalidation, got %d", p.colCalls)
	}
}

func TestColumns_MissingTableAndErrorsAreEmpty(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	c := New(p, nil)
	if cols := c.Columns(context.Background(), storage.ParseTableName("pqp.nope")); len(cols) != 0 {
		t.Fatalf("expected empty columns, got %v", cols)
	}
	if c.Exists(context.Background(), storage.ParseTableName("pqp.nope")) {
		t.Fatalf("missing table reported as existing")
	}
	if cols := c.Columns(context.Background(), storage.TableName{}); cols != nil {
		t.Fatalf("zero table should yield nil")
	}

	p.colErr = errors.New("permission denied")
	c2 := New(p, nil)
	tbl := storage.ParseTableName("pqp.section2")
	if cols := c2.Columns(context.Background(), tbl); cols != nil {
		t.Fatalf("expected nil on provider error, got %v", cols)
	}
	before := p.colCalls
	c2.Columns(context.Background(), tbl)
	if p.colCalls != before+1 {
		t.Fatalf("errors must not be cached")
	}
}

func TestTables_Cached(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{tables: map[string][]storage.TableName{
		"pqp": {{Schema: "pqp", Name: "section1"}, {Schema: "pqp", Name: "section2"}},
	}}
	c := New(p, nil)
	c.Tables(context.Background(), "pqp")
	got := c.Tables(context.Background(), "PQP")
	if len(got) != 2 || p.tableCalls != 1 {
		t.Fatalf("Tables=%v calls=%d", got, p.tableCalls)
	}
}

func TestPretty(t *testing.T) {
	t.Parallel()

	got := Pretty([]string{"item", "in_place", "ID", "date_val", "filing__location"})
	want := []string{"id", "Item", "In Place", "Date Val", "Filing Location"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Pretty=%v, want %v", got, want)
	}
	if got := Pretty(nil); len(got) != 0 {
		t.Fatalf("Pretty(nil)=%v", got)
	}
}

func TestPrettyColumns(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{columns: map[string][]storage.Column{
		"pqp.section31": {{Name: "item"}, {Name: "id"}, {Name: "notes"}},
	}}
	c := New(p, nil)
	got := c.PrettyColumns(context.Background(), storage.ParseTableName("pqp.section31"))
	if !reflect.DeepEqual(got, []string{"id", "Item", "Notes"}) {
		t.Fatalf("PrettyColumns=%v", got)
	}
}
