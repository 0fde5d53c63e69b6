package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/Nterah/QualiPro/internal/storage"
)

type fakeColumns map[string][]storage.Column

func (f fakeColumns) Columns(ctx context.Context, table storage.TableName) []storage.Column {
	return f[table.String()]
}

type call struct {
	table  string
	column string
	value  any
}

type fakeQuerier struct {
	calls []call
	rows  []storage.Row
	err   error
}

func (f *fakeQuerier) SelectEqual(ctx context.Context, table storage.TableName, column string, value any) ([]storage.Row, error) {
	f.calls = append(f.calls, call{table: table.String(), column: column, value: value})
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeRegistry struct {
	key   int64
	found bool
	err   error
	calls int
}

func (f *fakeRegistry) ResolveNumericKey(ctx context.Context, code string) (int64, bool, error) {
	f.calls++
	return f.key, f.found, f.err
}

func TestDetectStrategy_PriorityOrder(t *testing.T) {
	t.Parallel()

	text := func(n string) storage.Column { return storage.Column{Name: n, DataType: "text"} }
	integer := func(n string) storage.Column { return storage.Column{Name: n, DataType: "integer"} }

	tests := []struct {
		name string
		cols []storage.Column
		want Plan
	}{
		{
			name: "project_code_beats_project_id",
			cols: []storage.Column{integer("project_id"), text("project_code"), integer("id")},
			want: Plan{Strategy: StrategyProjectCode, Column: "project_code"},
		},
		{
			name: "text_id_beats_project_id",
			cols: []storage.Column{integer("project_id"), text("id")},
			want: Plan{Strategy: StrategyTextID, Column: "id"},
		},
		{
			name: "integer_project_code_is_skipped",
			cols: []storage.Column{integer("project_code"), integer("project_id")},
			want: Plan{Strategy: StrategyForeignKey, Column: "project_id"},
		},
		{
			name: "project_id_beats_numeric_id",
			cols: []storage.Column{integer("id"), integer("PROJECT_ID")},
			want: Plan{Strategy: StrategyForeignKey, Column: "PROJECT_ID"},
		},
		{
			name: "numeric_id",
			cols: []storage.Column{integer("id"), text("name")},
			want: Plan{Strategy: StrategyNumericID, Column: "id"},
		},
		{
			name: "untyped_sqlite_id_is_text",
			cols: []storage.Column{{Name: "id"}},
			want: Plan{Strategy: StrategyTextID, Column: "id"},
		},
		{
			name: "none",
			cols: []storage.Column{text("name"), storage.Column{Name: "project_id", DataType: "text"}},
			want: Plan{Strategy: StrategyNone},
		},
		{
			name: "empty",
			want: Plan{Strategy: StrategyNone},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectStrategy(tc.cols, Options{}); got != tc.want {
				t.Fatalf("DetectStrategy=%+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDetectStrategy_CustomCodeColumn(t *testing.T) {
	t.Parallel()

	cols := []storage.Column{{Name: "pqp_code", DataType: "varchar"}, {Name: "project_id", DataType: "int"}}
	got := DetectStrategy(cols, Options{CodeColumns: []string{"pqp_code"}})
	if got.Strategy != StrategyProjectCode || got.Column != "pqp_code" {
		t.Fatalf("got %+v", got)
	}
}

func TestFetch_ProjectCodeWinsOverProjectID(t *testing.T) {
	t.Parallel()

	tbl := storage.ParseTableName("pqp.section2")
	q := &fakeQuerier{rows: []storage.Row{{"project_code": "322IN", "project_id": int64(99)}}}
	reg := &fakeRegistry{key: 7, found: true}
	f := &Fetcher{
		Columns: fakeColumns{"pqp.section2": {
			{Name: "project_id", DataType: "bigint"},
			{Name: "project_code", DataType: "character varying"},
		}},
		Querier:  q,
		Registry: reg,
	}

	res := f.Fetch(context.Background(), tbl, "322IN")
	if res.Err != nil || len(res.Rows) != 1 {
		t.Fatalf("res=%+v", res)
	}
	if len(q.calls) != 1 || q.calls[0] != (call{table: "pqp.section2", column: "project_code", value: "322IN"}) {
		t.Fatalf("calls=%+v", q.calls)
	}
	if reg.calls != 0 {
		t.Fatalf("registry must not be consulted for the project_code strategy")
	}
}

func TestFetch_ForeignKeyUsesRegistry(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{rows: []storage.Row{{"project_id": int64(7)}}}
	f := &Fetcher{
		Columns:  fakeColumns{"pqp.section7": {{Name: "project_id", DataType: "integer"}}},
		Querier:  q,
		Registry: &fakeRegistry{key: 7, found: true},
	}
	res := f.Fetch(context.Background(), storage.ParseTableName("pqp.section7"), "322IN")
	if len(res.Rows) != 1 || res.Plan.Strategy != StrategyForeignKey {
		t.Fatalf("res=%+v", res)
	}
	if q.calls[0].value != int64(7) {
		t.Fatalf("expected registry key as filter value, got %#v", q.calls[0].value)
	}
}

func TestFetch_EmptyOutcomes(t *testing.T) {
	t.Parallel()

	cols := fakeColumns{
		"pqp.fk":     {{Name: "project_id", DataType: "integer"}},
		"pqp.nolink": {{Name: "name", DataType: "text"}},
		"pqp.code":   {{Name: "project_code", DataType: "text"}},
	}

	t.Run("registry_miss", func(t *testing.T) {
		q := &fakeQuerier{}
		f := &Fetcher{Columns: cols, Querier: q, Registry: &fakeRegistry{found: false}}
		res := f.Fetch(context.Background(), storage.ParseTableName("pqp.fk"), "322IN")
		if len(res.Rows) != 0 || res.Err != nil || len(q.calls) != 0 {
			t.Fatalf("res=%+v calls=%v", res, q.calls)
		}
	})

	t.Run("no_registry", func(t *testing.T) {
		q := &fakeQuerier{}
		f := &Fetcher{Columns: cols, Querier: q}
		res := f.Fetch(context.Background(), storage.ParseTableName("pqp.fk"), "322IN")
		if len(res.Rows) != 0 || len(q.calls) != 0 {
			t.Fatalf("res=%+v", res)
		}
	})

	t.Run("registry_error", func(t *testing.T) {
		f := &Fetcher{Columns: cols, Querier: &fakeQuerier{}, Registry: &fakeRegistry{err: errors.New("down")}}
		res := f.Fetch(context.Background(), storage.ParseTableName("pqp.fk"), "322IN")
		if len(res.Rows) != 0 || !errors.Is(res.Err, storage.ErrQueryFailure) {
			t.Fatalf("res=%+v", res)
		}
	})

	t.Run("no_linkage_column", func(t *testing.T) {
		f := &Fetcher{Columns: cols, Querier: &fakeQuerier{}}
		res := f.Fetch(context.Background(), storage.ParseTableName("pqp.nolink"), "322IN")
		if len(res.Rows) != 0 || !errors.Is(res.Err, storage.ErrSchemaMismatch) {
			t.Fatalf("res=%+v", res)
		}
	})

	t.Run("missing_table", func(t *testing.T) {
		f := &Fetcher{Columns: cols, Querier: &fakeQuerier{}}
		res := f.Fetch(context.Background(), storage.ParseTableName("pqp.gone"), "322IN")
		if len(res.Rows) != 0 || !errors.Is(res.Err, storage.ErrSchemaMismatch) {
			t.Fatalf("res=%+v", res)
		}
	})

	t.Run("query_failure_is_absorbed", func(t *testing.T) {
		q := &fakeQuerier{err: errors.New("operator does not exist: integer = text")}
		f := &Fetcher{Columns: cols, Querier: q}
		res := f.Fetch(context.Background(), storage.ParseTableName("pqp.code"), "322IN")
		if len(res.Rows) != 0 || !errors.Is(res.Err, storage.ErrQueryFailure) {
			t.Fatalf("res=%+v", res)
		}
	})

	t.Run("zero_table", func(t *testing.T) {
		f := &Fetcher{Columns: cols, Querier: &fakeQuerier{}}
		res := f.Fetch(context.Background(), storage.TableName{}, "322IN")
		if len(res.Rows) != 0 || res.Err != nil {
			t.Fatalf("res=%+v", res)
		}
	})
}
