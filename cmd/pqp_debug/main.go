package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Nterah/QualiPro/internal/app"
	"github.com/Nterah/QualiPro/internal/catalog"
	"github.com/Nterah/QualiPro/internal/config"
	"github.com/Nterah/QualiPro/internal/fetch"
	"github.com/Nterah/QualiPro/internal/project"
	"github.com/Nterah/QualiPro/internal/resolve"
	"github.com/Nterah/QualiPro/internal/sections"
	"github.com/Nterah/QualiPro/internal/sectionstore"
	"github.com/Nterah/QualiPro/internal/storage"

	// register all backends with the storage factory.
	_ "github.com/Nterah/QualiPro/internal/storage/all"
)

// main prints what the resolver sees for one project: the tables in the
// schema, the stored sections, each part's configured table with its
// linkage plan, and the scored guess candidates when a scan runs.
func main() {
	var (
		cfgPath string
		code    string
		partKey string
	)
	flag.StringVar(&cfgPath, "config", "", "PQP config JSON path (defaults plus PQP_* env when empty)")
	flag.StringVar(&code, "code", "", "project code")
	flag.StringVar(&partKey, "part", "", "only this part key (e.g. 41, 101)")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	logger := log.New(os.Stderr, "pqp_debug ", log.LstdFlags)
	app.LoadEnv(logger)
	if !*verbose {
		logger.SetOutput(io.Discard)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	for _, iss := range config.Validate(cfg) {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	// Read-only: the debugger never writes guesses back.
	off := false
	cfg.Hydrate.Persist = &off
	cfg.Resolve.DisableGuessCache = true

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	tables := a.Catalog.Tables(ctx, cfg.Resolve.Schema)
	fmt.Printf("schema %q: %d tables\n", cfg.Resolve.Schema, len(tables))
	for _, t := range tables {
		fmt.Printf("  %s\n", t)
	}

	code = project.Normalize(code)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	if code != "" {
		stored(ctx, w, a.Store, code)
	}
	for _, s := range cfg.Catalogue() {
		for _, p := range s.Parts {
			if partKey != "" && p.Key != partKey {
				continue
			}
			describe(ctx, w, a.Catalog, a.Resolver, cfg.FetchOptions(), p, code)
		}
	}
}

func describe(ctx context.Context, w io.Writer, cat *catalog.Catalog, res *resolve.Resolver, opts fetch.Options, p sections.Part, code string) {
	fmt.Fprintf(w, "\npart %s\t%s\n", p.Key, p.Title)
	if p.Table == "" {
		fmt.Fprintf(w, "  configured\t(none)\n")
	} else {
		t := storage.ParseTableName(p.Table)
		cols := cat.Columns(ctx, t)
		if len(cols) == 0 {
			fmt.Fprintf(w, "  configured\t%s\t(missing)\n", t)
		} else {
			plan := fetch.DetectStrategy(cols, opts)
			fmt.Fprintf(w, "  configured\t%s\tstrategy=%s %s\n", t, plan.Strategy, plan.Column)
			fmt.Fprintf(w, "  columns\t%s\n", strings.Join(cat.ColumnNames(ctx, t), ", "))
		}
	}
	fmt.Fprintf(w, "  keywords\t%s\n", strings.Join(resolve.Keywords(p), ", "))
	if code == "" {
		return
	}

	r := res.Resolve(ctx, p, code)
	fmt.Fprintf(w, "  resolved\t%s\tsource=%s rows=%d\n", r.Table, r.Source, len(r.Result.Rows))
	if r.Result.Err != nil {
		fmt.Fprintf(w, "  error\t%v\n", r.Result.Err)
	}
	for _, c := range r.Candidates {
		fmt.Fprintf(w, "  candidate\t%s\tscore=%d rows=%d\n", c.Table, c.Score, c.Rows)
	}
}

// stored prints the row count and the first three rows of every stored
// section of code.
func stored(ctx context.Context, w io.Writer, store *sectionstore.Store, code string) {
	secs, err := store.List(ctx, code)
	if err != nil {
		fmt.Fprintf(w, "store\terror\t%v\n", err)
		return
	}
	fmt.Fprintf(w, "\nstore %s\t%d sections\n", code, len(secs))
	for _, s := range secs {
		fmt.Fprintf(w, "  %d\t%s\trows=%d source=%s guessed=%t completed=%t\n",
			s.Number, s.Title, len(s.Rows), s.SourceTable, s.Guessed, s.Completed)
		for i, r := range s.Rows {
			if i == 3 {
				break
			}
			fmt.Fprintf(w, "    \t%v\n", map[string]string(r))
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
