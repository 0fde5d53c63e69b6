package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/Nterah/QualiPro/internal/app"
	"github.com/Nterah/QualiPro/internal/config"
	"github.com/Nterah/QualiPro/internal/importer"

	// register all backends with the storage factory.
	_ "github.com/Nterah/QualiPro/internal/storage/all"
)

// main commits one or more normalized import payloads into the JSON
// section store.
//
// Payload shape: {"code": "...", "sections": [{"index": 2, "columns": [...], "rows": [{...}]}]}
// When the payload has no code, one is detected from the file name.
func main() {
	var (
		cfgPath           string
		code              string
		metricsBackendFlg string
	)
	flag.StringVar(&cfgPath, "config", "", "PQP config JSON path (defaults plus PQP_* env when empty)")
	flag.StringVar(&code, "code", "", "override the payload project code")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none); falls back to METRICS_BACKEND")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: pqp_import [-config path.json] [-code CODE] payload.json...")
		os.Exit(2)
	}

	logger := log.New(os.Stderr, "pqp_import ", log.LstdFlags)
	app.LoadEnv(logger)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	if issues := config.Validate(cfg); config.HasErrors(issues) {
		for _, iss := range issues {
			fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		}
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, flag.Args(), code, metricsBackendFlg, *verbose, logger); err != nil {
		fatalf("%v", err)
	}
}

// run commits every payload file. Its deferred cleanup (metrics flush,
// backend close) always runs before main exits.
func run(ctx context.Context, cfg config.Config, paths []string, code, metricsBackend string, verbose bool, logger *log.Logger) error {
	stopMetrics := app.SetupMetrics(ctx, metricsBackend, cfg.Job, logger)
	defer stopMetrics()

	status := logger
	if !verbose {
		status = log.New(io.Discard, "", 0)
	}
	a, err := app.Open(ctx, cfg, status)
	if err != nil {
		return err
	}
	defer a.Close()

	failed := 0
	for _, path := range paths {
		rep, err := commitFile(ctx, a.Importer, path, code)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		for _, s := range rep.Sections {
			fmt.Printf("%s\t%s\tsection=%d\tcreated=%d\tupdated=%d\n", path, rep.Code, s.Number, s.Created, s.Updated)
		}
		for _, is := range rep.Issues {
			fmt.Fprintf(os.Stderr, "%s: %s: %s\n", path, rep.Code, is)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d payloads failed", failed, len(paths))
	}
	return nil
}

func commitFile(ctx context.Context, im *importer.Importer, path, code string) (importer.Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return importer.Report{}, err
	}
	var p importer.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return importer.Report{}, err
	}
	if code != "" {
		p.Code = code
	}
	return im.Commit(ctx, p, filepath.Base(path))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
