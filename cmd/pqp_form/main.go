package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Nterah/QualiPro/internal/app"
	"github.com/Nterah/QualiPro/internal/config"
	"github.com/Nterah/QualiPro/internal/project"

	// register all backends with the storage factory.
	_ "github.com/Nterah/QualiPro/internal/storage/all"
)

// main hydrates every section of one project and prints the form as JSON.
func main() {
	var (
		cfgPath           string
		code              string
		outPath           string
		metricsBackendFlg string
		noPersist         bool
		validate          bool
	)
	flag.StringVar(&cfgPath, "config", "", "PQP config JSON path (defaults plus PQP_* env when empty)")
	flag.StringVar(&code, "code", "", "project code, e.g. \"291RT P700\"")
	flag.StringVar(&outPath, "out", "", "write the form JSON here instead of stdout")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none); falls back to METRICS_BACKEND")
	flag.BoolVar(&noPersist, "no-persist", false, "do not write physically sourced rows back to the section store")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	logger := log.New(os.Stderr, "pqp_form ", log.LstdFlags)
	app.LoadEnv(logger)

	cfg := loadConfig(cfgPath, logger)
	if validate {
		logger.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}
	if noPersist {
		off := false
		cfg.Hydrate.Persist = &off
	}

	code = project.Normalize(code)
	if code == "" {
		fatalf("usage: pqp_form -code CODE [-config path.json]")
	}

	if err := run(context.Background(), cfg, code, outPath, metricsBackendFlg, *verbose, logger); err != nil {
		fatalf("%v", err)
	}
}

// run hydrates code and writes the form. Its deferred cleanup (metrics
// flush, backend close) always runs before main exits.
func run(ctx context.Context, cfg config.Config, code, outPath, metricsBackend string, verbose bool, logger *log.Logger) error {
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

	start := time.Now()
	form, err := a.Orchestrator.Hydrate(ctx, code)
	if err != nil {
		return fmt.Errorf("hydrate %s: %w", code, err)
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(form); err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	status.Printf("hydrated %s: %d sections in %s", code, len(form.Sections), time.Since(start).Truncate(time.Millisecond))
	return nil
}

func loadConfig(path string, logger *log.Logger) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("%v", err)
	}
	hasError := false
	for _, iss := range config.Validate(cfg) {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		logger.Printf("Configuration is invalid: %v", path)
		os.Exit(1)
	}
	return cfg
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
