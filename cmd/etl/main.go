package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dwh/internal/config"
	"dwh/internal/metrics"
	"dwh/internal/metrics/datadog"
	"dwh/internal/metrics/prompush"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "dwh/internal/storage/all"
)

// main is the entry point for the loader binary. It loads the pipeline config,
// optionally initializes a metrics backend, and executes the selected phases.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
		ro                runOptions
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/dwh.yaml", "pipeline config path (JSON or YAML)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none); overrides config")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL; overrides config and DWH_PUSHGATEWAY_URL")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&ro.stage, "stage", false, "load the raw extracts into the bronze layer first")
	flag.BoolVar(&ro.curate, "curate", true, "curate the bronze layer into the silver layer")
	flag.BoolVar(&ro.audit, "audit", false, "audit the silver layer after loading (also enabled by audit.enabled)")
	flag.BoolVar(&ro.verbose, "v", false, "enable verbose logs")

	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}

	// Validate pipeline config.
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	ro.audit = ro.audit || p.Audit.Enabled

	if metricsBackendFlg != "" {
		p.Metrics.Backend = metricsBackendFlg
	}
	if pushGatewayURLFlg != "" {
		p.Metrics.PushgatewayURL = pushGatewayURLFlg
	}
	flush := setupMetrics(p.Job, p.Metrics, ro.verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	start := time.Now()

	if ro.verbose {
		log.Printf("pipeline: job=%s storage=%s bronze=%s silver=%s readers=%d batch=%d",
			p.Job, p.Storage.Kind, p.Storage.DB.BronzeSchema, p.Storage.DB.SilverSchema,
			p.Runtime.ReaderWorkers, p.Runtime.BatchSize)
	}

	if err := run(ctx, p, ro); err != nil {
		log.Printf("%s", exitMessage(err))
		flush()
		os.Exit(1)
	}
	flush()

	if ro.verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// setupMetrics installs the configured metrics backend and returns a function
// that flushes it. The function is a no-op when metrics are disabled.
func setupMetrics(job string, m config.Metrics, verbose bool) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "pushgateway":
		gwURL := m.PushgatewayURL
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err = prompush.NewBackend(job, gwURL)
		if err == nil {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, m.Backend, job)
		}

	case "datadog":
		addr := m.DatadogAddr
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "dwh.",
			GlobalTags: []string{"job:" + job},
		})
		if err == nil {
			log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, m.Backend, job)
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", m.Backend)
		}
		return func() {}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
		return func() {}
	}

	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", m.Backend, err)
		return func() {}
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
