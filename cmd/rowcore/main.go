// Command rowcore reads delimited text files, merges their layouts, converts
// the rows through a select_values chain and writes them to a database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"rowcore/internal/config"
	"rowcore/internal/datasource/file"
	"rowcore/internal/metrics"
	"rowcore/internal/metrics/datadog"
	"rowcore/internal/metrics/prompush"

	// Every backend is compiled in; the pipeline file picks one.
	_ "rowcore/internal/storage/all"
)

func main() {
	var (
		cfgPath           string
		inputsFrom        string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.yaml", "pipeline config path (.json, .yaml or .yml)")
	flag.StringVar(&inputsFrom, "inputs-from", "", "file listing extra input paths, one per line; they reuse the first input's parser")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (env DD_DOGSTATSD_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	if inputsFrom != "" {
		if p, err = withListedInputs(p, inputsFrom); err != nil {
			fatalf("inputs-from: %v", err)
		}
	}

	if !reportIssues(config.ValidatePipeline(p)) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	if flush := setupMetrics(p.Job, metricsBackendFlg, pushGatewayURLFlg, statsdAddrFlg, *verbose); flush != nil {
		defer flush()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *verbose {
		log.Printf("pipeline: job=%s inputs=%d storage=%s mode=%s trigger=%s",
			p.Job, len(p.AllInputs()), p.Storage.Kind, p.Storage.EffectiveMode(), p.Trigger.EffectiveKind())
	}

	err = runWithTrigger(ctx, p, func(ctx context.Context) error {
		runID := uuid.NewString()
		start := time.Now()
		log.Printf("run %s: started", runID)
		_, err := runPipeline(ctx, p)
		if err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		log.Printf("run %s: completed in %s", runID, time.Since(start).Truncate(time.Millisecond))
		if ferr := metrics.Flush(); ferr != nil {
			log.Printf("metrics: flush error: %v", ferr)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%v", err)
	}
}

// reportIssues prints every issue and reports whether none is an error.
func reportIssues(issues []config.Issue) bool {
	ok := true
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			ok = false
		}
	}
	return ok
}

// withListedInputs appends one file input per path in the list file. The
// new inputs reuse the parser and encoding of the first configured input.
func withListedInputs(p config.Pipeline, listPath string) (config.Pipeline, error) {
	paths, err := file.ReadList(listPath)
	if err != nil {
		return p, err
	}
	ins := p.AllInputs()
	if len(ins) == 0 {
		return p, errors.New("no input to take parser settings from")
	}
	tmpl := ins[0]
	for i, path := range paths {
		in := tmpl
		in.Step = fmt.Sprintf("list%d", i+1)
		in.Source.File.Path = path
		ins = append(ins, in)
	}
	p.Inputs = ins
	return p, nil
}

// setupMetrics installs the chosen backend: flag, then env, then none. The
// returned function flushes it at exit; nil when metrics are off.
func setupMetrics(job, backendFlg, gwFlg, statsdFlg string, verbose bool) func() {
	backendName := firstNonEmpty(backendFlg, os.Getenv("METRICS_BACKEND"))
	var (
		b   metrics.Backend
		err error
	)
	switch backendName {
	case "pushgateway":
		gwURL := firstNonEmpty(gwFlg, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err = prompush.NewBackend(job, gwURL)
		if err == nil {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, job)
		}
	case "datadog":
		addr := firstNonEmpty(statsdFlg, os.Getenv("DD_DOGSTATSD_URL"), "127.0.0.1:8125")
		b, err = datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "rowcore.", GlobalTags: []string{"job:" + job}})
		if err == nil {
			log.Printf("metrics: addr=%v, backend=%v", addr, backendName)
		}
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
		return nil
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
		return nil
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", backendName, err)
		return nil
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
