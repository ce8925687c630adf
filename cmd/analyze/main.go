// Command analyze runs a full multi-source analysis and prints the report.
//
// It reads an analysis request document (sources plus business
// requirements), profiles every source that lacks a schema, discovers
// relationships and data patterns, derives a storage recommendation, and
// emits the report JSON on stdout. Rendered pipeline artifacts can
// additionally be written to disk with -dag-out and -sql-out.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"datalens/internal/analysis"
	"datalens/internal/config"
	"datalens/internal/metrics"
	"datalens/internal/metrics/datadog"
	"datalens/internal/model"
	"datalens/internal/profile"
	"datalens/internal/recommend"
)

// analysisRequest is the on-disk request document.
//
// This format is intended for machine generation. Additive changes are
// safe; renames are breaking changes for callers that script against it.
type analysisRequest struct {
	Sources      []model.Source     `json:"sources"`
	Requirements model.Requirements `json:"business_requirements"`
}

// backendCloser is the minimal interface used by this command to manage
// a metrics backend.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are external seams for testability.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	// BackendFactory builds the metrics backend when metrics are
	// configured. Tests inject a fake to avoid real submission.
	BackendFactory func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error)
}

// runConfig holds the parsed flags for a run.
type runConfig struct {
	RequestFile string
	ConfigFile  string
	DAGOut      string
	SQLOutDir   string
}

// main wires the real dependencies and exits with run's code.
func main() {
	code := run(context.Background(), os.Args[1:], deps{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		BackendFactory: func(ctx context.Context, jobName string, tags []string, flushEvery time.Duration) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{
				JobName:    jobName,
				Tags:       tags,
				FlushEvery: flushEvery,
			})
		},
	})
	os.Exit(code)
}

// run executes the analyze command and returns an exit code.
//
// Exit codes:
//   - 0: success.
//   - 1: the analysis failed or an artifact could not be written.
//   - 2: configuration/initialization error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}

	rc, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(d.Stderr, err.Error())
		return 2
	}

	cfg, err := config.Load(rc.ConfigFile)
	if err != nil {
		fmt.Fprintf(d.Stderr, "load config: %v\n", err)
		return 2
	}

	logger, err := cfg.Log.Build()
	if err != nil {
		fmt.Fprintf(d.Stderr, "build logger: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	req, err := readRequest(rc.RequestFile)
	if err != nil {
		fmt.Fprintf(d.Stderr, "read request: %v\n", err)
		return 2
	}

	var strategies []recommend.Strategy
	if cfg.Generative.OpenAIAvailable() {
		strategies = append(strategies, recommend.NewOpenAIStrategy(recommend.OpenAIOptions{
			Endpoint: cfg.Generative.Endpoint,
			APIKey:   cfg.Generative.APIKey,
			Model:    cfg.Generative.Model,
			Timeout:  cfg.Generative.Timeout(),
		}, logger))
	}
	if cfg.Generative.AnthropicAvailable() {
		strategies = append(strategies, recommend.NewAnthropicStrategy(recommend.AnthropicOptions{
			APIKey:  cfg.Generative.AnthropicKey,
			Model:   cfg.Generative.AnthropicModel,
			Timeout: cfg.Generative.Timeout(),
		}, logger))
	}

	// Metrics are best-effort: a backend that fails to initialize must
	// not block the analysis, so the run continues on the nop backend.
	var backend metrics.Backend = metrics.Nop{}
	if cfg.Metrics.Available() && d.BackendFactory != nil {
		tags := append(datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")), "tool:analyze")
		b, err := d.BackendFactory(ctx, "datalens", tags, cfg.Metrics.FlushInterval())
		if err != nil {
			logger.Warn("metrics backend init failed, metrics disabled", zap.Error(err))
		} else {
			backend = b
			defer func() {
				if err := b.Close(); err != nil {
					logger.Warn("metrics close", zap.Error(err))
				}
			}()
		}
	}

	svc := analysis.NewService(
		profile.New(profile.Options{}, logger),
		recommend.NewEngine(strategies, logger),
		backend,
		logger,
	)

	report, err := svc.Run(ctx, req.Sources, req.Requirements)
	if err != nil {
		fmt.Fprintf(d.Stderr, "analysis failed: %v\n", err)
		return 1
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(d.Stderr, "encode report: %v\n", err)
		return 1
	}
	fmt.Fprintln(d.Stdout, string(out))

	if rc.DAGOut != "" {
		if err := os.WriteFile(rc.DAGOut, []byte(report.Code.DAG), 0o644); err != nil {
			fmt.Fprintf(d.Stderr, "write dag: %v\n", err)
			return 1
		}
	}
	if rc.SQLOutDir != "" {
		if err := writeSQLScripts(rc.SQLOutDir, report.Code.SQLScripts); err != nil {
			fmt.Fprintf(d.Stderr, "write sql scripts: %v\n", err)
			return 1
		}
	}
	return 0
}

// parseFlags parses command arguments into a validated runConfig.
//
// Errors:
//   - Returns an error for invalid/missing required flags.
//   - Does not exit the process (caller decides exit code).
func parseFlags(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)

	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var rc runConfig
	fs.StringVar(&rc.RequestFile, "request", "", "Path to the analysis request JSON (sources + business requirements)")
	fs.StringVar(&rc.ConfigFile, "config", "", "Optional config YAML; environment variables always override")
	fs.StringVar(&rc.DAGOut, "dag-out", "", "Write the rendered pipeline DAG to this file")
	fs.StringVar(&rc.SQLOutDir, "sql-out", "", "Write the rendered SQL scripts into this directory")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return runConfig{}, errors.New(usageBuf.String())
		}
		return runConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	if rc.RequestFile == "" {
		return runConfig{}, errors.New("missing required -request <file.json>")
	}
	return rc, nil
}

// readRequest loads and minimally validates the request document.
func readRequest(path string) (analysisRequest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return analysisRequest{}, err
	}
	var req analysisRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return analysisRequest{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(req.Sources) == 0 {
		return analysisRequest{}, fmt.Errorf("%s names no sources", path)
	}
	return req, nil
}

// writeSQLScripts writes each rendered script as <name>.sql under dir,
// creating the directory if needed.
func writeSQLScripts(dir string, scripts map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name+".sql")
		if err := os.WriteFile(path, []byte(scripts[name]), 0o644); err != nil {
			return err
		}
	}
	return nil
}
