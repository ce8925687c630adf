// Command profile inspects a single data source and prints its schema.
//
// The source is described entirely by flags: its kind plus the config
// keys that kind reads (path, url, dsn, driver, table, delimiter,
// encoding). The derived schema prints as JSON by default or as a
// readable column summary with -pretty. For relational sources, -check
// runs a connectivity check instead of profiling.
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
	"strings"
	"text/tabwriter"

	"datalens/internal/config"
	"datalens/internal/model"
	"datalens/internal/profile"
	"datalens/internal/relational"
)

// deps are external seams for testability.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer
}

// runConfig holds the parsed flags for a run.
type runConfig struct {
	Kind      string
	Name      string
	Path      string
	URL       string
	DSN       string
	Driver    string
	Table     string
	Delimiter string
	Encoding  string

	Check  bool
	Pretty bool
}

// main wires the real dependencies and exits with run's code.
func main() {
	code := run(context.Background(), os.Args[1:], deps{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	os.Exit(code)
}

// run executes the profile command and returns an exit code.
//
// Exit codes:
//   - 0: success.
//   - 1: the source could not be read (degraded profile) or the
//     connectivity check failed.
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

	cfg, err := config.Load("")
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

	src := buildSource(rc)

	if rc.Check {
		if src.Kind != model.SourceRelational {
			fmt.Fprintf(d.Stderr, "-check supports relational_table sources only, not %q\n", src.Kind)
			return 2
		}
		if err := relational.Ping(ctx, src.Config); err != nil {
			fmt.Fprintf(d.Stderr, "connection failed: %v\n", err)
			return 1
		}
		fmt.Fprintln(d.Stdout, "connection ok")
		return 0
	}

	profiler := profile.New(profile.Options{}, logger)
	res, err := profiler.Profile(ctx, src)
	if err != nil {
		fmt.Fprintf(d.Stderr, "%v\n", err)
		return 2
	}

	if rc.Pretty {
		printSchema(d.Stdout, src, res.Schema)
	} else {
		out, err := json.MarshalIndent(res.Schema, "", "  ")
		if err != nil {
			fmt.Fprintf(d.Stderr, "encode schema: %v\n", err)
			return 1
		}
		fmt.Fprintln(d.Stdout, string(out))
	}

	if res.Degraded() {
		fmt.Fprintf(d.Stderr, "profiling degraded: %v\n", res.Err)
		return 1
	}
	return 0
}

// parseFlags parses command arguments into a validated runConfig.
func parseFlags(args []string) (runConfig, error) {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)

	var usageBuf strings.Builder
	fs.SetOutput(&usageBuf)
	fs.Usage = func() {
		fmt.Fprintf(&usageBuf, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
	}

	var rc runConfig
	fs.StringVar(&rc.Kind, "kind", "", "Source kind: delimited_file, relational_table, hierarchical_document, spreadsheet, remote_api")
	fs.StringVar(&rc.Name, "name", "", "Source name used in output (defaults to the path, URL, or table)")
	fs.StringVar(&rc.Path, "path", "", "File path for file-backed kinds")
	fs.StringVar(&rc.URL, "url", "", "Endpoint for remote_api sources")
	fs.StringVar(&rc.DSN, "dsn", "", "Connection string for relational_table sources")
	fs.StringVar(&rc.Driver, "driver", "", "Database driver: postgres (default), mysql, mssql, sqlite")
	fs.StringVar(&rc.Table, "table", "", "Table to sample for relational_table sources")
	fs.StringVar(&rc.Delimiter, "delimiter", "", "Field delimiter for delimited_file sources (default ,)")
	fs.StringVar(&rc.Encoding, "encoding", "", "Text encoding for delimited_file sources (default utf-8)")
	fs.BoolVar(&rc.Check, "check", false, "Run a connectivity check instead of profiling")
	fs.BoolVar(&rc.Pretty, "pretty", false, "Print a readable column summary instead of JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return runConfig{}, errors.New(usageBuf.String())
		}
		return runConfig{}, fmt.Errorf("%v\n\n%s", err, usageBuf.String())
	}

	if rc.Kind == "" {
		return runConfig{}, errors.New("missing required -kind")
	}
	switch model.SourceKind(rc.Kind) {
	case model.SourceDelimited, model.SourceRelational, model.SourceDocument,
		model.SourceSpreadsheet, model.SourceRemote:
	default:
		return runConfig{}, fmt.Errorf("unknown source kind %q", rc.Kind)
	}
	return rc, nil
}

// buildSource assembles the source descriptor from flags, keeping only
// the config keys that were set.
func buildSource(rc runConfig) model.Source {
	cfg := model.Config{}
	set := func(key, val string) {
		if val != "" {
			cfg[key] = val
		}
	}
	set("path", rc.Path)
	set("url", rc.URL)
	set("dsn", rc.DSN)
	set("driver", rc.Driver)
	set("table", rc.Table)
	set("delimiter", rc.Delimiter)
	set("encoding", rc.Encoding)

	name := rc.Name
	if name == "" {
		switch {
		case rc.Path != "":
			name = filepath.Base(rc.Path)
		case rc.Table != "":
			name = rc.Table
		case rc.URL != "":
			name = rc.URL
		default:
			name = "source"
		}
	}

	return model.Source{
		ID:     "cli",
		Name:   name,
		Kind:   model.SourceKind(rc.Kind),
		Config: cfg,
	}
}

// printSchema renders the readable column summary.
func printSchema(w io.Writer, src model.Source, si model.SchemaInfo) {
	fmt.Fprintf(w, "source: %s (%s)\n", src.Name, src.Kind)
	fmt.Fprintf(w, "rows sampled: %d\n\n", si.RowCount)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLS\tDISTINCT")
	for _, col := range si.Columns {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", col, si.Types[col], si.NullCounts[col], si.DistinctCounts[col])
	}
	tw.Flush()
}
