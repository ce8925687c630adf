// Package profile implements bounded-sample schema profiling of
// heterogeneous data sources.
//
// The profile package is responsible for:
//   - Reading a bounded sample of a source (file bytes, inline bytes,
//     a relational table, or a remote endpoint)
//   - Inferring column names and coarse types
//   - Counting nulls and distinct values per column
//   - Producing a small preview of sample records
//
// Design constraints:
//   - Sampling must be bounded in memory and time.
//   - Profiling is best-effort: data-level failures never escape as
//     errors; they degrade the result to an empty schema with the
//     failure recorded on it. Only an unsupported source kind is a
//     hard error, because it signals a caller bug rather than bad data.
//   - No state survives a call; a database connection opened for a
//     sample is released before Profile returns, on every path.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"datalens/internal/model"
)

// ErrUnsupportedSource reports a source kind the profiler cannot read.
var ErrUnsupportedSource = errors.New("unsupported source kind")

// Options control sampling behavior. The zero value is usable; every
// field falls back to its documented default.
type Options struct {
	// SampleRows caps how many records are read from any source.
	// Default 1000. Row counts in the resulting schema reflect this
	// bounded sample, not the true source cardinality.
	SampleRows int
	// PreviewRows caps the preview records attached to a schema.
	// Default 5.
	PreviewRows int
	// PeekBytes caps how much of a remote endpoint is fetched.
	// Default 512 KiB.
	PeekBytes int
	// HTTPTimeout bounds the remote peek when the caller's context has
	// no earlier deadline. Default 30s.
	HTTPTimeout time.Duration
	// AllowInsecureTLS skips TLS certificate verification for remote
	// peeks (self-signed / internal endpoints).
	AllowInsecureTLS bool
}

func (o Options) withDefaults() Options {
	if o.SampleRows <= 0 {
		o.SampleRows = 1000
	}
	if o.PreviewRows <= 0 {
		o.PreviewRows = 5
	}
	if o.PeekBytes <= 0 {
		o.PeekBytes = 512 * 1024
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	return o
}

// Result is the outcome of profiling one source.
//
// Profiling is a total function over well-formed descriptors: instead
// of failing on bad data it hands back an empty schema plus the reason
// it is empty, and the caller decides whether degraded is acceptable.
type Result struct {
	Schema model.SchemaInfo
	// Err is the data-level failure that degraded this result. Nil when
	// profiling succeeded.
	Err error
}

// Degraded reports whether the schema is an empty placeholder produced
// by a failed read.
func (r Result) Degraded() bool { return r.Err != nil }

// Profiler reads bounded samples and derives schema descriptions.
// Safe for concurrent use: it holds configuration only.
type Profiler struct {
	opts Options
	log  *zap.Logger
}

// New returns a Profiler with opts applied over defaults. logger may be
// nil; degraded profiles are then silent.
func New(opts Options, logger *zap.Logger) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiler{opts: opts.withDefaults(), log: logger.Named("profile")}
}

// Profile reads a bounded sample of src and derives its schema.
//
// Errors: only ErrUnsupportedSource (wrapped with the offending kind).
// Every data-level failure (missing file, decode error, unreachable
// database, bad payload) is folded into the Result instead.
func (p *Profiler) Profile(ctx context.Context, src model.Source) (Result, error) {
	var (
		schema model.SchemaInfo
		err    error
	)

	start := time.Now()
	switch src.Kind {
	case model.SourceDelimited:
		schema, err = p.profileDelimited(src)
	case model.SourceSpreadsheet:
		schema, err = p.profileSpreadsheet(src)
	case model.SourceDocument:
		schema, err = p.profileDocument(src)
	case model.SourceRelational:
		schema, err = p.profileTable(ctx, src)
	case model.SourceRemote:
		schema, err = p.profileRemote(ctx, src)
	default:
		return Result{Schema: model.EmptySchema()}, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Kind)
	}

	if err != nil {
		p.log.Warn("profiling degraded to empty schema",
			zap.String("source_id", src.ID),
			zap.String("source", src.Name),
			zap.String("kind", string(src.Kind)),
			zap.Error(err))
		return Result{Schema: model.EmptySchema(), Err: err}, nil
	}

	p.log.Debug("profiled source",
		zap.String("source", src.Name),
		zap.Int("columns", len(schema.Columns)),
		zap.Int("rows", schema.RowCount),
		zap.Duration("took", time.Since(start)))
	return Result{Schema: schema}, nil
}
