// Package analysis composes the profiling, relationship-discovery,
// pattern-classification, and recommendation stages into one run.
//
// A run is synchronous and stateless: Run copies the source list it is
// given, profiles the copies that lack a schema, and returns everything
// it derived in a single Report. The caller's slice is never mutated.
//
// Error taxonomy:
//   - Data-level failures (unreadable file, unreachable database, bad
//     payload) degrade the affected source to an empty schema and are
//     listed in Report.DegradedSources; the run continues.
//   - An unsupported source kind aborts the run with a wrapped
//     profile.ErrUnsupportedSource, because it signals a caller bug.
package analysis

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"datalens/internal/metrics"
	"datalens/internal/model"
	"datalens/internal/pattern"
	"datalens/internal/profile"
	"datalens/internal/recommend"
	"datalens/internal/relation"
	"datalens/internal/render"
)

// Service runs full analyses. Construct it once and share it; it holds
// configuration and collaborators only.
//
// It emits the following metrics per run:
//
//	profiles_total             counter, labels kind + status (ok|degraded)
//	profile_duration_seconds   histogram, labels kind + status
//	relationships_total        counter
//	runs_total                 counter, label status (ok|error)
//	run_duration_seconds       histogram, label status
type Service struct {
	profiler *profile.Profiler
	engine   *recommend.Engine
	metrics  metrics.Backend
	log      *zap.Logger
}

// NewService wires a Service from its collaborators. A nil profiler or
// engine falls back to a default one; a nil backend disables metrics;
// a nil logger silences logging.
func NewService(profiler *profile.Profiler, engine *recommend.Engine, backend metrics.Backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if profiler == nil {
		profiler = profile.New(profile.Options{}, logger)
	}
	if engine == nil {
		engine = recommend.NewEngine(nil, logger)
	}
	if backend == nil {
		backend = metrics.Nop{}
	}
	return &Service{
		profiler: profiler,
		engine:   engine,
		metrics:  backend,
		log:      logger.Named("analysis"),
	}
}

// Run profiles every source that lacks a schema, discovers
// relationships and data patterns, derives a recommendation, and
// renders the pipeline artifacts.
//
// Sources are copied before any schema is attached; the enriched copies
// come back in Report.Sources. A source with an empty ID is assigned a
// generated one, since relationships and rendered tasks refer to
// sources by ID.
//
// Errors: only a wrapped profile.ErrUnsupportedSource. Every other
// failure degrades the affected source instead.
func (s *Service) Run(ctx context.Context, sources []model.Source, reqs model.Requirements) (model.Report, error) {
	start := time.Now()

	srcs := append([]model.Source(nil), sources...)

	var degraded []string
	for i := range srcs {
		if srcs[i].ID == "" {
			srcs[i].ID = uuid.New().String()
		}
		if srcs[i].Schema != nil {
			continue
		}

		labels := metrics.Labels{"kind": string(srcs[i].Kind), "status": "ok"}
		profStart := time.Now()
		res, err := s.profiler.Profile(ctx, srcs[i])
		if err != nil {
			s.finishRun(start, "error")
			return model.Report{}, fmt.Errorf("profile %q: %w", srcs[i].Name, err)
		}
		if res.Degraded() {
			labels["status"] = "degraded"
			degraded = append(degraded, srcs[i].ID)
		}
		schema := res.Schema
		srcs[i].Schema = &schema

		s.metrics.IncCounter("profiles_total", 1, labels)
		s.metrics.ObserveHistogram("profile_duration_seconds", time.Since(profStart).Seconds(), labels)
	}

	rels := relation.Find(srcs)
	if len(rels) > 0 {
		s.metrics.IncCounter("relationships_total", float64(len(rels)), nil)
	}

	patterns := pattern.Analyze(srcs)
	rec := s.engine.Recommend(ctx, srcs, reqs, patterns)

	project := projectName(reqs.Goal)
	report := model.Report{
		Project:        project,
		Sources:        srcs,
		Relationships:  rels,
		Patterns:       patterns,
		Recommendation: rec,
		Code: model.GeneratedCode{
			DAG:        render.DAG(project, srcs, rels, rec),
			SQLScripts: render.SQLScripts(rec),
		},
		DegradedSources: degraded,
	}

	s.finishRun(start, "ok")
	s.log.Info("analysis run complete",
		zap.String("project", project),
		zap.Int("sources", len(srcs)),
		zap.Int("degraded", len(degraded)),
		zap.Int("relationships", len(rels)),
		zap.String("storage", string(rec.Storage.Primary)),
		zap.Duration("took", time.Since(start)))
	return report, nil
}

func (s *Service) finishRun(start time.Time, status string) {
	labels := metrics.Labels{"status": status}
	s.metrics.IncCounter("runs_total", 1, labels)
	s.metrics.ObserveHistogram("run_duration_seconds", time.Since(start).Seconds(), labels)
}

// projectName derives a stable project identifier from the analysis
// goal. The same goal always maps to the same project, so regenerated
// pipelines overwrite rather than accumulate.
func projectName(goal string) string {
	h := fnv.New32a()
	h.Write([]byte(goal))
	return fmt.Sprintf("project_%x", h.Sum32())
}
