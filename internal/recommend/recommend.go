// Package recommend turns profiled sources, detected patterns, and the
// caller's business requirements into a storage, schema, and pipeline
// recommendation.
//
// Recommendations come from an ordered chain of strategies. Generative
// strategies ask an external model and parse its reply; the terminal
// rule-based strategy derives the answer from volume and pattern
// heuristics alone. The chain makes the engine total: a generative
// failure of any kind (transport, timeout, unusable reply) falls
// through to the next strategy, and the rule set always answers.
//
// Design constraints:
//
//   - Engine.Recommend never returns an error. Every input yields a
//     usable recommendation; a degraded one is just less tailored.
//   - Strategies hold no per-call state and are safe for concurrent
//     use. Each call carries its own timeout.
package recommend

import (
	"context"
	"time"

	"go.uber.org/zap"

	"datalens/internal/model"
)

const (
	// defaultTimeout bounds one generative call when the caller does
	// not configure a timeout.
	defaultTimeout = 30 * time.Second
	// replyTemperature keeps generated plans near-deterministic.
	replyTemperature = 0.3
	// replyMaxTokens caps the size of a generated plan.
	replyMaxTokens = 2000
)

// Input carries everything a strategy needs to derive a recommendation.
type Input struct {
	Sources      []model.Source
	Requirements model.Requirements
	Patterns     model.Patterns
}

// Strategy is one way of deriving a recommendation.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// Recommend derives a recommendation for in. An error means this
	// strategy could not produce a usable one and the next strategy in
	// the chain should run.
	Recommend(ctx context.Context, in Input) (model.Recommendation, error)
}

// Engine runs an ordered strategy chain ending in the rule set.
type Engine struct {
	strategies []Strategy
	log        *zap.Logger
}

// NewEngine builds an engine over the given generative strategies, in
// order. The rule-based terminal strategy is implicit; an engine with
// no strategies is valid and purely rule-based.
func NewEngine(strategies []Strategy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{strategies: strategies, log: logger.Named("recommend")}
}

// Recommend returns the first usable recommendation in the chain. It
// cannot fail: when every generative strategy errors out, the
// deterministic rule set answers.
func (e *Engine) Recommend(ctx context.Context, sources []model.Source, reqs model.Requirements, patterns model.Patterns) model.Recommendation {
	in := Input{Sources: sources, Requirements: reqs, Patterns: patterns}
	for _, s := range e.strategies {
		rec, err := s.Recommend(ctx, in)
		if err != nil {
			e.log.Warn("strategy failed, falling through",
				zap.String("strategy", s.Name()),
				zap.Error(err))
			continue
		}
		e.log.Info("recommendation derived",
			zap.String("strategy", s.Name()),
			zap.String("storage", string(rec.Storage.Primary)))
		return rec
	}
	e.log.Debug("using rule-based recommendation")
	return Rules(in)
}
