// Package relation discovers joinable relationships between profiled
// sources.
//
// Two sources relate when they share column names, and the best shared
// column becomes the suggested join key. The caller gets every
// candidate pair; nothing here filters by confidence.
//
// Find is pure: no I/O, no randomness, and the same inputs always
// produce the same relationships in the same order. Sources without a
// profiled schema are skipped silently; a degraded profile must not
// block the pairs that did profile.
package relation

import (
	"strings"

	"datalens/internal/model"
)

// keyPatterns mark a column as a natural join key, in priority order.
// The first pattern with any match wins before uniqueness is consulted.
var keyPatterns = []string{"id", "uuid", "key", "code"}

// Find returns candidate relationships for every source pair that
// shares at least one column name. Pairs are visited in input order
// (i ascending, j>i ascending) and the output preserves that order.
func Find(sources []model.Source) []model.Relationship {
	rels := make([]model.Relationship, 0)

	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			if rel, ok := detect(sources[i], sources[j]); ok {
				rels = append(rels, rel)
			}
		}
	}
	return rels
}

func detect(left, right model.Source) (model.Relationship, bool) {
	if left.Schema == nil || right.Schema == nil {
		return model.Relationship{}, false
	}

	common := commonColumns(left.Schema, right.Schema)
	if len(common) == 0 {
		return model.Relationship{}, false
	}

	keys := make(map[string]string)
	if key, ok := selectJoinKey(common, left.Schema, right.Schema); ok {
		keys[key] = key
	}

	denom := len(left.Schema.Columns)
	if n := len(right.Schema.Columns); n > denom {
		denom = n
	}

	return model.Relationship{
		LeftID:     left.ID,
		RightID:    right.ID,
		Type:       model.JoinTypeLeft,
		JoinKeys:   keys,
		Confidence: float64(len(common)) / float64(denom),
	}, true
}

// commonColumns returns the case-sensitive column intersection in the
// left schema's column order, deduplicated. Iterating the left side
// keeps the order deterministic; map iteration must not leak in here.
func commonColumns(left, right *model.SchemaInfo) []string {
	inRight := make(map[string]struct{}, len(right.Columns))
	for _, c := range right.Columns {
		inRight[c] = struct{}{}
	}

	var common []string
	seen := make(map[string]struct{})
	for _, c := range left.Columns {
		if _, ok := inRight[c]; !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		common = append(common, c)
	}
	return common
}

// selectJoinKey picks the join key among the common columns: first the
// name patterns in priority order, then the column whose sampled
// uniqueness is highest on both sides. Ties keep the earliest column.
// No pattern match and all-zero uniqueness means no key at all; the
// relationship is still reported, just without join keys.
func selectJoinKey(common []string, left, right *model.SchemaInfo) (string, bool) {
	for _, pat := range keyPatterns {
		for _, col := range common {
			if strings.Contains(strings.ToLower(col), pat) {
				return col, true
			}
		}
	}

	var best string
	bestScore := 0.0
	for _, col := range common {
		s := uniqueness(left, col)
		if r := uniqueness(right, col); r < s {
			s = r
		}
		if s > bestScore {
			best, bestScore = col, s
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// uniqueness approximates how key-like a column is within one sampled
// schema: distinct values over sampled rows, in [0,1].
func uniqueness(si *model.SchemaInfo, col string) float64 {
	rows := si.RowCount
	if rows < 1 {
		rows = 1
	}
	return float64(si.DistinctCounts[col]) / float64(rows)
}
