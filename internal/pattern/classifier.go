// Package pattern classifies profiled sources for signals that drive
// storage and pipeline recommendations: time axes, geographic columns,
// and combined data volume.
//
// Classification is name-based. Sampled types catch some time columns,
// but epoch integers and text-typed exports do not look temporal to a
// type system; their names usually do.
package pattern

import (
	"strings"

	"datalens/internal/model"
)

var (
	temporalKeywords = []string{"date", "time", "created", "updated", "timestamp"}
	geoKeywords      = []string{"lat", "lon", "city", "country", "region", "address"}
)

// Volume thresholds for suggested partition granularity, in sampled
// rows across all sources.
const (
	monthlyRowThreshold = 1_000_000
	yearlyRowThreshold  = 100_000
)

// Analyze scans every profiled schema and aggregates the signals. A
// column can appear in both lists, and the same name appearing in two
// sources is reported twice: the lists mirror the sources, they are
// not a set. Sources without a schema contribute nothing.
func Analyze(sources []model.Source) model.Patterns {
	p := model.Patterns{
		TemporalColumns:   []string{},
		GeographicColumns: []string{},
	}

	for _, src := range sources {
		if src.Schema == nil {
			continue
		}
		p.TotalRows += src.Schema.RowCount

		for _, col := range src.Schema.Columns {
			if matchesAny(col, temporalKeywords) {
				p.HasTemporal = true
				p.TemporalColumns = append(p.TemporalColumns, col)
			}
		}
		for _, col := range src.Schema.Columns {
			if matchesAny(col, geoKeywords) {
				p.HasGeographic = true
				p.GeographicColumns = append(p.GeographicColumns, col)
			}
		}
	}

	// Partitioning is only meaningful along a time axis.
	if p.HasTemporal {
		switch {
		case p.TotalRows > monthlyRowThreshold:
			p.Partitioning = granularity("monthly")
		case p.TotalRows > yearlyRowThreshold:
			p.Partitioning = granularity("yearly")
		}
	}

	return p
}

func matchesAny(col string, keywords []string) bool {
	lower := strings.ToLower(col)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func granularity(s string) *string { return &s }
