package recommend

import (
	"fmt"
	"strings"

	"datalens/internal/model"
)

// analyticsKeywords are target metrics that mark a workload as
// analytical. Matching is exact on the lowercased metric, not a
// substring scan: "sales" qualifies, "sales_total" does not.
var analyticsKeywords = map[string]bool{
	"sales":     true,
	"analytics": true,
	"report":    true,
	"dashboard": true,
}

// Volume cutoffs for the storage choice, in sampled rows.
const (
	columnarAnalyticsRows = 100_000
	columnarVolumeRows    = 1_000_000
)

// Rules derives a recommendation from volume and pattern heuristics
// alone. It is deterministic: identical input yields byte-identical
// output. The engine runs it as the terminal strategy when no
// generative strategy produces a usable answer.
func Rules(in Input) model.Recommendation {
	analytics := false
	for _, m := range in.Requirements.TargetMetrics {
		if analyticsKeywords[strings.ToLower(m)] {
			analytics = true
			break
		}
	}

	var (
		storage   model.TargetKind
		reasoning string
	)
	switch {
	case analytics && in.Patterns.HasTemporal && in.Patterns.TotalRows > columnarAnalyticsRows:
		storage = model.TargetColumnar
		reasoning = "Analytical queries over high-volume time-series data"
	case in.Patterns.TotalRows > columnarVolumeRows:
		storage = model.TargetColumnar
		reasoning = "Data volume requires a columnar store"
	default:
		storage = model.TargetRowStore
		reasoning = "Moderate-volume operational data"
	}

	var partitioning *string
	if in.Patterns.HasTemporal && storage == model.TargetColumnar {
		expr := "PARTITION BY toYear(date)"
		if in.Patterns.TotalRows > columnarVolumeRows {
			expr = "PARTITION BY toYYYYMM(date)"
		}
		partitioning = &expr
	}

	indexes := make([]string, 0, 2)
	for _, col := range in.Patterns.TemporalColumns {
		if len(indexes) == 2 {
			break
		}
		indexes = append(indexes, col)
	}

	mainTable := "processed_data"
	if analytics {
		mainTable = "analytics_data"
	}

	return model.Recommendation{
		Storage: model.StorageChoice{
			Primary:      storage,
			Reasoning:    reasoning,
			Alternatives: []model.TargetKind{model.TargetObjectStore},
		},
		Schema: model.SchemaDesign{
			MainTable:    mainTable,
			Partitioning: partitioning,
			Indexes:      indexes,
			DDL:          ddlSkeleton(storage, mainTable, partitioning, indexes),
		},
		Pipeline: model.PipelinePlan{
			Steps: []string{
				"Extract from sources",
				"Join data on common keys",
				"Apply transformations",
				"Load to " + string(storage),
			},
			Schedule:         scheduleFor(in.Requirements.UpdateFrequency),
			EstimatedRuntime: "10-30 minutes",
		},
	}
}

// ddlSkeleton renders a starter DDL script for the chosen storage. The
// column list is a placeholder: per-column schema unification is a
// separate concern, so the script only fixes the table name, the
// partition clause, and the index columns.
func ddlSkeleton(storage model.TargetKind, table string, partitioning *string, indexes []string) string {
	if storage == model.TargetColumnar {
		part := ""
		if partitioning != nil {
			part = *partitioning
		}
		order := "date"
		if len(indexes) > 0 {
			order = strings.Join(indexes, ", ")
		}
		return strings.TrimSpace(fmt.Sprintf(`
CREATE TABLE %s
(
    date Date,
    timestamp DateTime,
    -- Add your columns here based on source analysis
) ENGINE = MergeTree()
%s
ORDER BY (%s)
`, table, part, order))
	}

	idx := ""
	if len(indexes) > 0 {
		idx = fmt.Sprintf("CREATE INDEX ON %s (%s);", table, strings.Join(indexes, ", "))
	}
	return strings.TrimSpace(fmt.Sprintf(`
CREATE TABLE %s (
    id SERIAL PRIMARY KEY,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    -- Add your columns here based on source analysis
);
%s
`, table, idx))
}

// scheduleFor maps an update frequency to a schedule line. Cron
// expressions pass through to the rendered pipeline as-is; the once-off
// marker starts with '#' and renderers turn it into a manual trigger.
func scheduleFor(freq model.Frequency) string {
	switch freq {
	case model.FreqOnce:
		return "# Run once manually"
	case model.FreqHourly:
		return "0 * * * *"
	case model.FreqDaily:
		return "0 2 * * *"
	case model.FreqWeekly:
		return "0 2 * * 0"
	default:
		return "0 2 * * *"
	}
}
