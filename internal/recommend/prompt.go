package recommend

import (
	"fmt"
	"strings"
)

// promptKeyFields caps how many column names a source line shows.
const promptKeyFields = 5

// buildPrompt renders the analysis request a generative strategy sends.
// The JSON template at the end mirrors model.Recommendation's wire
// shape, so a compliant reply decodes directly into it.
func buildPrompt(in Input) string {
	lines := make([]string, 0, len(in.Sources))
	for _, src := range in.Sources {
		cols, rows := 0, 0
		if src.Schema != nil {
			cols = len(src.Schema.Columns)
			rows = src.Schema.RowCount
		}
		line := fmt.Sprintf("- %s (%s): %d columns, %d rows", src.Name, src.Kind, cols, rows)
		if cols > 0 {
			head := src.Schema.Columns
			if len(head) > promptKeyFields {
				head = head[:promptKeyFields]
			}
			line += ", key fields: " + strings.Join(head, ", ")
		}
		lines = append(lines, line)
	}

	return fmt.Sprintf(`You are an expert data engineer. Analyze the data below and recommend a solution.

DATA SOURCES:
%s

DATA PATTERNS:
- Temporal data: %t
- Temporal columns: %s
- Geographical data: %t
- Total estimated rows: %d

BUSINESS REQUIREMENTS:
- Goal: %s
- Target metrics: %s
- Update frequency: %s
- Expected load: %s

TASK: propose the optimal design. Answer with JSON in exactly this shape:

{
  "storage_recommendation": {
    "primary": "columnar_store|row_store|object_store",
    "reasoning": "why this storage fits",
    "alternatives": ["alternative1", "alternative2"]
  },
  "schema_design": {
    "main_table": "table_name",
    "partitioning": "partitioning expression or null",
    "indexes": ["indexed", "columns"],
    "ddl_script": "CREATE TABLE ..."
  },
  "etl_pipeline": {
    "steps": ["step 1", "step 2", "step 3"],
    "schedule": "cron expression",
    "estimated_runtime": "expected duration"
  }
}`,
		strings.Join(lines, "\n"),
		in.Patterns.HasTemporal,
		strings.Join(in.Patterns.TemporalColumns, ", "),
		in.Patterns.HasGeographic,
		in.Patterns.TotalRows,
		in.Requirements.Goal,
		strings.Join(in.Requirements.TargetMetrics, ", "),
		in.Requirements.UpdateFrequency,
		in.Requirements.ExpectedLoad)
}
