// Package model defines the shared data shapes passed between the
// profiling, relationship-discovery, pattern-classification, and
// recommendation stages.
//
// All types here are plain values: no methods mutate receivers, and no
// type holds references to live connections or goroutines. A Source is
// owned by the caller; the only field anyone else writes is Schema,
// which the caller stores back after profiling.
package model

// SourceKind identifies how a data source is read.
type SourceKind string

const (
	// SourceDelimited is a delimiter-separated text file (CSV, TSV, ...).
	SourceDelimited SourceKind = "delimited_file"
	// SourceRelational is a table in a relational database.
	SourceRelational SourceKind = "relational_table"
	// SourceDocument is a hierarchical document (JSON) holding a
	// collection of records or a single record object.
	SourceDocument SourceKind = "hierarchical_document"
	// SourceSpreadsheet is a workbook file; the first sheet is read.
	SourceSpreadsheet SourceKind = "spreadsheet"
	// SourceColumnar is a columnar analytical store. Profiling it is not
	// supported; it exists so callers can declare it as a target system.
	SourceColumnar SourceKind = "columnar_store"
	// SourceRemote is an HTTP(S) endpoint serving JSON, delimited text,
	// or an HTML page with a data table.
	SourceRemote SourceKind = "remote_api"
)

// TargetKind is a storage archetype recommended for the unified dataset.
type TargetKind string

const (
	TargetColumnar    TargetKind = "columnar_store"
	TargetRowStore    TargetKind = "row_store"
	TargetObjectStore TargetKind = "object_store"
)

// ValidTarget reports whether s names a known storage archetype.
// Used to reject generated recommendations that invent their own labels.
func ValidTarget(s string) bool {
	switch TargetKind(s) {
	case TargetColumnar, TargetRowStore, TargetObjectStore:
		return true
	}
	return false
}

// Frequency is the requested refresh cadence for the derived pipeline.
type Frequency string

const (
	FreqOnce     Frequency = "once"
	FreqHourly   Frequency = "hourly"
	FreqDaily    Frequency = "daily"
	FreqWeekly   Frequency = "weekly"
	FreqRealtime Frequency = "realtime"
)

// Source describes one data source to analyze.
//
// Config is opaque to everything but the profiler: each SourceKind
// reads the keys it needs (path, data, delimiter, encoding, url,
// driver, dsn, host, port, database, username, password, table) and
// ignores the rest.
type Source struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Kind   SourceKind `json:"type"`
	Config Config     `json:"config"`

	// Schema is attached by the caller after profiling; nil until then.
	Schema *SchemaInfo `json:"schema_info,omitempty"`
}

// SchemaInfo is the normalized description of a profiled source.
//
// RowCount is the size of the bounded sample that was read, not the true
// cardinality of the source. Downstream volume heuristics treat it as an
// estimate and callers should too.
type SchemaInfo struct {
	// Columns in source order. Duplicate names can occur (a source may
	// repeat a header); the per-column maps then hold the last value
	// seen for that name, and nothing downstream may assume uniqueness.
	Columns []string `json:"columns"`
	// Types maps column name to an inferred label: "integer", "float",
	// "boolean", "datetime", or "text".
	Types map[string]string `json:"dtypes"`
	// NullCounts counts missing values per column in the sample, before
	// any preview substitution.
	NullCounts map[string]int `json:"null_counts"`
	// DistinctCounts counts distinct non-missing values per column.
	DistinctCounts map[string]int `json:"unique_counts"`
	// RowCount is the number of sampled records.
	RowCount int `json:"row_count"`
	// Sample holds up to five preview records with missing values
	// replaced by "".
	Sample []map[string]any `json:"sample_data"`
}

// EmptySchema returns a SchemaInfo with every field empty but non-nil,
// the degraded result a failed profile surfaces instead of an error.
func EmptySchema() SchemaInfo {
	return SchemaInfo{
		Columns:        []string{},
		Types:          map[string]string{},
		NullCounts:     map[string]int{},
		DistinctCounts: map[string]int{},
		RowCount:       0,
		Sample:         []map[string]any{},
	}
}

// Relationship is a candidate equi-join between two profiled sources.
type Relationship struct {
	LeftID  string `json:"source1_id"`
	RightID string `json:"source2_id"`
	// Type is currently always "LEFT JOIN".
	Type string `json:"join_type"`
	// JoinKeys maps left column to right column. With name-based
	// detection the key maps to itself; empty when no key qualified.
	JoinKeys map[string]string `json:"join_keys"`
	// Confidence in [0,1]: share of columns the two sources have in
	// common, relative to the wider of the two.
	Confidence float64 `json:"confidence"`
}

// JoinTypeLeft is the only join type the detector currently emits.
const JoinTypeLeft = "LEFT JOIN"

// Patterns aggregates semantic signals across all profiled sources.
// It is recomputed per request and never persisted.
type Patterns struct {
	HasTemporal       bool     `json:"has_temporal_data"`
	TemporalColumns   []string `json:"temporal_columns"`
	HasGeographic     bool     `json:"has_geographical_data"`
	GeographicColumns []string `json:"geographical_columns"`
	// TotalRows sums the sample row counts of every source.
	TotalRows int `json:"total_estimated_rows"`
	// Partitioning is "monthly" or "yearly" when a suggestion applies,
	// nil otherwise. The pointer keeps "no suggestion" distinct from an
	// empty label.
	Partitioning *string `json:"suggested_partitioning"`
}

// Requirements captures what the caller wants out of the unified dataset.
type Requirements struct {
	Goal            string    `json:"goal"`
	TargetMetrics   []string  `json:"target_metrics"`
	UpdateFrequency Frequency `json:"update_frequency"`
	ExpectedLoad    string    `json:"expected_load,omitempty"`
	Retention       string    `json:"data_retention,omitempty"`
}

// StorageChoice is the storage part of a recommendation.
type StorageChoice struct {
	Primary      TargetKind   `json:"primary"`
	Reasoning    string       `json:"reasoning"`
	Alternatives []TargetKind `json:"alternatives"`
}

// SchemaDesign is the target-schema part of a recommendation.
type SchemaDesign struct {
	MainTable string `json:"main_table"`
	// Partitioning is a storage-specific partition expression, nil when
	// the design is unpartitioned.
	Partitioning *string  `json:"partitioning"`
	Indexes      []string `json:"indexes"`
	DDL          string   `json:"ddl_script"`
}

// PipelinePlan is the pipeline part of a recommendation.
type PipelinePlan struct {
	Steps            []string `json:"steps"`
	Schedule         string   `json:"schedule"`
	EstimatedRuntime string   `json:"estimated_runtime"`
}

// Recommendation is the terminal artifact of an analysis run. Once
// produced it is opaque to this module; renderers consume it as-is.
//
// The JSON field names are load-bearing: they are the shape the
// generative prompt asks a model to produce, so the same struct decodes
// generated replies and serializes rule-based results.
type Recommendation struct {
	Storage  StorageChoice `json:"storage_recommendation"`
	Schema   SchemaDesign  `json:"schema_design"`
	Pipeline PipelinePlan  `json:"etl_pipeline"`
}

// GeneratedCode bundles rendered pipeline artifacts for a report.
type GeneratedCode struct {
	DAG        string            `json:"airflow_dag"`
	SQLScripts map[string]string `json:"sql_scripts"`
}

// Report is the combined output of a full analysis run.
type Report struct {
	Project         string         `json:"project"`
	Sources         []Source       `json:"sources"`
	Relationships   []Relationship `json:"relationships"`
	Patterns        Patterns       `json:"data_patterns"`
	Recommendation  Recommendation `json:"recommendations"`
	Code            GeneratedCode  `json:"generated_code"`
	DegradedSources []string       `json:"degraded_sources,omitempty"`
}
