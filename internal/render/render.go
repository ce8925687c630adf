// Package render turns an analysis result into deployable pipeline
// artifacts: an Airflow-style orchestration script and companion SQL.
//
// Rendering is pure text generation over string templates. Nothing here
// executes or validates the produced Python and SQL; the artifacts are
// reviewed starting points, not live code paths of this module.
package render

import (
	"fmt"
	"sort"
	"strings"

	"datalens/internal/model"
)

// defaultSchedule is rendered when a recommendation carries no schedule.
const defaultSchedule = "0 2 * * *"

// dagSource is the per-source view spliced into the script. ID is the
// raw source ID, used in file paths and dict keys; Ident is the
// identifier-safe form used in Python function and task names.
type dagSource struct {
	ID        string
	Ident     string
	Name      string
	Kind      model.SourceKind
	Path      string
	Delimiter string
	Encoding  string
	Table     string
}

// DAG renders the orchestration script for the analyzed sources: one
// extract task per supported source, a transform task joining on the
// detected keys, and a load task flavored by the recommended storage.
//
// Sources whose kind has no extract variant (spreadsheets, remote
// endpoints, columnar stores) are left out of the script entirely.
func DAG(project string, sources []model.Source, relationships []model.Relationship, rec model.Recommendation) string {
	views := make([]dagSource, 0, len(sources))
	for _, src := range sources {
		if v, ok := sourceView(src); ok {
			views = append(views, v)
		}
	}

	schedule := rec.Pipeline.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}
	interval := "None"
	if !strings.HasPrefix(schedule, "#") {
		interval = fmt.Sprintf("%q", schedule)
	}

	table := rec.Schema.MainTable
	if table == "" {
		table = "processed_data"
	}

	var b strings.Builder
	fmt.Fprintf(&b, dagHeader, dagID(project), interval)

	for _, v := range views {
		switch v.Kind {
		case model.SourceDelimited:
			fmt.Fprintf(&b, extractDelimited, v.Ident, v.Name, v.Path, v.Delimiter, v.Encoding, v.ID)
		case model.SourceRelational:
			fmt.Fprintf(&b, extractRelational, v.Ident, v.Name, v.Table, v.ID)
		case model.SourceDocument:
			fmt.Fprintf(&b, extractDocument, v.Ident, v.Name, v.Path, v.ID)
		}
	}

	loads := make([]string, 0, len(views))
	for _, v := range views {
		loads = append(loads, fmt.Sprintf("        dfs['%[1]s'] = pd.read_parquet('/tmp/%[1]s_data.parquet')", v.ID))
	}
	fmt.Fprintf(&b, transformFunc, strings.Join(loads, "\n"), joinCode(views, relationships))

	if rec.Storage.Primary == model.TargetColumnar {
		fmt.Fprintf(&b, loadColumnar, table)
	} else {
		fmt.Fprintf(&b, loadRowStore, table)
	}

	b.WriteString("\n\nextract_tasks = []\n")
	for _, v := range views {
		fmt.Fprintf(&b, extractTask, v.Ident)
	}
	b.WriteString(finalTasks)

	return b.String()
}

// sourceView extracts the render view for one source. ok is false for
// kinds the script has no extract variant for.
func sourceView(src model.Source) (dagSource, bool) {
	v := dagSource{
		ID:    src.ID,
		Ident: pyIdent(src.ID),
		Name:  src.Name,
		Kind:  src.Kind,
	}
	switch src.Kind {
	case model.SourceDelimited:
		v.Path = src.Config.String("path", "")
		v.Delimiter = string(src.Config.Rune("delimiter", ','))
		v.Encoding = src.Config.String("encoding", "utf-8")
	case model.SourceRelational:
		v.Table = src.Config.String("table", "")
	case model.SourceDocument:
		v.Path = src.Config.String("path", "")
	default:
		return dagSource{}, false
	}
	return v, true
}

// joinCode renders the body of the transform step. With relationships
// present the first source is the main table and every related source
// left-joins onto it; otherwise the frames are stacked.
func joinCode(views []dagSource, relationships []model.Relationship) string {
	if len(views) < 2 || len(relationships) == 0 {
		return concatCode
	}

	var b strings.Builder
	main := views[0].ID
	fmt.Fprintf(&b, "        result_df = dfs['%s'].copy()\n", main)
	for _, rel := range relationships {
		other := rel.LeftID
		if rel.LeftID == main {
			other = rel.RightID
		}
		key, ok := firstJoinKey(rel.JoinKeys)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, mergeCode, other, key)
	}
	return b.String()
}

// firstJoinKey picks the join key deterministically. Detection emits a
// single key per relationship today; sorting keeps the choice stable if
// that ever grows.
func firstJoinKey(keys map[string]string) (string, bool) {
	if len(keys) == 0 {
		return "", false
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names[0], true
}

// dagID derives the DAG identifier from the project name.
func dagID(project string) string {
	return strings.ToLower(strings.ReplaceAll(project, " ", "_")) + "_etl"
}

// pyIdent makes s safe to splice into a Python identifier or task name.
func pyIdent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// SQLScripts returns the recommendation's DDL plus a storage-flavored
// maintenance script, keyed "ddl" and "optimization".
func SQLScripts(rec model.Recommendation) map[string]string {
	table := rec.Schema.MainTable
	if table == "" {
		table = "processed_data"
	}
	scripts := map[string]string{"ddl": rec.Schema.DDL}
	if rec.Storage.Primary == model.TargetColumnar {
		scripts["optimization"] = fmt.Sprintf(columnarOptimization, table)
	} else {
		scripts["optimization"] = fmt.Sprintf(rowStoreOptimization, table)
	}
	return scripts
}
