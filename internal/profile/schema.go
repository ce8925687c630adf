package profile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"datalens/internal/model"
)

// schemaFromGrid builds a SchemaInfo from a string grid (delimited,
// spreadsheet, HTML-table samples). In grid form an empty or
// whitespace-only cell is a missing value: that is all a text format
// can express.
//
// Duplicate header names are kept in Columns; the per-column maps then
// carry the stats of the right-most column with that name.
func schemaFromGrid(headers []string, rows [][]string, previewCap int) model.SchemaInfo {
	si := model.EmptySchema()
	if len(headers) == 0 {
		return si
	}

	si.Columns = append([]string(nil), headers...)
	si.RowCount = len(rows)

	types := inferGridTypes(headers, rows)

	for i, col := range headers {
		nulls := 0
		distinct := make(map[string]struct{})
		for _, r := range rows {
			if i >= len(r) {
				nulls++
				continue
			}
			v := strings.TrimSpace(r[i])
			if v == "" {
				nulls++
				continue
			}
			distinct[v] = struct{}{}
		}
		si.Types[col] = types[i]
		si.NullCounts[col] = nulls
		si.DistinctCounts[col] = len(distinct)
	}

	for n, r := range rows {
		if n >= previewCap {
			break
		}
		rec := make(map[string]any, len(headers))
		for i, col := range headers {
			if i < len(r) {
				rec[col] = r[i]
			} else {
				rec[col] = ""
			}
		}
		si.Sample = append(si.Sample, rec)
	}

	return si
}

// schemaFromRecords builds a SchemaInfo from keyed records (documents,
// remote JSON, relational rows). Here a value is missing when the key
// is absent or the value is nil; an empty string is a real value.
//
// columns carries first-encounter order and is used as-is. A record
// set with no columns at all (a collection of empty objects) still
// reports its row count.
func schemaFromRecords(columns []string, recs []map[string]any, previewCap int) model.SchemaInfo {
	si := model.EmptySchema()
	si.Columns = append(si.Columns, columns...)
	si.RowCount = len(recs)

	for _, col := range columns {
		nulls := 0
		distinct := make(map[string]struct{})
		var vals []any
		for _, rec := range recs {
			v, ok := rec[col]
			if !ok || v == nil {
				nulls++
				continue
			}
			distinct[scalarKey(v)] = struct{}{}
			vals = append(vals, v)
		}
		si.Types[col] = inferValueType(vals)
		si.NullCounts[col] = nulls
		si.DistinctCounts[col] = len(distinct)
	}

	for n, rec := range recs {
		if n >= previewCap {
			break
		}
		out := make(map[string]any, len(columns))
		for _, col := range columns {
			v, ok := rec[col]
			if !ok || v == nil {
				// Missing values become "" in the preview only; the
				// counts above already saw the truth.
				out[col] = ""
				continue
			}
			out[col] = v
		}
		si.Sample = append(si.Sample, out)
	}

	return si
}

// scalarKey folds a sampled value into a map key for distinct counting.
func scalarKey(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
