package profile

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Type labels exposed on SchemaInfo. The set is coarse: downstream
// heuristics only need to tell measures, flags, and time axes apart
// from free text.
const (
	typeInteger  = "integer"
	typeFloat    = "float"
	typeBoolean  = "boolean"
	typeDatetime = "datetime"
	typeText     = "text"
)

// inferGridTypes infers a coarse type per column of a string grid by
// elimination over the sampled values. Empty cells do not vote.
func inferGridTypes(headers []string, rows [][]string) []string {
	out := make([]string, len(headers))
	for i := range out {
		out[i] = typeText
	}

	for col := range headers {
		var seen bool
		allInt := true
		allFloat := true
		allBool := true
		allTime := true

		for _, r := range rows {
			if col >= len(r) {
				continue
			}
			v := strings.TrimSpace(r[col])
			if v == "" {
				continue
			}
			seen = true

			if allInt {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					allInt = false
				}
			}
			if allFloat {
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					allFloat = false
				}
			}
			if allBool {
				if _, ok := parseBoolLoose(v); !ok {
					allBool = false
				}
			}
			if allTime {
				if _, ok := parseDatetimeLoose(v); !ok {
					allTime = false
				}
			}
			if !allInt && !allFloat && !allBool && !allTime {
				break
			}
		}

		if !seen {
			continue
		}
		// Prefer more specific types.
		switch {
		case allInt:
			out[col] = typeInteger
		case allBool:
			out[col] = typeBoolean
		case allTime:
			out[col] = typeDatetime
		case allFloat:
			out[col] = typeFloat
		}
	}

	return out
}

// inferValueType infers a label from typed values (JSON decoding or
// database drivers). Strings stay text here: a typed source already
// said what it meant.
func inferValueType(vals []any) string {
	if len(vals) == 0 {
		return typeText
	}

	allInt := true
	allFloat := true
	allBool := true
	allTime := true

	for _, v := range vals {
		switch t := v.(type) {
		case json.Number:
			allBool, allTime = false, false
			if allInt {
				if _, err := t.Int64(); err != nil {
					allInt = false
				}
			}
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			allBool, allTime = false, false
		case float32, float64:
			allInt, allBool, allTime = false, false, false
		case bool:
			allInt, allFloat, allTime = false, false, false
		case time.Time:
			allInt, allFloat, allBool = false, false, false
		default:
			return typeText
		}
	}

	switch {
	case allInt:
		return typeInteger
	case allBool:
		return typeBoolean
	case allTime:
		return typeDatetime
	case allFloat:
		return typeFloat
	}
	return typeText
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// datetimeLayouts covers the ISO and day-first forms that show up in
// the exports this tool is pointed at. First match wins.
var datetimeLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
}

func parseDatetimeLoose(s string) (time.Time, bool) {
	for _, lay := range datetimeLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
