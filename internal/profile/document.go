package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"datalens/internal/model"
)

// profileDocument samples a hierarchical (JSON) document. A root array
// yields one record per object element; a root object is treated as a
// one-record collection. Nested objects are flattened into dotted-path
// columns; arrays stay opaque values.
func (p *Profiler) profileDocument(src model.Source) (model.SchemaInfo, error) {
	data, err := readPayload(src.Config)
	if err != nil {
		return model.SchemaInfo{}, err
	}
	return p.schemaFromDocument(data)
}

func (p *Profiler) schemaFromDocument(data []byte) (model.SchemaInfo, error) {
	recs, err := sampleDocumentRecords(data, p.opts.SampleRows)
	if err != nil {
		return model.SchemaInfo{}, err
	}
	if len(recs) == 0 {
		// A well-formed but empty collection profiles as an empty schema.
		return model.EmptySchema(), nil
	}
	cols, flat := flattenRecords(recs)
	return schemaFromRecords(cols, flat, p.opts.PreviewRows), nil
}

// orderedRec is a JSON object with its key order preserved. The stock
// map decoding loses order, and column order downstream must match the
// document, so objects are rebuilt from the token stream.
type orderedRec struct {
	keys []string
	vals map[string]any
}

// sampleDocumentRecords decodes up to maxRecords record objects from
// data. A root collection stops being read once the cap is reached;
// non-object elements inside it are skipped. After a root object,
// further concatenated objects (NDJSON-style exports) are consumed too.
// On a decode error the records decoded so far come back with it, so
// callers holding a truncated byte peek can keep the clean prefix.
func sampleDocumentRecords(data []byte, maxRecords int) ([]*orderedRec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("empty document")
		}
		return nil, err
	}

	var recs []*orderedRec

	if d, ok := tok.(json.Delim); ok && d == '[' {
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return recs, err
			}
			if r, ok := v.(*orderedRec); ok {
				recs = append(recs, r)
				if len(recs) >= maxRecords {
					return recs, nil
				}
			}
		}
		if _, err := dec.Token(); err != nil { // consume ']'
			return recs, err
		}
		return recs, nil
	}

	v, err := valueFromToken(dec, tok)
	if err != nil {
		return nil, err
	}
	r, ok := v.(*orderedRec)
	if !ok {
		return nil, errors.New("document root is not an object or a collection")
	}
	recs = append(recs, r)

	for len(recs) < maxRecords {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		v, err := valueFromToken(dec, tok)
		if err != nil {
			break
		}
		r, ok := v.(*orderedRec)
		if !ok {
			break
		}
		recs = append(recs, r)
	}
	return recs, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return valueFromToken(dec, tok)
}

// valueFromToken materializes the JSON value whose first token has
// already been read. Scalars come back as-is (string, json.Number,
// bool, nil); objects as *orderedRec; arrays as []any.
func valueFromToken(dec *json.Decoder, tok json.Token) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch d {
	case '{':
		rec := &orderedRec{vals: make(map[string]any)}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, want string", keyTok)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			if _, dup := rec.vals[key]; !dup {
				rec.keys = append(rec.keys, key)
			}
			rec.vals[key] = v
		}
		if _, err := dec.Token(); err != nil { // consume '}'
			return nil, err
		}
		return rec, nil

	case '[':
		var arr []any
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil { // consume ']'
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %q", d)
}

// flattenRecords flattens every record one object-nesting level at a
// time into dotted-path columns and collects the column set in
// first-encounter order across all records.
func flattenRecords(recs []*orderedRec) ([]string, []map[string]any) {
	var cols []string
	seen := make(map[string]struct{})
	flat := make([]map[string]any, 0, len(recs))

	for _, rec := range recs {
		out := make(map[string]any)
		flattenInto("", rec, &cols, seen, out)
		flat = append(flat, out)
	}
	return cols, flat
}

func flattenInto(prefix string, rec *orderedRec, cols *[]string, seen map[string]struct{}, out map[string]any) {
	for _, k := range rec.keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := rec.vals[k].(*orderedRec); ok {
			flattenInto(key, sub, cols, seen, out)
			continue
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			*cols = append(*cols, key)
		}
		out[key] = plainValue(rec.vals[k])
	}
}

// plainValue strips ordering wrappers from values kept opaque (arrays
// can hold nested objects) so previews marshal cleanly.
func plainValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case *orderedRec:
		m := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			m[k] = plainValue(t.vals[k])
		}
		return m
	default:
		return v
	}
}
