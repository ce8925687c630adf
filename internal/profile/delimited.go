package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"datalens/internal/model"
)

// profileDelimited samples a delimiter-separated text source. Config
// keys: "path" or "data", "delimiter" (default ","), "encoding"
// (default UTF-8; any WHATWG encoding name, e.g. "windows-1251").
func (p *Profiler) profileDelimited(src model.Source) (model.SchemaInfo, error) {
	rc, err := payloadReader(src.Config)
	if err != nil {
		return model.SchemaInfo{}, err
	}
	defer rc.Close()

	r, err := decodeReader(rc, src.Config.String("encoding", ""))
	if err != nil {
		return model.SchemaInfo{}, err
	}

	headers, rows, err := readDelimitedSample(r, src.Config.Rune("delimiter", ','), p.opts.SampleRows)
	if err != nil {
		return model.SchemaInfo{}, err
	}
	return schemaFromGrid(headers, rows, p.opts.PreviewRows), nil
}

// decodeReader wraps r so it yields UTF-8 regardless of the source
// encoding. Unknown encoding names fail loudly rather than silently
// mangling the sample.
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", name, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// readDelimitedSample parses the first maxRows data records.
//
// Sampling is best-effort: records with the wrong field count are
// skipped, quoting is lazy, and leading/trailing whitespace is trimmed.
// What does come back is aligned with the header row.
func readDelimitedSample(r io.Reader, delimiter rune, maxRows int) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1 // validated manually below
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, errors.New("empty input")
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}

	rows := make([][]string, 0, min(maxRows, 1024))
	for len(rows) < maxRows {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		if len(rec) != len(headers) {
			continue
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}

	return headers, rows, nil
}
