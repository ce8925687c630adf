package profile

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"datalens/internal/model"
)

// HTTPPeekFn fetches at most n bytes of the payload behind url.
type HTTPPeekFn func(ctx context.Context, url string, n int, insecure bool) ([]byte, error)

// httpPeekFn is the overridable seam used to fetch the first bytes of a
// remote payload. Tests replace it to avoid real network I/O. file://
// URLs read from the local filesystem.
var httpPeekFn HTTPPeekFn = func(ctx context.Context, rawURL string, n int, insecure bool) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("peek: n must be > 0")
	}

	if strings.HasPrefix(rawURL, "file://") {
		f, err := os.Open(strings.TrimPrefix(rawURL, "file://"))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, int64(n)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{}
	if insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %s", rawURL, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, int64(n)))
}

// profileRemote samples a remote endpoint from a bounded byte peek and
// sniffs the payload format from the first non-space byte: '{' or '['
// is a document, '<' is an HTML page, anything else is delimited text.
func (p *Profiler) profileRemote(ctx context.Context, src model.Source) (model.SchemaInfo, error) {
	rawURL := src.Config.String("url", "")
	if rawURL == "" {
		return model.SchemaInfo{}, errors.New(`source config carries no "url"`)
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.HTTPTimeout)
	defer cancel()

	sample, err := httpPeekFn(ctx, rawURL, p.opts.PeekBytes, p.opts.AllowInsecureTLS)
	if err != nil {
		return model.SchemaInfo{}, fmt.Errorf("peek %s: %w", rawURL, err)
	}

	trim := bytes.TrimSpace(sample)
	if len(trim) == 0 {
		return model.SchemaInfo{}, errors.New("empty response body")
	}

	switch trim[0] {
	case '{', '[':
		return p.schemaFromRemoteDocument(trim)
	case '<':
		return p.schemaFromHTMLTable(trim)
	default:
		return p.schemaFromRemoteDelimited(src.Config, sample)
	}
}

// schemaFromRemoteDocument profiles a JSON payload that may have been
// cut mid-record by the byte cap: whatever decoded cleanly is kept and
// the truncated tail is dropped.
func (p *Profiler) schemaFromRemoteDocument(sample []byte) (model.SchemaInfo, error) {
	recs, err := sampleDocumentRecords(sample, p.opts.SampleRows)
	if len(recs) == 0 {
		if err != nil {
			return model.SchemaInfo{}, fmt.Errorf("decode response: %w", err)
		}
		return model.EmptySchema(), nil
	}
	cols, flat := flattenRecords(recs)
	return schemaFromRecords(cols, flat, p.opts.PreviewRows), nil
}

// schemaFromHTMLTable extracts the first <table> on the page. The first
// row with cells supplies the headers, the rest become sample rows.
// net/html tolerates the truncated markup a byte-capped peek produces.
func (p *Profiler) schemaFromHTMLTable(sample []byte) (model.SchemaInfo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(sample))
	if err != nil {
		return model.SchemaInfo{}, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return model.SchemaInfo{}, errors.New("page has no table")
	}

	var headers []string
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) == 0 {
			return
		}
		if headers == nil {
			headers = cells
			return
		}
		if len(rows) < p.opts.SampleRows {
			rows = append(rows, cells)
		}
	})
	if headers == nil {
		return model.SchemaInfo{}, errors.New("table has no rows")
	}
	return schemaFromGrid(headers, rows, p.opts.PreviewRows), nil
}

func (p *Profiler) schemaFromRemoteDelimited(cfg model.Config, sample []byte) (model.SchemaInfo, error) {
	// Cut at the last newline so a half-fetched trailing record is dropped.
	if i := bytes.LastIndexByte(sample, '\n'); i > 0 {
		sample = sample[:i+1]
	}
	r, err := decodeReader(bytes.NewReader(sample), cfg.String("encoding", ""))
	if err != nil {
		return model.SchemaInfo{}, err
	}
	headers, rows, err := readDelimitedSample(r, cfg.Rune("delimiter", ','), p.opts.SampleRows)
	if err != nil {
		return model.SchemaInfo{}, err
	}
	return schemaFromGrid(headers, rows, p.opts.PreviewRows), nil
}
