package profile

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"datalens/internal/model"
)

//
// readDelimitedSample
//

// TestReadDelimitedSample verifies header handling and best-effort row
// sampling: misaligned rows are skipped, fields are trimmed, and the
// read stops at the cap.
func TestReadDelimitedSample(t *testing.T) {
	t.Parallel()

	in := "a, b ,c\n1,2,3\nshort,row\n4 , 5 ,6\nx,y,z,extra\n7,8,9\n"
	headers, rows, err := readDelimitedSample(strings.NewReader(in), ',', 2)
	if err != nil {
		t.Fatalf("readDelimitedSample: %v", err)
	}

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(headers, want) {
		t.Fatalf("headers = %v, want %v", headers, want)
	}
	if want := [][]string{{"1", "2", "3"}, {"4", "5", "6"}}; !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

// TestReadDelimitedSample_BOM verifies the byte-order mark is stripped
// from the first header.
func TestReadDelimitedSample_BOM(t *testing.T) {
	t.Parallel()

	headers, _, err := readDelimitedSample(strings.NewReader("\ufeffid,name\n1,a\n"), ',', 10)
	if err != nil {
		t.Fatalf("readDelimitedSample: %v", err)
	}
	if headers[0] != "id" {
		t.Fatalf("headers[0] = %q, want %q", headers[0], "id")
	}
}

// TestReadDelimitedSample_Empty verifies empty input is an error: there
// is no header to profile.
func TestReadDelimitedSample_Empty(t *testing.T) {
	t.Parallel()

	if _, _, err := readDelimitedSample(strings.NewReader(""), ',', 10); err == nil {
		t.Fatal("expected error for empty input")
	}
}

//
// profileDelimited
//

// TestProfileDelimited verifies end-to-end delimited profiling of an
// inline payload: schema statistics, type inference, and the preview.
func TestProfileDelimited(t *testing.T) {
	t.Parallel()

	src := model.Source{
		Name: "orders",
		Kind: model.SourceDelimited,
		Config: model.Config{
			"data": "order_id,amount,order_date,comment\n" +
				"1,9.99,2024-01-02,first\n" +
				"2,12.50,2024-01-03,\n" +
				"3,7.00,2024-01-04,gift\n",
		},
	}

	res, err := New(Options{}, zap.NewNop()).Profile(context.Background(), src)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if res.Degraded() {
		t.Fatalf("unexpected degraded result: %v", res.Err)
	}

	si := res.Schema
	if want := []string{"order_id", "amount", "order_date", "comment"}; !reflect.DeepEqual(si.Columns, want) {
		t.Fatalf("Columns = %v, want %v", si.Columns, want)
	}
	if si.RowCount != 3 {
		t.Fatalf("RowCount = %d, want 3", si.RowCount)
	}
	if si.Types["order_id"] != "integer" || si.Types["amount"] != "float" || si.Types["order_date"] != "datetime" {
		t.Fatalf("Types = %v", si.Types)
	}
	if si.NullCounts["comment"] != 1 {
		t.Fatalf("NullCounts[comment] = %d, want 1", si.NullCounts["comment"])
	}
	if si.DistinctCounts["order_id"] != 3 {
		t.Fatalf("DistinctCounts[order_id] = %d, want 3", si.DistinctCounts["order_id"])
	}
	if len(si.Sample) != 3 {
		t.Fatalf("Sample len = %d, want 3", len(si.Sample))
	}
}

// TestProfileDelimited_SemicolonDelimiter verifies the configured
// delimiter is honored.
func TestProfileDelimited_SemicolonDelimiter(t *testing.T) {
	t.Parallel()

	src := model.Source{
		Kind: model.SourceDelimited,
		Config: model.Config{
			"data":      "a;b\n1;2\n",
			"delimiter": ";",
		},
	}

	res, err := New(Options{}, zap.NewNop()).Profile(context.Background(), src)
	if err != nil || res.Degraded() {
		t.Fatalf("Profile: err=%v, degraded=%v", err, res.Err)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(res.Schema.Columns, want) {
		t.Fatalf("Columns = %v, want %v", res.Schema.Columns, want)
	}
}

// TestProfileDelimited_Windows1251 verifies non-UTF-8 payloads decode
// through the configured encoding name.
func TestProfileDelimited_Windows1251(t *testing.T) {
	t.Parallel()

	raw, _, err := transform.String(charmap.Windows1251.NewEncoder(), "город,импорт\nМосква,1\n")
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	src := model.Source{
		Kind: model.SourceDelimited,
		Config: model.Config{
			"data":     raw,
			"encoding": "windows-1251",
		},
	}

	res, err := New(Options{}, zap.NewNop()).Profile(context.Background(), src)
	if err != nil || res.Degraded() {
		t.Fatalf("Profile: err=%v, degraded=%v", err, res.Err)
	}
	if want := []string{"город", "импорт"}; !reflect.DeepEqual(res.Schema.Columns, want) {
		t.Fatalf("Columns = %v, want %v", res.Schema.Columns, want)
	}
	if res.Schema.Sample[0]["город"] != "Москва" {
		t.Fatalf("Sample = %v", res.Schema.Sample)
	}
}

// TestProfileDelimited_UnknownEncoding verifies a bad encoding name
// degrades the result rather than silently mangling the sample.
func TestProfileDelimited_UnknownEncoding(t *testing.T) {
	t.Parallel()

	src := model.Source{
		Kind: model.SourceDelimited,
		Config: model.Config{
			"data":     "a,b\n1,2\n",
			"encoding": "klingon-8",
		},
	}

	res, err := New(Options{}, zap.NewNop()).Profile(context.Background(), src)
	if err != nil {
		t.Fatalf("Profile returned hard error for data failure: %v", err)
	}
	if !res.Degraded() {
		t.Fatal("expected degraded result for unknown encoding")
	}
}
