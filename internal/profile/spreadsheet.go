package profile

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"datalens/internal/model"
)

// profileSpreadsheet samples the first sheet of an xlsx workbook. The
// first row is the header; excelize trims trailing empty cells per row,
// so short rows are padded back out to the header width.
func (p *Profiler) profileSpreadsheet(src model.Source) (model.SchemaInfo, error) {
	data, err := readPayload(src.Config)
	if err != nil {
		return model.SchemaInfo{}, err
	}
	return p.schemaFromWorkbook(data)
}

func (p *Profiler) schemaFromWorkbook(data []byte) (model.SchemaInfo, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return model.SchemaInfo{}, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return model.SchemaInfo{}, errors.New("workbook has no sheets")
	}

	all, err := wb.GetRows(sheets[0])
	if err != nil {
		return model.SchemaInfo{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return model.SchemaInfo{}, errors.New("empty sheet")
	}

	headers := make([]string, len(all[0]))
	for i, h := range all[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := all[1:]
	if len(rows) > p.opts.SampleRows {
		rows = rows[:p.opts.SampleRows]
	}
	grid := make([][]string, len(rows))
	for i, row := range rows {
		padded := make([]string, len(headers))
		for j := range headers {
			if j < len(row) {
				padded[j] = strings.TrimSpace(row[j])
			}
		}
		grid[i] = padded
	}
	return schemaFromGrid(headers, grid, p.opts.PreviewRows), nil
}
