package profile

import (
	"context"

	"datalens/internal/model"
	"datalens/internal/relational"
)

// profileTable samples a relational table through internal/relational.
// The connection lives only for the duration of the sample. Driver
// values scan as typed Go values, so record-based inference applies:
// an empty table still yields its column names, typed as text.
func (p *Profiler) profileTable(ctx context.Context, src model.Source) (model.SchemaInfo, error) {
	cols, recs, err := relational.Sample(ctx, src.Config, p.opts.SampleRows)
	if err != nil {
		return model.SchemaInfo{}, err
	}
	return schemaFromRecords(cols, recs, p.opts.PreviewRows), nil
}
