package timelog

import "context"

// ParseOptions tunes a single workbook parse.
type ParseOptions struct {
	// EmitNormalized renders a canonical xlsx copy of the parsed punches.
	EmitNormalized bool
	// SampleCap bounds the samples kept per warning.
	SampleCap int
}

// WorkbookParser turns raw spreadsheet bytes into per-day punch rows.
type WorkbookParser interface {
	Parse(ctx context.Context, fileName string, data []byte, opts ParseOptions) (ParsedWorkbook, error)
}

// Merger combines parsed workbooks of one batch.
type Merger interface {
	Merge(workbooks []ParsedWorkbook) MergeResult
}
