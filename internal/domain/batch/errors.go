package batch

import "errors"

var (
	ErrBatchNotFound          = errors.New("batch not found")
	ErrNoFiles                = errors.New("no files uploaded")
	ErrFileTooLarge           = errors.New("file exceeds the upload size limit")
	ErrNothingToEvaluate      = errors.New("batch has no rows to evaluate")
	ErrMixedMonthsUnconfirmed = errors.New("batch spans several months and needs confirmation")
	ErrNotEvaluated           = errors.New("batch has not been evaluated")
	ErrBindSuperseded         = errors.New("identity binding superseded by a newer one")
	ErrInvalidExportColumn    = errors.New("invalid export column")
	ErrBatchChanged           = errors.New("batch changed while it was being evaluated")
	ErrFileNotFound           = errors.New("file not found in batch")
)
