package timelog

import "errors"

var (
	ErrUnreadableWorkbook = errors.New("workbook could not be read")
	ErrEmptyWorkbook      = errors.New("workbook contains no rows")
	ErrUnsupportedLayout  = errors.New("workbook layout not recognized as a time-clock export")
	ErrUnsupportedFormat  = errors.New("unsupported file format")
)
