package batch

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

type FileStatus string

const (
	FileParsed FileStatus = "parsed"
	FileFailed FileStatus = "failed"
)

// UploadedFile is one raw spreadsheet received for a batch.
type UploadedFile struct {
	Name string
	Data []byte
}

// FileError isolates a parse failure to its file.
type FileError struct {
	FileName string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.FileName, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// FileResult is the per-file outcome of an upload.
type FileResult struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Size          int            `json:"size"`
	Status        FileStatus     `json:"status"`
	Layout        timelog.Layout `json:"layout,omitempty"`
	SheetName     string         `json:"sheet_name,omitempty"`
	EmployeeCount int            `json:"employee_count"`
	TotalPunches  int            `json:"total_punches"`
	WarningCount  int            `json:"warning_count"`
	Error         string         `json:"error,omitempty"`
	ParsedAt      time.Time      `json:"parsed_at"`
}

type BlockingCode string

const (
	BlockMixedMonths          BlockingCode = "MIXED_MONTHS_UNCONFIRMED"
	BlockManualPeriodRequired BlockingCode = "MANUAL_PERIOD_REQUIRED"
)

// BlockingCondition is a state that prevents evaluation until the operator
// proceeds or cancels.
type BlockingCondition struct {
	Code    BlockingCode `json:"code"`
	Message string       `json:"message"`
	Months  []string     `json:"months,omitempty"`
}

type EventType string

const (
	EventFileParsed          EventType = "file.parsed"
	EventFileFailed          EventType = "file.failed"
	EventMerged              EventType = "batch.merged"
	EventEvaluationStarted   EventType = "evaluation.started"
	EventEvaluationPartial   EventType = "evaluation.partial"
	EventIdentitiesResolved  EventType = "identities.resolved"
	EventEvaluationCompleted EventType = "evaluation.completed"
	EventIdentityBound       EventType = "identity.bound"
	EventBatchReset          EventType = "batch.reset"
)

// Event is a progress notification published to batch subscribers.
type Event struct {
	Type    EventType `json:"type"`
	BatchID string    `json:"batch_id"`
	Data    any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}
