package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ingest service layer.
var (
	ErrReportNotFound    = errors.New("campaign report not found")
	ErrDuplicateCampaign = errors.New("a campaign with this name already exists")
	ErrUploadInProgress  = errors.New("an upload for this campaign is already in progress")
	ErrUnknownKind       = errors.New("unknown record kind")
	ErrReportIDTaken     = errors.New("report id already in use")
)

// ValidationErrorKind classifies client-fixable input problems.
type ValidationErrorKind string

const (
	MissingField        ValidationErrorKind = "missing_field"
	UnsupportedFile     ValidationErrorKind = "unsupported_file"
	FileTooLarge        ValidationErrorKind = "file_too_large"
	NotDecodable        ValidationErrorKind = "not_decodable"
	EmptyPayload        ValidationErrorKind = "empty_payload"
	ColumnCountMismatch ValidationErrorKind = "column_count_mismatch"
	RequiredFieldEmpty  ValidationErrorKind = "required_field_empty"
)

// ValidationError is returned for any input the user can fix and re-upload.
// Line is the 1-based data row (header excluded) when the problem is tied to
// a row, zero otherwise.
type ValidationError struct {
	Kind     ValidationErrorKind
	Line     int
	Found    int
	Expected string
	Field    string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("%s is required", e.Field)
	case UnsupportedFile:
		return "only .csv files are accepted"
	case FileTooLarge:
		return fmt.Sprintf("file exceeds the %s upload limit", e.Expected)
	case NotDecodable:
		return "file is not valid UTF-8 text"
	case EmptyPayload:
		return "the CSV file must contain a header and at least one data row"
	case ColumnCountMismatch:
		return fmt.Sprintf("row %d: expected %s columns, found %d", e.Line, e.Expected, e.Found)
	case RequiredFieldEmpty:
		return fmt.Sprintf("row %d: %s is empty", e.Line, e.Field)
	}
	return string(e.Kind)
}

// PersistenceErrorKind classifies storage failures.
type PersistenceErrorKind string

const (
	ReportWriteFailed PersistenceErrorKind = "report_write_failed"
	BatchInsertFailed PersistenceErrorKind = "batch_insert_failed"
)

// PersistenceError reports a storage failure. For BatchInsertFailed,
// PersistedBeforeFailure holds the rows committed by earlier batches; those
// rows stay committed.
type PersistenceError struct {
	Kind                   PersistenceErrorKind
	ReportID               string
	PersistedBeforeFailure int
	Err                    error
}

func (e *PersistenceError) Error() string {
	switch e.Kind {
	case ReportWriteFailed:
		return fmt.Sprintf("saving the campaign report: %v", e.Err)
	case BatchInsertFailed:
		return fmt.Sprintf("saving records for report %s: %d records saved before failure: %v",
			e.ReportID, e.PersistedBeforeFailure, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FileTooLargeError builds the error for uploads over limit bytes.
func FileTooLargeError(limit int64) *ValidationError {
	return &ValidationError{Kind: FileTooLarge, Expected: formatBytes(limit)}
}

func formatBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}

// IsValidation reports whether err is (or wraps) a *ValidationError of the
// given kind. An empty kind matches any validation error.
func IsValidation(err error, kind ValidationErrorKind) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	return kind == "" || ve.Kind == kind
}
