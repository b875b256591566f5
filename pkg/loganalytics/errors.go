package loganalytics

import (
	"errors"
	"fmt"
)

// Configuration errors returned by New.
var (
	ErrMissingWorkspaceID = errors.New("loganalytics: workspace id is required")
	ErrMissingSharedKey   = errors.New("loganalytics: shared key is required")
)

// ErrNilRecords is returned when a submission is attempted with a nil
// record, a nil batch, or an empty batch.
var ErrNilRecords = errors.New("loganalytics: no records to submit")

// InvalidLogTypeError reports a log type that the Data Collector API
// would reject: longer than 100 characters or containing anything other
// than ASCII letters.
type InvalidLogTypeError struct {
	LogType string
}

func (e *InvalidLogTypeError) Error() string {
	return fmt.Sprintf("loganalytics: invalid log type %q (length %d): must be 1-100 alphabetic characters", e.LogType, len(e.LogType))
}

// InvalidFieldError reports a record field whose type is not one of the
// types the Data Collector API can ingest.
type InvalidFieldError struct {
	RecordType string
	Field      string
	FieldType  string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("loganalytics: record %s: field %q has unsupported type %s (allowed: string, bool, float, time.Time, uuid.UUID)", e.RecordType, e.Field, e.FieldType)
}

// StatusError is returned when the ingestion endpoint answers with a
// non-2xx status. The status code and response body are preserved so
// callers can tell a failed request apart from a success with an empty
// body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("loganalytics: ingestion request failed with status %d: %s", e.StatusCode, e.Body)
}
