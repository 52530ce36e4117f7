package ingestion

import (
	"errors"
	"fmt"
)

// ErrorType classifies every failure the pipeline can produce. The values
// are persisted verbatim in the error log, so they must not change.
type ErrorType string

// Fetch-layer errors are source-fatal: the source's run closes as failed.
const (
	ErrorTypeHTTP      ErrorType = "http_error"
	ErrorTypeTimeout   ErrorType = "timeout"
	ErrorTypeTransport ErrorType = "transport_error"
	ErrorTypeJSONParse ErrorType = "json_parse_error"
	ErrorTypeShape     ErrorType = "shape_error"
)

// Validation and writer errors. The structure gate is source-fatal; record
// gate, writer, and store failures are record-level and never abort a source.
const (
	ErrorTypeValidation         ErrorType = "validation_error"
	ErrorTypeRecordValidation   ErrorType = "record_validation_error"
	ErrorTypeCircularReference  ErrorType = "circular_reference"
	ErrorTypeDatabaseConnection ErrorType = "database_connection_error"
	ErrorTypeSQLSyntax          ErrorType = "sql_syntax_error"
	ErrorTypeUniqueViolation    ErrorType = "unique_violation"
	ErrorTypeUnknown            ErrorType = "unknown_error"
)

// SourceFatal reports whether this error type terminates the whole source.
func (t ErrorType) SourceFatal() bool {
	switch t {
	case ErrorTypeHTTP, ErrorTypeTimeout, ErrorTypeTransport,
		ErrorTypeJSONParse, ErrorTypeShape, ErrorTypeValidation:
		return true
	default:
		return false
	}
}

// Sentinel errors for boundary checks with errors.Is().
var (
	// ErrStructureGate indicates the document failed the structure gate.
	ErrStructureGate = errors.New("structure validation failed")

	// ErrRecordGate indicates a single record failed the record gate.
	ErrRecordGate = errors.New("record validation failed")

	// ErrCircularReference indicates a raw_json tree exceeded the nesting
	// bound or contained a self-cycle.
	ErrCircularReference = errors.New("circular reference in record")

	// ErrNotArray indicates a fetched document whose root is not a JSON array.
	ErrNotArray = errors.New("document root is not an array")
)

// PipelineError carries the classified error context that the coordinator
// turns into an error-log row. RecordIndex is -1 for source-level failures.
type PipelineError struct {
	SourceURL   string
	RecordIndex int
	Type        ErrorType
	Message     string
	Err         error // wrapped cause, may be nil
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.RecordIndex >= 0 {
		return fmt.Sprintf("%s [record %d]: %s", e.Type, e.RecordIndex, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped cause for errors.Is/As chains.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// newSourceError builds a source-level PipelineError (no record index).
func newSourceError(sourceURL string, errType ErrorType, message string, cause error) *PipelineError {
	return &PipelineError{
		SourceURL:   sourceURL,
		RecordIndex: -1,
		Type:        errType,
		Message:     message,
		Err:         cause,
	}
}

// newRecordError builds a record-level PipelineError.
func newRecordError(sourceURL string, index int, errType ErrorType, message string, cause error) *PipelineError {
	return &PipelineError{
		SourceURL:   sourceURL,
		RecordIndex: index,
		Type:        errType,
		Message:     message,
		Err:         cause,
	}
}
