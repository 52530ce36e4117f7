package ingestion

import (
	"errors"
	"testing"
)

func TestPipelineError_Format(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	recordErr := newRecordError("https://example.com/feed.json", 4,
		ErrorTypeRecordValidation, "workgroup: required", nil)

	want := "record_validation_error [record 4]: workgroup: required"
	if recordErr.Error() != want {
		t.Errorf("expected %q, got %q", want, recordErr.Error())
	}

	sourceErr := newSourceError("https://example.com/feed.json",
		ErrorTypeHTTP, "unexpected status 503", nil)

	want = "http_error: unexpected status 503"
	if sourceErr.Error() != want {
		t.Errorf("expected %q, got %q", want, sourceErr.Error())
	}

	if sourceErr.RecordIndex != -1 {
		t.Errorf("source-level errors carry record index -1, got %d", sourceErr.RecordIndex)
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cause := errors.New("underlying cause")
	pipeErr := newSourceError("https://example.com/feed.json", ErrorTypeTransport, "dial failed", cause)

	if !errors.Is(pipeErr, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}
