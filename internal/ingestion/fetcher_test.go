package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fetchErrorType(t *testing.T, err error) ErrorType {
	t.Helper()

	var pipeErr *PipelineError
	if !errors.As(err, &pipeErr) {
		t.Fatalf("expected *PipelineError, got %T: %v", err, err)
	}

	return pipeErr.Type
}

func TestFetch_ValidDocument(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"workgroup": "Treasury Guild"}, {"workgroup": "Dev Guild"}]`))
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)

	records, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestFetch_EmptyArray(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)

	records, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() failed for empty array: %v", err)
	}

	if len(records) != 0 {
		t.Errorf("expected empty document, got %d records", len(records))
	}
}

func TestFetch_HTTPError(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)

	_, err := fetcher.Fetch(context.Background(), server.URL)
	if got := fetchErrorType(t, err); got != ErrorTypeHTTP {
		t.Errorf("expected http_error, got %s", got)
	}
}

func TestFetch_NonArrayRoot(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"meetings": []}`))
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)

	_, err := fetcher.Fetch(context.Background(), server.URL)
	if got := fetchErrorType(t, err); got != ErrorTypeShape {
		t.Errorf("expected shape_error for non-array root, got %s", got)
	}

	if !errors.Is(err, ErrNotArray) {
		t.Errorf("expected wrapped ErrNotArray, got %v", err)
	}
}

func TestFetch_InvalidJSON(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"workgroup": `))
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)

	_, err := fetcher.Fetch(context.Background(), server.URL)
	if got := fetchErrorType(t, err); got != ErrorTypeJSONParse {
		t.Errorf("expected json_parse_error, got %s", got)
	}
}

func TestFetch_Timeout(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-blocked
	}))

	defer func() {
		close(blocked)
		server.Close()
	}()

	fetcher := NewFetcher(50 * time.Millisecond)

	_, err := fetcher.Fetch(context.Background(), server.URL)
	if got := fetchErrorType(t, err); got != ErrorTypeTimeout {
		t.Errorf("expected timeout, got %s", got)
	}
}

func TestFetch_TransportError(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// A server that is already closed refuses the connection.
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	fetcher := NewFetcher(time.Second)

	_, err := fetcher.Fetch(context.Background(), server.URL)
	if got := fetchErrorType(t, err); got != ErrorTypeTransport {
		t.Errorf("expected transport_error, got %s", got)
	}
}

func TestFetch_ErrorsAreSourceFatal(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	for _, errType := range []ErrorType{
		ErrorTypeHTTP, ErrorTypeTimeout, ErrorTypeTransport, ErrorTypeJSONParse, ErrorTypeShape,
	} {
		if !errType.SourceFatal() {
			t.Errorf("%s should be source-fatal", errType)
		}
	}

	for _, errType := range []ErrorType{
		ErrorTypeRecordValidation, ErrorTypeCircularReference, ErrorTypeUniqueViolation, ErrorTypeUnknown,
	} {
		if errType.SourceFatal() {
			t.Errorf("%s should not be source-fatal", errType)
		}
	}
}
