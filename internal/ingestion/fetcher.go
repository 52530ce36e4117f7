package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultFetchTimeout bounds one document fetch, connection to full body.
const DefaultFetchTimeout = 30 * time.Second

// maxDocumentBytes caps a fetched document. Feeds hold tens to low
// thousands of records; anything beyond this is a misbehaving source.
const maxDocumentBytes = 64 << 20

// Fetcher retrieves JSON documents from source URLs. It never retries:
// sources are re-ingested on schedule and deterministic identity makes the
// retry free, so retry policy stays out of the fetch layer.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewFetcher creates a fetcher with the given per-call timeout. A
// non-positive timeout falls back to DefaultFetchTimeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch retrieves the document at sourceURL and decodes it into an untyped
// array of records. Every failure is classified: http_error carries the
// status, timeouts and transport failures are distinguished, and a body
// that parses but is not an array is a shape_error.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, newSourceError(sourceURL, ErrorTypeTransport, err.Error(), err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, newSourceError(sourceURL,
				ErrorTypeTimeout, fmt.Sprintf("fetch exceeded %s", f.timeout), err)
		}

		return nil, newSourceError(sourceURL, ErrorTypeTransport, err.Error(), err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newSourceError(sourceURL,
			ErrorTypeHTTP, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, newSourceError(sourceURL,
				ErrorTypeTimeout, fmt.Sprintf("fetch exceeded %s", f.timeout), err)
		}

		return nil, newSourceError(sourceURL, ErrorTypeTransport, err.Error(), err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		// Distinguish a valid JSON body with the wrong root from junk.
		if json.Valid(body) {
			return nil, newSourceError(sourceURL, ErrorTypeShape, ErrNotArray.Error(), ErrNotArray)
		}

		return nil, newSourceError(sourceURL, ErrorTypeJSONParse, err.Error(), err)
	}

	return records, nil
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var timeoutErr interface{ Timeout() bool }

	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
