package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewProblemDetail(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	problem := NewProblemDetail(http.StatusTeapot, "I'm a teapot", "short and stout")

	if problem.Type != "https://chronicler.io/problems/418" {
		t.Errorf("unexpected type %q", problem.Type)
	}

	if problem.Status != http.StatusTeapot || problem.Title != "I'm a teapot" {
		t.Errorf("unexpected problem %+v", problem)
	}
}

func TestProblemDetailBuilders(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	problem := BadRequest("bad input").
		WithInstance("/api/meetings").
		WithCorrelationID("abc-123")

	if problem.Instance != "/api/meetings" {
		t.Errorf("expected instance /api/meetings, got %q", problem.Instance)
	}

	if problem.CorrelationID != "abc-123" {
		t.Errorf("expected correlation id abc-123, got %q", problem.CorrelationID)
	}
}

func TestErrorConstructorStatuses(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cases := []struct {
		problem *ProblemDetail
		status  int
	}{
		{InternalServerError("x"), http.StatusInternalServerError},
		{BadRequest("x"), http.StatusBadRequest},
		{NotFound("x"), http.StatusNotFound},
		{MethodNotAllowed("x"), http.StatusMethodNotAllowed},
		{Forbidden("x"), http.StatusForbidden},
		{UnprocessableEntity("x"), http.StatusUnprocessableEntity},
		{PayloadTooLarge("x"), http.StatusRequestEntityTooLarge},
	}

	for _, tc := range cases {
		if tc.problem.Status != tc.status {
			t.Errorf("expected status %d, got %d", tc.status, tc.problem.Status)
		}
	}
}

func TestWriteErrorResponse(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/meetings/bogus", nil)

	WriteErrorResponse(rec, req, logger, NotFound("Meeting not found"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	if got := rec.Header().Get("Content-Type"); got != "application/problem+json" {
		t.Errorf("expected problem+json content type, got %q", got)
	}

	var problem ProblemDetail
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("failed to decode problem: %v", err)
	}

	// Instance defaults to the request path when unset
	if problem.Instance != "/api/meetings/bogus" {
		t.Errorf("expected instance to default to request path, got %q", problem.Instance)
	}
}
