package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// nestedObject builds a JSON object nested to the given depth.
func nestedObject(depth int) json.RawMessage {
	doc := `"leaf"`
	for range depth - 1 {
		doc = `{"child": ` + doc + `}`
	}

	return json.RawMessage(doc)
}

func TestCheckRecordDepth_FlatRecord(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if err := CheckRecordDepth(validRecordJSON()); err != nil {
		t.Errorf("ordinary record should pass the depth guard, got %v", err)
	}
}

func TestCheckRecordDepth_AtTheBound(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if err := CheckRecordDepth(nestedObject(maxNestingDepth)); err != nil {
		t.Errorf("record at the nesting bound should pass, got %v", err)
	}
}

func TestCheckRecordDepth_BeyondTheBound(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	err := CheckRecordDepth(nestedObject(maxNestingDepth + 2))
	if !errors.Is(err, ErrCircularReference) {
		t.Fatalf("expected ErrCircularReference, got %v", err)
	}

	if !strings.Contains(err.Error(), "nesting") {
		t.Errorf("error should mention the nesting bound, got %q", err.Error())
	}
}

func TestCheckRecordDepth_DeepArrays(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	doc := "1"
	for range maxNestingDepth + 1 {
		doc = "[" + doc + "]"
	}

	if err := CheckRecordDepth(json.RawMessage(doc)); !errors.Is(err, ErrCircularReference) {
		t.Errorf("deep array nesting should be rejected, got %v", err)
	}
}

func TestCheckRecordDepth_WideButShallow(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// Breadth never trips the guard, only depth does.
	var sb strings.Builder
	sb.WriteString("{")

	for i := range 500 {
		if i > 0 {
			sb.WriteString(",")
		}

		fmt.Fprintf(&sb, `"key_%d": %d`, i, i)
	}

	sb.WriteString("}")

	if err := CheckRecordDepth(json.RawMessage(sb.String())); err != nil {
		t.Errorf("wide shallow object should pass, got %v", err)
	}
}

func TestCheckRecordDepth_InvalidJSON(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if err := CheckRecordDepth(json.RawMessage(`{broken`)); !errors.Is(err, ErrCircularReference) {
		t.Errorf("unparseable raw_json should be rejected, got %v", err)
	}
}
