package ingestion

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

const testWorkgroupID = "7b1e9d60-1111-4c6e-9d53-06a1f170e5d2"

// validRecordJSON builds a well-formed record document for gate tests.
func validRecordJSON() json.RawMessage {
	return json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {
			"date": "2025-03-14",
			"host": "  Ada  ",
			"documenter": "Grace",
			"attendees": ["Ada", " Grace ", ""],
			"purpose": "Weekly sync",
			"videoLinks": ["https://example.com/v1"]
		},
		"agendaItems": [
			{
				"status": "carried out",
				"actionItems": [
					{"text": "Publish the budget", "assignee": "Ada", "status": "todo"}
				],
				"decisionItems": [
					{"decision": "Adopt the proposal", "rationale": "consensus", "effectScope": "mayAffectOtherPeople"}
				],
				"discussionPoints": ["Opening remarks", {"point": "Budget review"}]
			}
		],
		"tags": {"topicsCovered": "budget"},
		"type": "Weekly"
	}`)
}

// ==============================================================================
// Structure gate
// ==============================================================================

func TestValidateStructure_EmptyDocument(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if err := ValidateStructure(nil); err != nil {
		t.Errorf("empty document should pass the structure gate, got %v", err)
	}
}

func TestValidateStructure_ValidDocument(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if err := ValidateStructure([]json.RawMessage{validRecordJSON()}); err != nil {
		t.Errorf("valid document should pass the structure gate, got %v", err)
	}
}

func TestValidateStructure_MissingRequiredField(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	doc := []json.RawMessage{json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [],
		"tags": {},
		"type": "Weekly"
	}`)}

	err := ValidateStructure(doc)
	if !errors.Is(err, ErrStructureGate) {
		t.Fatalf("expected ErrStructureGate, got %v", err)
	}

	if !strings.Contains(err.Error(), "workgroup_id") {
		t.Errorf("error should name the missing field, got %q", err.Error())
	}
}

func TestValidateStructure_MissingDate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	doc := []json.RawMessage{json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"host": "Ada"},
		"agendaItems": [],
		"tags": {},
		"type": "Weekly"
	}`)}

	if err := ValidateStructure(doc); !errors.Is(err, ErrStructureGate) {
		t.Errorf("expected ErrStructureGate for missing meetingInfo.date, got %v", err)
	}
}

func TestValidateStructure_AgendaItemsNotArray(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	doc := []json.RawMessage{json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": {"not": "an array"},
		"tags": {},
		"type": "Weekly"
	}`)}

	if err := ValidateStructure(doc); !errors.Is(err, ErrStructureGate) {
		t.Errorf("expected ErrStructureGate for non-array agendaItems, got %v", err)
	}
}

func TestValidateStructure_ChildCollectionNotArray(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	doc := []json.RawMessage{json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [{"actionItems": "nope"}],
		"tags": {},
		"type": "Weekly"
	}`)}

	if err := ValidateStructure(doc); !errors.Is(err, ErrStructureGate) {
		t.Errorf("expected ErrStructureGate for non-array actionItems, got %v", err)
	}
}

func TestValidateStructure_NullChildCollectionAllowed(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	doc := []json.RawMessage{json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [{"actionItems": null, "discussionPoints": null}],
		"tags": {},
		"type": "Weekly"
	}`)}

	if err := ValidateStructure(doc); err != nil {
		t.Errorf("null child collections should pass the structure gate, got %v", err)
	}
}

func TestValidateStructure_ExtraFieldsAllowed(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// The schema is open: unknown fields anywhere must not fail the gate.
	doc := []json.RawMessage{json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14", "futureField": {"nested": true}},
		"agendaItems": [{"narrative": "long text", "townHallUpdates": "yes"}],
		"tags": {},
		"type": "Weekly",
		"noSummaryGiven": false
	}`)}

	if err := ValidateStructure(doc); err != nil {
		t.Errorf("unknown fields should be tolerated, got %v", err)
	}
}

// ==============================================================================
// Record gate
// ==============================================================================

func TestParseRecord_ValidRecord(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	record, err := ParseRecord(validRecordJSON())
	if err != nil {
		t.Fatalf("ParseRecord() failed for valid record: %v", err)
	}

	if record.Workgroup != "Treasury Guild" {
		t.Errorf("unexpected workgroup %q", record.Workgroup)
	}

	if record.WorkgroupID.String() != testWorkgroupID {
		t.Errorf("unexpected workgroup id %s", record.WorkgroupID)
	}

	if record.Info.Host != "Ada" {
		t.Errorf("host should be trimmed, got %q", record.Info.Host)
	}

	// Empty attendee entries are dropped, the rest trimmed, order preserved.
	wantAttendees := []string{"Ada", "Grace"}
	if len(record.Info.Attendees) != len(wantAttendees) {
		t.Fatalf("expected %d attendees, got %v", len(wantAttendees), record.Info.Attendees)
	}

	for i, want := range wantAttendees {
		if record.Info.Attendees[i] != want {
			t.Errorf("attendees[%d]: expected %q, got %q", i, want, record.Info.Attendees[i])
		}
	}

	if len(record.AgendaItems) != 1 {
		t.Fatalf("expected 1 agenda item, got %d", len(record.AgendaItems))
	}

	item := record.AgendaItems[0]
	if len(item.ActionItems) != 1 || len(item.DecisionItems) != 1 || len(item.DiscussionPoints) != 2 {
		t.Errorf("unexpected child counts: %d actions, %d decisions, %d points",
			len(item.ActionItems), len(item.DecisionItems), len(item.DiscussionPoints))
	}

	if len(record.Warnings) != 0 {
		t.Errorf("clean record should carry no warnings, got %v", record.Warnings)
	}
}

func TestParseRecord_MissingWorkgroup(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	raw := json.RawMessage(`{
		"workgroup": "   ",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [], "tags": {}, "type": "Weekly"
	}`)

	if _, err := ParseRecord(raw); !errors.Is(err, ErrRecordGate) {
		t.Errorf("expected ErrRecordGate for blank workgroup, got %v", err)
	}
}

func TestParseRecord_InvalidWorkgroupID(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	raw := json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "not-a-uuid",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [], "tags": {}, "type": "Weekly"
	}`)

	_, err := ParseRecord(raw)
	if !errors.Is(err, ErrRecordGate) {
		t.Fatalf("expected ErrRecordGate, got %v", err)
	}

	if !strings.Contains(err.Error(), "workgroup_id") {
		t.Errorf("error should name the field path, got %q", err.Error())
	}
}

func TestParseRecord_UnparseableDate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	raw := json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "sometime in March"},
		"agendaItems": [], "tags": {}, "type": "Weekly"
	}`)

	_, err := ParseRecord(raw)
	if !errors.Is(err, ErrRecordGate) {
		t.Fatalf("expected ErrRecordGate, got %v", err)
	}

	if !errors.Is(err, ErrUnparseableDate) {
		t.Errorf("expected wrapped ErrUnparseableDate, got %v", err)
	}
}

func TestParseRecord_SourceIDWins(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	sourceID := "12345678-9abc-4def-8123-456789abcdef"
	raw := json.RawMessage(`{
		"id": "` + sourceID + `",
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [], "tags": {}, "type": "Weekly"
	}`)

	record, err := ParseRecord(raw)
	if err != nil {
		t.Fatalf("ParseRecord() failed: %v", err)
	}

	if record.ID.String() != sourceID {
		t.Errorf("source-supplied id should be preserved, got %s", record.ID)
	}
}

func TestParseRecord_GarbageIDFallsThrough(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// An unparseable top-level id is not an error; identity is derived later.
	raw := json.RawMessage(`{
		"id": "legacy-0042",
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [], "tags": {}, "type": "Weekly"
	}`)

	record, err := ParseRecord(raw)
	if err != nil {
		t.Fatalf("ParseRecord() failed: %v", err)
	}

	if record.ID.String() != "00000000-0000-0000-0000-000000000000" {
		t.Errorf("garbage id should leave record.ID nil, got %s", record.ID)
	}
}

func TestParseRecord_ActionItemWithoutTextDropped(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	raw := json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [{
			"actionItems": [
				{"assignee": "Ada"},
				{"text": "   "},
				{"text": "Real task"}
			]
		}],
		"tags": {}, "type": "Weekly"
	}`)

	record, err := ParseRecord(raw)
	if err != nil {
		t.Fatalf("ParseRecord() failed: %v", err)
	}

	if len(record.AgendaItems[0].ActionItems) != 1 {
		t.Fatalf("expected 1 surviving action item, got %d", len(record.AgendaItems[0].ActionItems))
	}

	if record.AgendaItems[0].ActionItems[0].Text != "Real task" {
		t.Errorf("wrong action item survived: %q", record.AgendaItems[0].ActionItems[0].Text)
	}

	if len(record.Warnings) != 2 {
		t.Errorf("each dropped action item should produce a warning, got %v", record.Warnings)
	}
}

func TestParseRecord_DecisionWithoutTextFails(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	raw := json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [{"decisionItems": [{"rationale": "because"}]}],
		"tags": {}, "type": "Weekly"
	}`)

	_, err := ParseRecord(raw)
	if !errors.Is(err, ErrRecordGate) {
		t.Fatalf("expected ErrRecordGate, got %v", err)
	}

	if !strings.Contains(err.Error(), "decisionItems[0].decision") {
		t.Errorf("error should carry the field path, got %q", err.Error())
	}
}

func TestParseRecord_InvalidChildID(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	raw := json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [{"actionItems": [{"id": "bogus", "text": "Task"}]}],
		"tags": {}, "type": "Weekly"
	}`)

	_, err := ParseRecord(raw)
	if !errors.Is(err, ErrRecordGate) {
		t.Errorf("expected ErrRecordGate for invalid child id, got %v", err)
	}
}

// ==============================================================================
// Discussion point normalization
// ==============================================================================

func TestParseDiscussionPoint_BareString(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	point, err := parseDiscussionPoint(json.RawMessage(`"  Opening remarks  "`))
	if err != nil {
		t.Fatalf("parseDiscussionPoint() failed: %v", err)
	}

	if point.Point != "Opening remarks" {
		t.Errorf("expected trimmed point text, got %q", point.Point)
	}

	if point.Coerced {
		t.Error("bare string is canonical, not a coercion")
	}
}

func TestParseDiscussionPoint_PointObject(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	point, err := parseDiscussionPoint(json.RawMessage(`{"point": "Budget review"}`))
	if err != nil {
		t.Fatalf("parseDiscussionPoint() failed: %v", err)
	}

	if point.Point != "Budget review" || point.Coerced {
		t.Errorf("expected canonical point object handling, got %+v", point)
	}
}

func TestParseDiscussionPoint_SingleKeyObjectCoerced(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	point, err := parseDiscussionPoint(json.RawMessage(`{"topic": "Roadmap"}`))
	if err != nil {
		t.Fatalf("parseDiscussionPoint() failed: %v", err)
	}

	if point.Point != "Roadmap" {
		t.Errorf("expected single-key value as point text, got %q", point.Point)
	}

	if !point.Coerced {
		t.Error("single-key fallback must be flagged as coerced")
	}
}

func TestParseDiscussionPoint_EmptyInputsRejected(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	for _, raw := range []string{`""`, `"   "`, `{}`, `null`} {
		if _, err := parseDiscussionPoint(json.RawMessage(raw)); err == nil {
			t.Errorf("parseDiscussionPoint(%s) should fail", raw)
		}
	}
}

func TestParseDiscussionPoint_IDOnlyObjectRejected(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	raw := json.RawMessage(`{"id": "a5b1c2d3-e4f5-4678-9abc-def012345678"}`)
	if _, err := parseDiscussionPoint(raw); err == nil {
		t.Error("an object carrying only an id has no point text and should fail")
	}
}

func TestParseDiscussionPoint_IDWithSingleKeyText(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	raw := json.RawMessage(`{"id": "a5b1c2d3-e4f5-4678-9abc-def012345678", "topic": "Roadmap"}`)
	point, err := parseDiscussionPoint(raw)
	if err != nil {
		t.Fatalf("parseDiscussionPoint() failed: %v", err)
	}

	if point.Point != "Roadmap" {
		t.Errorf("expected remaining key value as point text, got %q", point.Point)
	}

	if point.ID == uuid.Nil {
		t.Error("id should be carried alongside the coerced text")
	}
}

func TestParseDiscussionPoint_CoercionWarning(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	raw := json.RawMessage(`{
		"workgroup": "Treasury Guild",
		"workgroup_id": "` + testWorkgroupID + `",
		"meetingInfo": {"date": "2025-03-14"},
		"agendaItems": [{"discussionPoints": [{"topic": "Roadmap"}]}],
		"tags": {}, "type": "Weekly"
	}`)

	record, err := ParseRecord(raw)
	if err != nil {
		t.Fatalf("ParseRecord() failed: %v", err)
	}

	if len(record.Warnings) != 1 || !strings.Contains(record.Warnings[0], "coerced") {
		t.Errorf("coerced discussion point should surface a warning, got %v", record.Warnings)
	}
}
