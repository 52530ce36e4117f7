package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// structureProbeLimit bounds how many agenda items of the first record the
// structure gate inspects. The gate is a cheap compatibility probe, not a
// full validation pass.
const structureProbeLimit = 5

// requiredTopLevelFields are the fields every record must carry for the
// document to pass the structure gate. The schema is otherwise open:
// additional fields anywhere are permitted and preserved in raw_json.
var requiredTopLevelFields = []string{
	"workgroup", "workgroup_id", "meetingInfo", "agendaItems", "tags", "type",
}

// ValidateStructure runs the document-level structure gate over a fetched
// record array. It examines only the first record: required top-level
// fields, meetingInfo carrying a date, agendaItems being an array, and the
// child collections of the first few agenda items being arrays when present.
//
// An empty document passes. Failure aborts the entire source with
// validation_error but never aborts the run.
func ValidateStructure(records []json.RawMessage) error {
	if len(records) == 0 {
		return nil
	}

	var first map[string]json.RawMessage
	if err := json.Unmarshal(records[0], &first); err != nil {
		return fmt.Errorf("%w: first record is not an object", ErrStructureGate)
	}

	for _, field := range requiredTopLevelFields {
		if _, ok := first[field]; !ok {
			return fmt.Errorf("%w: missing required field %q", ErrStructureGate, field)
		}
	}

	var info map[string]json.RawMessage
	if err := json.Unmarshal(first["meetingInfo"], &info); err != nil {
		return fmt.Errorf("%w: meetingInfo is not an object", ErrStructureGate)
	}

	if _, ok := info["date"]; !ok {
		return fmt.Errorf("%w: meetingInfo.date is missing", ErrStructureGate)
	}

	var agendaItems []map[string]json.RawMessage
	if err := json.Unmarshal(first["agendaItems"], &agendaItems); err != nil {
		return fmt.Errorf("%w: agendaItems is not an array", ErrStructureGate)
	}

	for i, item := range agendaItems {
		if i >= structureProbeLimit {
			break
		}

		for _, field := range []string{"actionItems", "decisionItems", "discussionPoints"} {
			raw, ok := item[field]
			if !ok || isJSONNull(raw) {
				continue
			}

			var probe []json.RawMessage
			if err := json.Unmarshal(raw, &probe); err != nil {
				return fmt.Errorf("%w: agendaItems[%d].%s is not an array", ErrStructureGate, i, field)
			}
		}
	}

	return nil
}

// Wire shapes for the record gate. These decode permissively; all strictness
// lives in the ParseRecord checks below.
type (
	rawRecord struct {
		ID          string            `json:"id"`
		Workgroup   string            `json:"workgroup"`
		WorkgroupID string            `json:"workgroup_id"` //nolint:tagliatelle
		MeetingInfo *rawMeetingInfo   `json:"meetingInfo"`
		AgendaItems []json.RawMessage `json:"agendaItems"`
		Tags        json.RawMessage   `json:"tags"`
		Type        string            `json:"type"`
	}

	rawMeetingInfo struct {
		Date             *string         `json:"date"`
		Host             string          `json:"host"`
		Documenter       string          `json:"documenter"`
		Attendees        []string        `json:"attendees"`
		Purpose          string          `json:"purpose"`
		VideoLinks       []string        `json:"videoLinks"`
		WorkingDocs      json.RawMessage `json:"workingDocs"`
		TimestampedVideo json.RawMessage `json:"timestampedVideo"`
	}

	rawAgendaItem struct {
		ID               string            `json:"id"`
		Status           string            `json:"status"`
		ActionItems      []json.RawMessage `json:"actionItems"`
		DecisionItems    []json.RawMessage `json:"decisionItems"`
		DiscussionPoints []json.RawMessage `json:"discussionPoints"`
	}

	rawActionItem struct {
		ID       string  `json:"id"`
		Text     *string `json:"text"`
		Assignee string  `json:"assignee"`
		DueDate  string  `json:"dueDate"`
		Status   string  `json:"status"`
	}

	rawDecisionItem struct {
		ID          string `json:"id"`
		Decision    string `json:"decision"`
		Rationale   string `json:"rationale"`
		EffectScope string `json:"effectScope"`
	}
)

// ParseRecord runs the record gate: it parses one raw record into the strict
// internal model, trimming text, normalizing null collections to empty ones,
// validating every id, and accumulating warnings for the two tolerated
// losses (action items without text, coerced discussion points).
//
// Any returned error wraps ErrRecordGate and names the offending field path.
func ParseRecord(raw json.RawMessage) (*MeetingRecord, error) {
	var wire rawRecord
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: record is not a well-formed object: %w", ErrRecordGate, err)
	}

	workgroup := strings.TrimSpace(wire.Workgroup)
	if workgroup == "" {
		return nil, fmt.Errorf("%w: workgroup: required", ErrRecordGate)
	}

	workgroupID, err := uuid.Parse(strings.TrimSpace(wire.WorkgroupID))
	if err != nil {
		return nil, fmt.Errorf("%w: workgroup_id: not a UUID: %q", ErrRecordGate, wire.WorkgroupID)
	}

	if wire.MeetingInfo == nil {
		return nil, fmt.Errorf("%w: meetingInfo: required", ErrRecordGate)
	}

	if wire.MeetingInfo.Date == nil {
		return nil, fmt.Errorf("%w: meetingInfo.date: required", ErrRecordGate)
	}

	date, err := ParseMeetingDate(*wire.MeetingInfo.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: meetingInfo.date: %w: %q", ErrRecordGate, err, *wire.MeetingInfo.Date)
	}

	record := &MeetingRecord{
		Workgroup:   workgroup,
		WorkgroupID: workgroupID,
		Info: MeetingInfo{
			Date:             date,
			Host:             strings.TrimSpace(wire.MeetingInfo.Host),
			Documenter:       strings.TrimSpace(wire.MeetingInfo.Documenter),
			Attendees:        trimNonEmpty(wire.MeetingInfo.Attendees),
			Purpose:          strings.TrimSpace(wire.MeetingInfo.Purpose),
			VideoLinks:       trimNonEmpty(wire.MeetingInfo.VideoLinks),
			WorkingDocs:      wire.MeetingInfo.WorkingDocs,
			TimestampedVideo: wire.MeetingInfo.TimestampedVideo,
		},
		Tags: wire.Tags,
		Type: strings.TrimSpace(wire.Type),
		Raw:  raw,
	}

	// A parseable source UUID wins; anything else falls through to derivation.
	if id, idErr := uuid.Parse(strings.TrimSpace(wire.ID)); idErr == nil {
		record.ID = id
	}

	for i, rawItem := range wire.AgendaItems {
		item, err := parseAgendaItem(rawItem, i, record)
		if err != nil {
			return nil, err
		}

		record.AgendaItems = append(record.AgendaItems, *item)
	}

	return record, nil
}

// parseAgendaItem parses one agenda entry, appending warnings to the record.
func parseAgendaItem(raw json.RawMessage, index int, record *MeetingRecord) (*AgendaItem, error) {
	var wire rawAgendaItem
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: agendaItems[%d]: not an object", ErrRecordGate, index)
	}

	item := &AgendaItem{
		Status:     strings.TrimSpace(wire.Status),
		OrderIndex: index,
		Raw:        raw,
	}

	id, err := parseOptionalID(wire.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: agendaItems[%d].id: %w", ErrRecordGate, index, err)
	}

	item.ID = id

	for j, rawAction := range wire.ActionItems {
		path := fmt.Sprintf("agendaItems[%d].actionItems[%d]", index, j)

		var action rawActionItem
		if err := json.Unmarshal(rawAction, &action); err != nil {
			return nil, fmt.Errorf("%w: %s: not an object", ErrRecordGate, path)
		}

		// The one tolerated silent filter: elements without text are
		// dropped, counted, and surfaced as a validation warning.
		if action.Text == nil || strings.TrimSpace(*action.Text) == "" {
			record.Warnings = append(record.Warnings, path+": action item dropped (missing text)")

			continue
		}

		actionID, err := parseOptionalID(action.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.id: %w", ErrRecordGate, path, err)
		}

		item.ActionItems = append(item.ActionItems, ActionItem{
			ID:       actionID,
			Text:     strings.TrimSpace(*action.Text),
			Assignee: strings.TrimSpace(action.Assignee),
			DueDate:  strings.TrimSpace(action.DueDate),
			Status:   strings.TrimSpace(action.Status),
			Raw:      rawAction,
		})
	}

	for j, rawDecision := range wire.DecisionItems {
		path := fmt.Sprintf("agendaItems[%d].decisionItems[%d]", index, j)

		var decision rawDecisionItem
		if err := json.Unmarshal(rawDecision, &decision); err != nil {
			return nil, fmt.Errorf("%w: %s: not an object", ErrRecordGate, path)
		}

		text := strings.TrimSpace(decision.Decision)
		if text == "" {
			return nil, fmt.Errorf("%w: %s.decision: required", ErrRecordGate, path)
		}

		decisionID, err := parseOptionalID(decision.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.id: %w", ErrRecordGate, path, err)
		}

		item.DecisionItems = append(item.DecisionItems, DecisionItem{
			ID:          decisionID,
			Decision:    text,
			Rationale:   strings.TrimSpace(decision.Rationale),
			EffectScope: strings.TrimSpace(decision.EffectScope),
			Raw:         rawDecision,
		})
	}

	for j, rawPoint := range wire.DiscussionPoints {
		path := fmt.Sprintf("agendaItems[%d].discussionPoints[%d]", index, j)

		point, err := parseDiscussionPoint(rawPoint)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRecordGate, path, err)
		}

		if point.Coerced {
			record.Warnings = append(record.Warnings, path+": discussion point coerced to string")
		}

		item.DiscussionPoints = append(item.DiscussionPoints, *point)
	}

	return item, nil
}

// parseDiscussionPoint normalizes the polymorphic discussion-point input:
// a bare string, an object with a "point" field, or a single-key object
// whose value becomes the point text. String coercion of the whole value is
// the last resort and is flagged as a warning upstream.
func parseDiscussionPoint(raw json.RawMessage) (*DiscussionPoint, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, fmt.Errorf("point text is empty")
		}

		return &DiscussionPoint{Point: trimmed, Raw: raw}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("neither a string nor an object")
	}

	point := &DiscussionPoint{Raw: raw}

	if rawID, ok := obj["id"]; ok {
		var idStr string
		if err := json.Unmarshal(rawID, &idStr); err != nil {
			return nil, fmt.Errorf("id: not a string")
		}

		id, err := parseOptionalID(idStr)
		if err != nil {
			return nil, fmt.Errorf("id: %w", err)
		}

		point.ID = id
		delete(obj, "id")
	}

	// An id with no accompanying text is not a discussion point.
	if len(obj) == 0 {
		return nil, fmt.Errorf("point text is empty")
	}

	if rawPoint, ok := obj["point"]; ok {
		if err := json.Unmarshal(rawPoint, &text); err == nil && strings.TrimSpace(text) != "" {
			point.Point = strings.TrimSpace(text)

			return point, nil
		}
	}

	// Single-key object: the lone value becomes the point text.
	if len(obj) == 1 {
		for _, v := range obj {
			if err := json.Unmarshal(v, &text); err == nil && strings.TrimSpace(text) != "" {
				point.Point = strings.TrimSpace(text)
				point.Coerced = true

				return point, nil
			}
		}
	}

	// Last resort: the compact JSON of the value itself.
	coerced := strings.TrimSpace(string(raw))
	if coerced == "" || coerced == "{}" || coerced == "null" {
		return nil, fmt.Errorf("point text is empty")
	}

	point.Point = coerced
	point.Coerced = true

	return point, nil
}

// parseOptionalID parses an optional id field: empty is fine (the id is
// derived later), anything else must be a valid UUID.
func parseOptionalID(raw string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return uuid.Nil, nil
	}

	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, fmt.Errorf("not a UUID: %q", raw)
	}

	return id, nil
}

// trimNonEmpty trims every element and drops empties, preserving order.
func trimNonEmpty(values []string) []string {
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// isJSONNull reports whether a raw fragment is the JSON literal null.
func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
