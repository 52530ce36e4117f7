package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Namespace constants for version-5 UUID derivation. These are published
// alongside the schema and must never change: changing a namespace reissues
// every derived id and breaks re-ingest convergence.
var (
	nsMeeting    = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	nsAgenda     = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	nsAction     = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")
	nsDecision   = uuid.MustParse("6ba7b813-9dad-11d1-80b4-00c04fd430c8")
	nsDiscussion = uuid.MustParse("6ba7b814-9dad-11d1-80b4-00c04fd430c8")
)

// contentHashLen is the number of hex characters of the SHA-256 content hash
// mixed into the meeting identity key.
const contentHashLen = 16

// MeetingID returns the deterministic identity for a validated record.
//
// A syntactically valid UUID supplied by the source always wins. Otherwise
// the id is uuid5(nsMeeting, "{workgroup_id}:{date}:{hash16}") where hash16
// is the first 16 hex chars of SHA-256 over workgroup_id, date, host,
// purpose, and agenda count. Mixing the content hash guarantees two distinct
// meetings sharing a (workgroup, date) pair still receive distinct ids,
// while byte-identical inputs converge on the same id.
func MeetingID(record *MeetingRecord) uuid.UUID {
	if record.ID != uuid.Nil {
		return record.ID
	}

	date := record.Info.Date.Format("2006-01-02")

	content := fmt.Sprintf("%s:%s:%s:%s:%d",
		record.WorkgroupID, date, record.Info.Host, record.Info.Purpose, len(record.AgendaItems))
	sum := sha256.Sum256([]byte(content))
	hash16 := hex.EncodeToString(sum[:])[:contentHashLen]

	key := fmt.Sprintf("%s:%s:%s", record.WorkgroupID, date, hash16)

	return uuid.NewSHA1(nsMeeting, []byte(key))
}

// AgendaItemID returns the agenda item identity: the source UUID when
// present, else uuid5(nsAgenda, "{meeting_id}:agenda:{order_index}").
func AgendaItemID(meetingID uuid.UUID, item *AgendaItem) uuid.UUID {
	if item.ID != uuid.Nil {
		return item.ID
	}

	return uuid.NewSHA1(nsAgenda, fmt.Appendf(nil, "%s:agenda:%d", meetingID, item.OrderIndex))
}

// ActionItemID returns the action item identity: the source UUID when
// present, else uuid5(nsAction, "{agenda_item_id}:action:{index}").
func ActionItemID(agendaItemID uuid.UUID, item *ActionItem, index int) uuid.UUID {
	if item.ID != uuid.Nil {
		return item.ID
	}

	return uuid.NewSHA1(nsAction, fmt.Appendf(nil, "%s:action:%d", agendaItemID, index))
}

// DecisionItemID returns the decision item identity: the source UUID when
// present, else uuid5(nsDecision, "{agenda_item_id}:decision:{index}").
func DecisionItemID(agendaItemID uuid.UUID, item *DecisionItem, index int) uuid.UUID {
	if item.ID != uuid.Nil {
		return item.ID
	}

	return uuid.NewSHA1(nsDecision, fmt.Appendf(nil, "%s:decision:%d", agendaItemID, index))
}

// DiscussionPointID returns the discussion point identity: the source UUID
// when present, else uuid5(nsDiscussion, "{agenda_item_id}:discussion:{index}").
func DiscussionPointID(agendaItemID uuid.UUID, point *DiscussionPoint, index int) uuid.UUID {
	if point.ID != uuid.Nil {
		return point.ID
	}

	return uuid.NewSHA1(nsDiscussion, fmt.Appendf(nil, "%s:discussion:%d", agendaItemID, index))
}
