package core

import (
	"encoding/json"
	"fmt"

	"nephro-assistant/pkg"
)

// Agent names the handler that produced an assistant message.
type Agent string

const (
	AgentNone         Agent = ""
	AgentReceptionist Agent = "receptionist"
	AgentClinical     Agent = "clinical"
)

// Role is the author of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryEntry is one message in a conversation.  Entries are never rewritten
// once appended.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Agent   Agent  `json:"agent,omitempty"`
	Content string `json:"content"`
}

// ClassifierWindow is how many trailing history entries the classifier sees.
const ClassifierWindow = 6

// IdentityState is the identity-resolution stage of a session.
type IdentityState int

const (
	IdentityUnknown IdentityState = iota
	IdentityAwaitingDisambiguation
	IdentityResolved
)

// String returns the string representation of an identity state.
func (s IdentityState) String() string {
	switch s {
	case IdentityUnknown:
		return "no_identity"
	case IdentityAwaitingDisambiguation:
		return "awaiting_disambiguation"
	case IdentityResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s IdentityState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *IdentityState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "no_identity", "":
		*s = IdentityUnknown
	case "awaiting_disambiguation":
		*s = IdentityAwaitingDisambiguation
	case "resolved":
		*s = IdentityResolved
	default:
		return fmt.Errorf("unknown identity state %q", string(b))
	}
	return nil
}

// Session is the state of one conversation.  It is mutated in place by a
// turn; the caller is responsible for persisting it and for serializing
// turns that share a session id.
//
// The identity fields change only through bindPatient and
// awaitDisambiguation, which keep PatientName, PatientRecord and the
// candidate list consistent with Identity.
type Session struct {
	ID                string              `json:"id"`
	Identity          IdentityState       `json:"identity"`
	PatientName       string              `json:"patient_name,omitempty"`
	PatientRecord     *pkg.PatientRecord  `json:"patient_record,omitempty"`
	CandidatePatients []pkg.PatientRecord `json:"candidate_patients,omitempty"`
	ConversationStage int                 `json:"conversation_stage"`
	Greeted           bool                `json:"greeted"`
	History           []HistoryEntry      `json:"history"`
	AllowWeb          bool                `json:"allow_web"`
	Mode              Agent               `json:"mode,omitempty"`
}

// NewSession returns a fresh session with web search permitted.
func NewSession(id string) *Session {
	return &Session{ID: id, AllowWeb: true}
}

// HasIdentity reports whether a patient record is bound to the session.
func (s *Session) HasIdentity() bool {
	return s.Identity == IdentityResolved && s.PatientRecord != nil
}

// AwaitingDisambiguation reports whether the session is waiting for a
// discharge date to pick between same-name candidates.
func (s *Session) AwaitingDisambiguation() bool {
	return s.Identity == IdentityAwaitingDisambiguation
}

// bindPatient moves the session to IdentityResolved.
func (s *Session) bindPatient(rec pkg.PatientRecord) {
	r := rec
	s.Identity = IdentityResolved
	s.PatientName = r.PatientName
	s.PatientRecord = &r
	s.CandidatePatients = nil
}

// awaitDisambiguation moves the session to IdentityAwaitingDisambiguation.
func (s *Session) awaitDisambiguation(candidates []pkg.PatientRecord) {
	s.Identity = IdentityAwaitingDisambiguation
	s.CandidatePatients = append([]pkg.PatientRecord(nil), candidates...)
}

func (s *Session) appendUser(content string) {
	s.History = append(s.History, HistoryEntry{Role: RoleUser, Content: content})
}

func (s *Session) appendAssistant(agent Agent, content string) {
	s.History = append(s.History, HistoryEntry{Role: RoleAssistant, Agent: agent, Content: content})
}

// RecentHistory returns at most n trailing history entries.
func (s *Session) RecentHistory(n int) []HistoryEntry {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Clone returns a deep copy, so a failed turn can be discarded by simply
// not saving the copy it ran against.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.PatientRecord != nil {
		rec := *s.PatientRecord
		rec.Medications = append([]string(nil), s.PatientRecord.Medications...)
		c.PatientRecord = &rec
	}
	c.CandidatePatients = append([]pkg.PatientRecord(nil), s.CandidatePatients...)
	c.History = append([]HistoryEntry(nil), s.History...)
	return &c
}

// MarshalState encodes the session for persistence.
func MarshalState(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalState decodes a persisted session.
func UnmarshalState(b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return &s, nil
}
