package pkg

import "strings"

// PatientRecord is a discharge summary as held by the patient lookup store.
// Records are read-only once fetched; a session that binds one owns its copy.
type PatientRecord struct {
	PatientName         string   `json:"patient_name"`
	PrimaryDiagnosis    string   `json:"primary_diagnosis"`
	DischargeDate       string   `json:"discharge_date"`
	Medications         []string `json:"medications"`
	DietaryRestrictions string   `json:"dietary_restrictions"`
	FollowUp            string   `json:"follow_up"`
	WarningSigns        string   `json:"warning_signs"`
}

// MedicationList renders the medications as a single comma separated line.
func (p PatientRecord) MedicationList() string {
	return strings.Join(p.Medications, ", ")
}

// Passage is one ranked hit from the reference document index.
type Passage struct {
	ID         string  `json:"id,omitempty"`
	Source     string  `json:"source,omitempty"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score,omitempty"`
}

// WebResult is one ranked hit from a web search provider.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ChatRequest is the body of POST /chat.  AllowWeb is optional; when set it
// updates the session's web toggle before the turn runs.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	AllowWeb  *bool  `json:"allow_web,omitempty"`
}

// ChatResponse carries the reply and the name of the handler that produced it.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Agent     string `json:"agent"`
}

// SessionCreated is returned by POST /api/sessions.
type SessionCreated struct {
	SessionID string `json:"session_id"`
}
