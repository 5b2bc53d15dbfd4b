package core

import (
	"context"
	"fmt"
	"strings"

	"nephro-assistant/internal/llm"
)

// Label is the classifier's verdict on a message.
type Label string

const (
	LabelIdentity  Label = "IDENTITY"
	LabelAdmin     Label = "ADMIN"
	LabelClinical  Label = "CLINICAL"
	LabelSmallTalk Label = "SMALL_TALK"
)

// IsValid reports whether l is one of the four known labels.
func (l Label) IsValid() bool {
	switch l {
	case LabelIdentity, LabelAdmin, LabelClinical, LabelSmallTalk:
		return true
	}
	return false
}

// Handler returns the agent a label dispatches to.  Identity corrections stay
// with the receptionist, which owns identity state; small talk goes to the
// clinical handler's general prompt.
func (l Label) Handler() Agent {
	switch l {
	case LabelIdentity, LabelAdmin:
		return AgentReceptionist
	default:
		return AgentClinical
	}
}

// ParseLabel normalizes a raw classifier response.  Anything that is not a
// known label falls back to CLINICAL when a patient record is bound and to
// IDENTITY otherwise.
func ParseLabel(raw string, hasRecord bool) Label {
	l := Label(strings.ToUpper(strings.TrimSpace(raw)))
	if l.IsValid() {
		return l
	}
	if hasRecord {
		return LabelClinical
	}
	return LabelIdentity
}

// Routing reasons.
const (
	ReasonNoIdentity = "no_identity"
	ReasonFastPath   = "quick_admin_match"
	ReasonClassifier = "classifier"
)

// Decision is the router's output for one message.
type Decision struct {
	Label  Label
	Agent  Agent
	Reason string
}

const (
	classifierTemperature = 0
	classifierMaxTokens   = 5
)

// Router decides which handler answers a message: a deterministic keyword
// fast path for scheduling, then a single-label model classification.
type Router struct {
	llm     llm.Client
	model   string
	phrases Phrases
}

// NewRouter constructs a router that classifies with the given model.
func NewRouter(client llm.Client, model string, phrases Phrases) *Router {
	return &Router{llm: client, model: model, phrases: phrases.WithDefaults()}
}

// FastPath reports whether the message is a scheduling request that must go
// to the receptionist without classification.
func (r *Router) FastPath(message string) bool {
	return r.phrases.IsAdminRequest(message)
}

// Route applies the fast path and, if it does not fire, the classifier.
func (r *Router) Route(ctx context.Context, message string, sess *Session) (Decision, error) {
	if r.FastPath(message) {
		return Decision{Label: LabelAdmin, Agent: AgentReceptionist, Reason: ReasonFastPath}, nil
	}
	label, err := r.Classify(ctx, message, sess)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Label: label, Agent: label.Handler(), Reason: ReasonClassifier}, nil
}

// Classify asks the completion service for one label using the recent
// transcript and a one-line patient summary.
func (r *Router) Classify(ctx context.Context, message string, sess *Session) (Label, error) {
	var contextLine string
	if rec := sess.PatientRecord; rec != nil {
		contextLine = fmt.Sprintf("Known patient diagnosis: %s, discharge date: %s",
			rec.PrimaryDiagnosis, rec.DischargeDate)
	}

	user := fmt.Sprintf("Conversation so far:\n%s\n\n"+
		"Context (if any): %s\n\n"+
		"Next user message: %s\n\n"+
		"Answer with exactly one word: IDENTITY, ADMIN, CLINICAL, or SMALL_TALK.",
		FormatHistory(sess.RecentHistory(ClassifierWindow)), contextLine, message)

	raw, err := r.llm.Complete(ctx, llm.CompletionRequest{
		System:      ClassifierPrompt,
		User:        user,
		Model:       r.model,
		Temperature: classifierTemperature,
		MaxTokens:   classifierMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}
	return ParseLabel(raw, sess.PatientRecord != nil), nil
}

// FormatHistory renders history entries one per line, tagging assistant
// lines with the handler that wrote them.
func FormatHistory(entries []HistoryEntry) string {
	lines := make([]string, 0, len(entries))
	for _, h := range entries {
		switch {
		case h.Role == RoleUser:
			lines = append(lines, "USER: "+h.Content)
		case h.Agent != AgentNone:
			lines = append(lines, fmt.Sprintf("ASSISTANT(%s): %s", h.Agent, h.Content))
		default:
			lines = append(lines, "ASSISTANT: "+h.Content)
		}
	}
	return strings.Join(lines, "\n")
}
