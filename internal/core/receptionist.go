package core

import (
	"context"
	"fmt"

	"nephro-assistant/internal/llm"
	"nephro-assistant/pkg"
)

const (
	receptionistTemperature = 0.2
	receptionistMaxTokens   = 300
	maxConversationStage    = 4
)

// Receptionist is the administrative handler for sessions with a resolved
// identity.  It never answers clinical questions itself.
type Receptionist struct {
	llm     llm.Client
	model   string
	phrases Phrases
}

// NewReceptionist constructs the administrative handler.
func NewReceptionist(client llm.Client, model string, phrases Phrases) *Receptionist {
	return &Receptionist{llm: client, model: model, phrases: phrases.WithDefaults()}
}

// Respond answers a non-clinical message.  For a clinical message it
// returns the fixed hand-off reply with handoff set; the flag is advisory
// and does not re-route the turn.
func (r *Receptionist) Respond(ctx context.Context, message string, sess *Session) (reply string, handoff bool, err error) {
	if r.phrases.IsMedicalQuery(message) {
		return HandoffReply, true, nil
	}
	if sess.PatientRecord == nil {
		return "", false, fmt.Errorf("receptionist: session %s has no patient record", sess.ID)
	}

	user := fmt.Sprintf("Discharge summary (for context):\n%s\n"+
		"Visit state: already greeted=%t, conversation stage=%d of %d\n\n"+
		"Patient message:\n%s\n\n"+
		"Write a reply as the receptionist, following the rules above.",
		dischargeSummary(sess.PatientRecord), sess.Greeted, sess.ConversationStage, maxConversationStage, message)

	reply, err = r.llm.Complete(ctx, llm.CompletionRequest{
		System:      ReceptionistPrompt,
		User:        user,
		Model:       r.model,
		Temperature: receptionistTemperature,
		MaxTokens:   receptionistMaxTokens,
	})
	if err != nil {
		return "", false, fmt.Errorf("receptionist reply: %w", err)
	}

	sess.Greeted = true
	sess.ConversationStage = min(sess.ConversationStage+1, maxConversationStage)
	return reply, false, nil
}

func dischargeSummary(rec *pkg.PatientRecord) string {
	return fmt.Sprintf("Patient name: %s\n"+
		"Diagnosis: %s\n"+
		"Discharge date: %s\n"+
		"Medications: %s\n"+
		"Dietary restrictions: %s\n"+
		"Follow-up: %s\n",
		rec.PatientName, rec.PrimaryDiagnosis, rec.DischargeDate,
		rec.MedicationList(), rec.DietaryRestrictions, rec.FollowUp)
}
