package core

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"nephro-assistant/internal/metrics"
	"nephro-assistant/pkg"
)

// Identity outcomes reported to metrics and logs.
const (
	IdentityOutcomeNoName       = "no_name"
	IdentityOutcomeNotFound     = "not_found"
	IdentityOutcomeResolved     = "resolved"
	IdentityOutcomeAmbiguous    = "ambiguous"
	IdentityOutcomeDateMismatch = "date_mismatch"
	IdentityOutcomeDateMatched  = "date_matched"
)

const nameTrimSet = " .,:;!-"

// IdentityResolver binds a session to a patient record, asking for a
// discharge date when several records share the name.
type IdentityResolver struct {
	patients PatientLookup
	phrases  Phrases
	logger   *zap.Logger
	recorder metrics.Recorder
}

// NewIdentityResolver constructs a resolver backed by the given lookup store.
func NewIdentityResolver(patients PatientLookup, phrases Phrases, logger *zap.Logger, recorder metrics.Recorder) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &IdentityResolver{
		patients: patients,
		phrases:  phrases.WithDefaults(),
		logger:   logger,
		recorder: recorder,
	}
}

// Resolve advances the session's identity state with one message.  handled
// is false only when identity is already resolved, in which case the
// resolver does nothing.  Lookup store failures are returned as errors.
func (r *IdentityResolver) Resolve(ctx context.Context, message string, sess *Session) (reply string, handled bool, err error) {
	switch sess.Identity {
	case IdentityResolved:
		return "", false, nil
	case IdentityAwaitingDisambiguation:
		return r.onDischargeDate(message, sess), true, nil
	default:
		text, err := r.onIntroduction(ctx, message, sess)
		return text, true, err
	}
}

// onDischargeDate handles a message received in IdentityAwaitingDisambiguation.
func (r *IdentityResolver) onDischargeDate(message string, sess *Session) string {
	date := strings.TrimSpace(message)
	for _, cand := range sess.CandidatePatients {
		if cand.DischargeDate != date {
			continue
		}
		sess.bindPatient(cand)
		r.observe(sess, IdentityOutcomeDateMatched)
		return fmt.Sprintf("Thank you, I've confirmed your identity.\n\n"+
			"Welcome back %s! You were discharged on %s with the diagnosis %s.\n\n"+
			"How are you feeling today?",
			cand.PatientName, cand.DischargeDate, cand.PrimaryDiagnosis)
	}
	r.observe(sess, IdentityOutcomeDateMismatch)
	return DateMismatchReply
}

// onIntroduction handles a message received in IdentityUnknown.
func (r *IdentityResolver) onIntroduction(ctx context.Context, message string, sess *Session) (string, error) {
	name, ok := r.ExtractName(message)
	if !ok {
		r.observe(sess, IdentityOutcomeNoName)
		return AskNameReply, nil
	}

	matches, err := r.patients.FindByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("patient lookup: %w", err)
	}

	switch len(matches) {
	case 0:
		r.observe(sess, IdentityOutcomeNotFound)
		return fmt.Sprintf("I couldn't find any patient named '%s'. "+
			"Please check the spelling and tell me your full name "+
			"as shown on the discharge summary.", name), nil
	case 1:
		rec := matches[0]
		sess.bindPatient(rec)
		r.observe(sess, IdentityOutcomeResolved)
		return welcomeReply(rec), nil
	default:
		sess.awaitDisambiguation(matches)
		r.observe(sess, IdentityOutcomeAmbiguous)
		return fmt.Sprintf("There are multiple patients named '%s' in our records. "+
			"Please tell me your discharge date so I can confirm your identity.", name), nil
	}
}

func welcomeReply(rec pkg.PatientRecord) string {
	return fmt.Sprintf("Welcome, %s! I see you were discharged on %s with a primary diagnosis of %s.\n\n"+
		"How can I help you today?",
		rec.PatientName, rec.DischargeDate, rec.PrimaryDiagnosis)
}

func (r *IdentityResolver) observe(sess *Session, outcome string) {
	r.recorder.ObserveIdentity(outcome)
	r.logger.Info("identity",
		zap.String("session_id", sess.ID),
		zap.String("outcome", outcome),
		zap.Stringer("state", sess.Identity),
		zap.Int("candidates", len(sess.CandidatePatients)))
}

// ExtractName pulls a patient name out of an introduction.  Prefixes are
// tried in order and the text after the first one found is used.  A message
// with no whitespace and more than one character is taken as a bare name.
func (r *IdentityResolver) ExtractName(message string) (string, bool) {
	return extractName(message, r.phrases.IntroPrefixes)
}

func extractName(message string, prefixes PhraseSet) (string, bool) {
	text := strings.TrimSpace(message)
	for _, prefix := range prefixes {
		_, end, ok := indexFold(text, prefix)
		if !ok {
			continue
		}
		candidate := strings.TrimSpace(strings.Trim(text[end:], nameTrimSet))
		if candidate != "" {
			return candidate, true
		}
	}

	if strings.IndexFunc(text, unicode.IsSpace) < 0 && utf8.RuneCountInString(text) > 1 {
		return text, true
	}
	return "", false
}

// indexFold finds the first occurrence of substr in s, comparing the
// lower-cased forms.  start and end are byte offsets into s itself, so the
// original casing of the remainder is kept even when lower-casing changes a
// rune's encoded length.
func indexFold(s, substr string) (start, end int, ok bool) {
	target := strings.ToLower(substr)
	for i := range s {
		j, matched := i, 0
		for matched < len(target) && j < len(s) {
			r, size := utf8.DecodeRuneInString(s[j:])
			lower := string(unicode.ToLower(r))
			if !strings.HasPrefix(target[matched:], lower) {
				break
			}
			matched += len(lower)
			j += size
		}
		if matched == len(target) {
			return i, j, true
		}
	}
	return 0, 0, false
}
