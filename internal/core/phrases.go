package core

import "strings"

// PhraseSet is an ordered list of lower-case phrases matched as
// case-insensitive substrings.
type PhraseSet []string

// Match reports whether text contains any phrase in the set.
func (p PhraseSet) Match(text string) bool {
	_, ok := p.FirstMatch(text)
	return ok
}

// FirstMatch returns the first phrase, in set order, that text contains.
func (p PhraseSet) FirstMatch(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range p {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}

// Phrases is the keyword policy consulted before any model call.  Every
// heuristic in the engine reads from this one table so it can be audited
// and overridden from configuration.
type Phrases struct {
	// Admin forces dispatch to the receptionist without classification.
	Admin PhraseSet `mapstructure:"admin" yaml:"admin"`
	// Medical marks a message as clinical on its own.
	Medical PhraseSet `mapstructure:"medical" yaml:"medical"`
	// KidneyConcepts marks a message as clinical when combined with a topic word.
	KidneyConcepts PhraseSet `mapstructure:"kidney_concepts" yaml:"kidney_concepts"`
	// MedicalTopics are the topic words paired with KidneyConcepts.
	MedicalTopics PhraseSet `mapstructure:"medical_topics" yaml:"medical_topics"`
	// Freshness marks a clinical question as wanting current information.
	Freshness PhraseSet `mapstructure:"freshness" yaml:"freshness"`
	// IntroPrefixes introduce a name, checked in order.
	IntroPrefixes PhraseSet `mapstructure:"intro_prefixes" yaml:"intro_prefixes"`
}

// DefaultPhrases returns the built-in keyword policy.
func DefaultPhrases() Phrases {
	return Phrases{
		Admin: PhraseSet{
			"appointment",
			"book an appointment",
			"book appointment",
			"schedule an appointment",
			"schedule appointment",
			"reschedule",
			"cancel appointment",
			"next appointment",
			"follow-up appointment",
			"follow up appointment",
			"slot",
			"time slot",
		},
		Medical: PhraseSet{
			"medical", "symptom", "symptomps",
			"pain", "swelling", "shortness of breath", "breathless",
			"bp", "blood pressure", "fever", "vomiting", "nausea",
			"chest pain", "palpitations", "urine", "urination",
			"weight gain", "weight loss", "dizzy", "dizziness",
			"headache", "cramps", "edema", "dialysis",
			"emergency", "urgent", "bleeding",
			"kidney", "renal", "ckd", "creatinine", "gfr",
			"stone", "stones",
			"low potassium", "low pottasium", "potassium", "pottasium",
			"low sodium", "low salt", "fluid restriction", "phosphorus", "phosphate",
			"protein restriction",
		},
		KidneyConcepts: PhraseSet{"kidney", "renal", "ckd", "stone", "stones", "creatinine", "gfr"},
		MedicalTopics: PhraseSet{
			"symptom", "symptoms", "symptomps",
			"cause", "causes",
			"treatment", "treatments",
			"risk", "risks",
			"complication", "complications",
			"diet", "uses", "use", "effect", "effects",
			"side effect", "side effects",
			"benefit", "benefits",
			"management", "manage", "control",
		},
		Freshness: PhraseSet{
			"latest",
			"recent",
			"new research",
			"new study",
			"guideline",
			"2023",
			"2024",
			"2025",
			"2026",
			"web search",
			"search online",
			"check online",
		},
		IntroPrefixes: PhraseSet{
			"my name is", "i am", "this is", "name is", "i'm", "it's", "it is", "hi i am", "hello i am",
		},
	}
}

// WithDefaults fills every empty set from DefaultPhrases.
func (p Phrases) WithDefaults() Phrases {
	d := DefaultPhrases()
	if len(p.Admin) == 0 {
		p.Admin = d.Admin
	}
	if len(p.Medical) == 0 {
		p.Medical = d.Medical
	}
	if len(p.KidneyConcepts) == 0 {
		p.KidneyConcepts = d.KidneyConcepts
	}
	if len(p.MedicalTopics) == 0 {
		p.MedicalTopics = d.MedicalTopics
	}
	if len(p.Freshness) == 0 {
		p.Freshness = d.Freshness
	}
	if len(p.IntroPrefixes) == 0 {
		p.IntroPrefixes = d.IntroPrefixes
	}
	return p
}

// IsAdminRequest reports whether the message hits the scheduling fast path.
func (p Phrases) IsAdminRequest(message string) bool {
	return p.Admin.Match(message)
}

// IsMedicalQuery reports whether the message is clinical: either a direct
// medical keyword, or a kidney concept together with a topic word.
func (p Phrases) IsMedicalQuery(message string) bool {
	text := strings.TrimSpace(message)
	if p.Medical.Match(text) {
		return true
	}
	return p.KidneyConcepts.Match(text) && p.MedicalTopics.Match(text)
}

// WantsFreshInfo reports whether the message asks for current or novel
// information.
func (p Phrases) WantsFreshInfo(message string) bool {
	return p.Freshness.Match(message)
}
