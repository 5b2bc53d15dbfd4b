package core

import (
	"context"
	"strings"

	"nephro-assistant/internal/llm"
	"nephro-assistant/pkg"
)

// fakeLLM returns canned replies and records every request it receives.
type fakeLLM struct {
	reply    string
	replyFor func(req llm.CompletionRequest) string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if f.replyFor != nil {
		return f.replyFor(req), nil
	}
	return f.reply, nil
}

func (f *fakeLLM) calls() int { return len(f.requests) }

// fakePatients matches names case-insensitively against a fixed list.
type fakePatients struct {
	records []pkg.PatientRecord
	err     error
	queries []string
}

func (f *fakePatients) FindByName(_ context.Context, name string) ([]pkg.PatientRecord, error) {
	f.queries = append(f.queries, name)
	if f.err != nil {
		return nil, f.err
	}
	var out []pkg.PatientRecord
	for _, r := range f.records {
		if strings.EqualFold(r.PatientName, name) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeDocs struct {
	passages []pkg.Passage
	err      error
	queries  []string
	ks       []int
}

func (f *fakeDocs) Search(_ context.Context, query string, k int) ([]pkg.Passage, error) {
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	return f.passages, f.err
}

type fakeWeb struct {
	results []pkg.WebResult
	err     error
	counts  []int
}

func (f *fakeWeb) Search(_ context.Context, _ string, n int) ([]pkg.WebResult, error) {
	f.counts = append(f.counts, n)
	return f.results, f.err
}

func johnCarter() pkg.PatientRecord {
	return pkg.PatientRecord{
		PatientName:         "John Carter",
		PrimaryDiagnosis:    "Chronic Kidney Disease Stage 3",
		DischargeDate:       "2025-01-15",
		Medications:         []string{"Lisinopril 10mg daily", "Furosemide 20mg twice daily"},
		DietaryRestrictions: "Low sodium (2g/day), fluid restriction (1.5L/day)",
		FollowUp:            "Nephrology clinic in 2 weeks",
		WarningSigns:        "Swelling, shortness of breath, decreased urine output",
	}
}

func mariaLopez(date, diagnosis string) pkg.PatientRecord {
	return pkg.PatientRecord{
		PatientName:      "Maria Lopez",
		PrimaryDiagnosis: diagnosis,
		DischargeDate:    date,
		Medications:      []string{"Prednisone 40mg daily"},
	}
}

func resolvedSession(id string) *Session {
	s := NewSession(id)
	s.bindPatient(johnCarter())
	return s
}
