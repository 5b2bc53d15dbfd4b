package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nephro-assistant/pkg"
)

func TestExtractName(t *testing.T) {
	prefixes := DefaultPhrases().IntroPrefixes
	tests := []struct {
		name    string
		message string
		want    string
		ok      bool
	}{
		{"my name is", "My name is John Carter", "John Carter", true},
		{"i am", "I am John Carter", "John Carter", true},
		{"trailing punctuation", "this is Maria Lopez.", "Maria Lopez", true},
		{"i'm", "I'm Maria Lopez!", "Maria Lopez", true},
		{"it is", "it is  - Ann Lee ", "Ann Lee", true},
		{"greeting prefix", "hi i am Raj Patel", "Raj Patel", true},
		{"keeps casing", "MY NAME IS jOhN", "jOhN", true},
		{"single token", "Carter", "Carter", true},
		{"single token trimmed", "  Carter  ", "Carter", true},
		{"single character", "J", "", false},
		{"sentence without prefix", "hello there friend", "", false},
		{"prefix with nothing after", "my name is ...", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractName(tt.message, prefixes)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractName_NonASCIIPrefix(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		message string
		want    string
	}{
		// İ lower-cases to the one-byte i.
		{"prefix shrinks when lowered", "İsim:", "isim: Ayşe Demir", "Ayşe Demir"},
		{"message shrinks when lowered", "i am", "İ AM Ayşe", "Ayşe"},
		{"same width accents", "je m'appelle", "JE M'APPELLE Élodie", "Élodie"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractName(tt.message, PhraseSet{tt.prefix})
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexFold(t *testing.T) {
	start, end, ok := indexFold("Hello, İ am Bob", "i am")
	require.True(t, ok)
	assert.Equal(t, "İ am", "Hello, İ am Bob"[start:end])

	_, _, ok = indexFold("hello", "bye")
	assert.False(t, ok)
}

func TestExtractName_PrefixOrder(t *testing.T) {
	// "name is" appears inside "my name is"; the earlier prefix in the list wins.
	got, ok := extractName("well, my name is Ann", DefaultPhrases().IntroPrefixes)
	require.True(t, ok)
	assert.Equal(t, "Ann", got)
}

func TestIdentityResolver_SingleMatch(t *testing.T) {
	patients := &fakePatients{records: []pkg.PatientRecord{johnCarter()}}
	r := NewIdentityResolver(patients, Phrases{}, nil, nil)
	sess := NewSession("s1")

	reply, handled, err := r.Resolve(context.Background(), "I am John Carter", sess)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, reply, "John Carter")
	assert.Contains(t, reply, "2025-01-15")
	assert.Contains(t, reply, "Chronic Kidney Disease Stage 3")

	assert.Equal(t, IdentityResolved, sess.Identity)
	assert.Equal(t, "John Carter", sess.PatientName)
	require.NotNil(t, sess.PatientRecord)
	assert.Equal(t, johnCarter(), *sess.PatientRecord)
	assert.Equal(t, []string{"John Carter"}, patients.queries)
}

func TestIdentityResolver_NotFound(t *testing.T) {
	r := NewIdentityResolver(&fakePatients{}, Phrases{}, nil, nil)
	sess := NewSession("s1")

	reply, handled, err := r.Resolve(context.Background(), "my name is Nobody Here", sess)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Contains(t, reply, "'Nobody Here'")
	assert.Equal(t, IdentityUnknown, sess.Identity)
	assert.Empty(t, sess.PatientName)
	assert.Nil(t, sess.PatientRecord)
}

func TestIdentityResolver_NoName(t *testing.T) {
	patients := &fakePatients{}
	r := NewIdentityResolver(patients, Phrases{}, nil, nil)
	sess := NewSession("s1")

	reply, handled, err := r.Resolve(context.Background(), "hello there", sess)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, AskNameReply, reply)
	assert.Empty(t, patients.queries)
	assert.Equal(t, IdentityUnknown, sess.Identity)
}

func TestIdentityResolver_Disambiguation(t *testing.T) {
	first := mariaLopez("2025-01-10", "Nephrotic syndrome")
	second := mariaLopez("2025-02-03", "Acute kidney injury")
	r := NewIdentityResolver(&fakePatients{records: []pkg.PatientRecord{first, second}}, Phrases{}, nil, nil)
	sess := NewSession("s1")

	reply, _, err := r.Resolve(context.Background(), "I am Maria Lopez", sess)
	require.NoError(t, err)
	assert.Contains(t, reply, "discharge date")
	assert.True(t, sess.AwaitingDisambiguation())
	assert.Len(t, sess.CandidatePatients, 2)
	assert.Empty(t, sess.PatientName)

	reply, _, err = r.Resolve(context.Background(), "2025-03-01", sess)
	require.NoError(t, err)
	assert.Equal(t, DateMismatchReply, reply)
	assert.True(t, sess.AwaitingDisambiguation())
	assert.Len(t, sess.CandidatePatients, 2)

	reply, _, err = r.Resolve(context.Background(), " 2025-02-03 ", sess)
	require.NoError(t, err)
	assert.Contains(t, reply, "Acute kidney injury")
	assert.Equal(t, IdentityResolved, sess.Identity)
	assert.Equal(t, "Maria Lopez", sess.PatientName)
	assert.Equal(t, "2025-02-03", sess.PatientRecord.DischargeDate)
	assert.Empty(t, sess.CandidatePatients)
	assert.False(t, sess.AwaitingDisambiguation())
}

func TestIdentityResolver_BypassedOnceResolved(t *testing.T) {
	patients := &fakePatients{records: []pkg.PatientRecord{johnCarter()}}
	r := NewIdentityResolver(patients, Phrases{}, nil, nil)
	sess := resolvedSession("s1")
	before := *sess.PatientRecord

	reply, handled, err := r.Resolve(context.Background(), "2025-02-03", sess)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, reply)
	assert.Empty(t, patients.queries)
	assert.Equal(t, before, *sess.PatientRecord)
}

func TestIdentityResolver_Idempotent(t *testing.T) {
	patients := &fakePatients{records: []pkg.PatientRecord{johnCarter()}}
	r := NewIdentityResolver(patients, Phrases{}, nil, nil)

	a, b := NewSession("a"), NewSession("b")
	_, _, err := r.Resolve(context.Background(), "I am John Carter", a)
	require.NoError(t, err)
	_, _, err = r.Resolve(context.Background(), "I am John Carter", b)
	require.NoError(t, err)
	assert.Equal(t, *a.PatientRecord, *b.PatientRecord)
}

func TestIdentityResolver_LookupFailure(t *testing.T) {
	boom := errors.New("patient data file not found")
	r := NewIdentityResolver(&fakePatients{err: boom}, Phrases{}, nil, nil)
	sess := NewSession("s1")

	_, handled, err := r.Resolve(context.Background(), "I am John Carter", sess)
	assert.True(t, handled)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, IdentityUnknown, sess.Identity)
}
