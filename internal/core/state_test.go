package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nephro-assistant/pkg"
)

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession("abc")
	assert.Equal(t, "abc", s.ID)
	assert.True(t, s.AllowWeb)
	assert.Equal(t, IdentityUnknown, s.Identity)
	assert.False(t, s.HasIdentity())
	assert.False(t, s.AwaitingDisambiguation())
}

func TestSession_Transitions(t *testing.T) {
	s := NewSession("abc")
	s.awaitDisambiguation([]pkg.PatientRecord{
		mariaLopez("2025-01-10", "a"),
		mariaLopez("2025-02-03", "b"),
	})
	assert.True(t, s.AwaitingDisambiguation())
	assert.Empty(t, s.PatientName)
	assert.Nil(t, s.PatientRecord)

	s.bindPatient(s.CandidatePatients[1])
	assert.True(t, s.HasIdentity())
	assert.Equal(t, "Maria Lopez", s.PatientName)
	assert.Empty(t, s.CandidatePatients)
	assert.False(t, s.AwaitingDisambiguation())
}

func TestSession_RecentHistory(t *testing.T) {
	s := NewSession("abc")
	assert.Empty(t, s.RecentHistory(ClassifierWindow))
	for i := 0; i < 10; i++ {
		s.appendUser(string(rune('a' + i)))
	}
	recent := s.RecentHistory(ClassifierWindow)
	require.Len(t, recent, ClassifierWindow)
	assert.Equal(t, "e", recent[0].Content)
	assert.Equal(t, "j", recent[5].Content)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := resolvedSession("abc")
	s.appendUser("hello")

	c := s.Clone()
	c.appendAssistant(AgentClinical, "hi")
	c.PatientRecord.Medications[0] = "changed"
	c.AllowWeb = false

	assert.Len(t, s.History, 1)
	assert.Equal(t, "Lisinopril 10mg daily", s.PatientRecord.Medications[0])
	assert.True(t, s.AllowWeb)
}

func TestSession_StateRoundTrip(t *testing.T) {
	s := NewSession("abc")
	s.awaitDisambiguation([]pkg.PatientRecord{mariaLopez("1", "a"), mariaLopez("2", "b")})
	s.appendUser("I am Maria Lopez")
	s.appendAssistant(AgentReceptionist, "which date?")
	s.Mode = AgentReceptionist

	b, err := MarshalState(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"identity":"awaiting_disambiguation"`)

	got, err := UnmarshalState(b)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestIdentityState_UnmarshalUnknown(t *testing.T) {
	var st IdentityState
	assert.Error(t, st.UnmarshalText([]byte("bogus")))
}
