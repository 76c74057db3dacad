package escalate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confident(query string) Input {
	return Input{
		Query:      query,
		UserID:     1,
		Department: "HR",
		Confidence: 0.9,
		DocsFound:  3,
	}
}

func TestNoEscalationOnGoodAnswer(t *testing.T) {
	s := NewService()
	d := s.Evaluate(confident("how much annual leave do I get"))
	assert.False(t, d.ShouldEscalate)
	assert.Nil(t, d.Contact)
	assert.Empty(t, d.Message)
}

func TestLowConfidenceEscalates(t *testing.T) {
	s := NewService()
	in := confident("obscure question")
	in.Confidence = 0.4

	d := s.Evaluate(in)
	require.True(t, d.ShouldEscalate)
	assert.Equal(t, ReasonLowConfidence, d.Reason)
	assert.Contains(t, d.Message, "confidence: 40%")
	assert.Contains(t, d.Message, "hr@company.com")
	assert.NotEmpty(t, d.Alternatives)
	// 0.4 is below threshold but above 0.3, so priority stays low
	assert.Equal(t, PriorityLow, d.Priority)

	in.Confidence = 0.2
	d = s.Evaluate(in)
	assert.Equal(t, PriorityMedium, d.Priority)
}

func TestServiceWithConfigThresholds(t *testing.T) {
	s := NewServiceWithConfig(Config{ConfidenceThreshold: 0.8, RepeatThreshold: 1})

	in := confident("is my laptop covered by warranty")
	in.Confidence = 0.7

	d := s.Evaluate(in)
	require.True(t, d.ShouldEscalate)
	assert.Equal(t, ReasonLowConfidence, d.Reason)

	// Second near-identical query trips the lowered repeat threshold
	d = s.Evaluate(confident("is my laptop covered by warranty"))
	require.True(t, d.ShouldEscalate)
	assert.Equal(t, ReasonRepeatedQuery, d.Reason)
}

func TestServiceWithConfigZeroFallsBack(t *testing.T) {
	s := NewServiceWithConfig(Config{})
	assert.Equal(t, DefaultConfidenceThreshold, s.confidenceThreshold)
	assert.Equal(t, DefaultRepeatThreshold, s.repeatThreshold)
}

func TestNoDocumentsEscalates(t *testing.T) {
	s := NewService()
	in := confident("question about nothing")
	in.DocsFound = 0

	d := s.Evaluate(in)
	require.True(t, d.ShouldEscalate)
	assert.Equal(t, ReasonNoDocuments, d.Reason)
	assert.Equal(t, PriorityMedium, d.Priority)
}

func TestSensitiveTopicEscalatesHigh(t *testing.T) {
	s := NewService()

	for _, query := range []string{
		"I want to report harassment by my manager",
		"I'm dealing with severe burnout",
		"I need to file a grievance",
		"someone shared a trade secret",
	} {
		d := s.Evaluate(confident(query))
		require.True(t, d.ShouldEscalate, "query %q", query)
		assert.Equal(t, ReasonSensitive, d.Reason, "query %q", query)
		assert.Equal(t, PriorityHigh, d.Priority, "query %q", query)
		assert.Contains(t, d.Message, "sensitive matter")
	}
}

func TestPIIDetectedEscalates(t *testing.T) {
	s := NewService()
	in := confident("my ssn is on file")
	in.PIIDetected = true

	d := s.Evaluate(in)
	require.True(t, d.ShouldEscalate)
	assert.Equal(t, ReasonPIIDetected, d.Reason)
	assert.Contains(t, d.Message, "personal information")
}

func TestRepeatedQueryEscalates(t *testing.T) {
	s := NewService()

	// Two near-identical asks build up history; the third escalates
	first := s.Evaluate(confident("how do I reset my vpn password"))
	assert.False(t, first.ShouldEscalate)

	second := s.Evaluate(confident("how do I reset my vpn password please"))
	assert.False(t, second.ShouldEscalate)

	third := s.Evaluate(confident("how do I reset my vpn password"))
	require.True(t, third.ShouldEscalate)
	assert.Equal(t, ReasonRepeatedQuery, third.Reason)
}

func TestRepeatedQueryIsPerUser(t *testing.T) {
	s := NewService()
	query := "how do I reset my vpn password"

	for i := int64(1); i <= 3; i++ {
		in := confident(query)
		in.UserID = i
		d := s.Evaluate(in)
		assert.False(t, d.ShouldEscalate, "user %d", i)
	}
}

func TestHistoryBounded(t *testing.T) {
	s := NewService()
	for i := 0; i < 30; i++ {
		s.trackQuery(1, fmt.Sprintf("unique question number %d", i))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.history[1], historyPerUser)
}

func TestContactFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, "ext. 4000", ContactFor("Security").Phone)
	assert.Equal(t, "General Support", ContactFor("Progress").Name)
	assert.Equal(t, "ext. 1000", ContactFor("").Phone)
}

func TestJaccardSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, jaccardSimilarity("a b c", "c b a"), 1e-9)
	assert.InDelta(t, 0.5, jaccardSimilarity("a b c d", "a b"), 1e-9)
	assert.Zero(t, jaccardSimilarity("", "a b"))
}

func TestDetectPIIEmailAndPhone(t *testing.T) {
	r := DetectPII("contact me at jane.doe@example.com or 555-123-4567")
	require.True(t, r.Found)
	assert.Contains(t, r.Redacted, "[EMAIL_REDACTED]")
	assert.Contains(t, r.Redacted, "[PHONE_REDACTED]")
	assert.NotContains(t, r.Redacted, "jane.doe@example.com")
	assert.Contains(t, r.TypesFound, PIIEmail)
}

func TestDetectPIISSNWinsOverPhone(t *testing.T) {
	r := DetectPII("my ssn is 123-45-6789")
	require.True(t, r.Found)
	assert.Contains(t, r.Redacted, "[SSN_REDACTED]")
	assert.NotContains(t, r.Redacted, "123-45-6789")
}

func TestDetectPIICreditCard(t *testing.T) {
	assert.Contains(t, RedactPII("card 4111-1111-1111-1111 expires soon"), "[CC_REDACTED]")
}

func TestDetectPIIName(t *testing.T) {
	r := DetectPII("please forward this to Mr. John Smith")
	require.True(t, r.Found)
	assert.Contains(t, r.Redacted, "[NAME_REDACTED]")
}

func TestDetectPIICleanText(t *testing.T) {
	r := DetectPII("how much annual leave do I get")
	assert.False(t, r.Found)
	assert.Equal(t, "how much annual leave do I get", r.Redacted)
	assert.False(t, ContainsPII("what is the vpn setup process"))
}

func TestDetectPIIEmptyText(t *testing.T) {
	r := DetectPII("")
	assert.False(t, r.Found)
	assert.Empty(t, r.Redacted)
}
