package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

type fakeProvider struct {
	response string
	err      error
	last     CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.last = req
	return f.response, f.err
}

func newTestExtractor(p Provider) *Extractor {
	e := NewExtractor(p, models.AIConfig{})
	e.now = func() time.Time { return time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestParseIdentity(t *testing.T) {
	p := &fakeProvider{response: "Here you go:\n```json\n" +
		`{"aadhaarNumber": "8539 4858 7776", "name": "  Siddharth ", "dateOfBirth": "07/07/2008", "gender": "MALE"}` +
		"\n```"}
	e := newTestExtractor(p)

	rec, err := e.ParseIdentity(context.Background(), "raw text")
	require.NoError(t, err)

	assert.Equal(t, "853948587776", rec.IDNumber)
	assert.Equal(t, "Siddharth", rec.Name)
	assert.Equal(t, "07/07/2008", rec.DateOfBirth)
	assert.Equal(t, "Male", rec.Gender)
	assert.Equal(t, 18, rec.Age)

	assert.Equal(t, systemPrompt, p.last.System)
	assert.InDelta(t, 0.1, p.last.Temperature, 1e-6)
	assert.Equal(t, 500, p.last.MaxTokens)
	assert.True(t, p.last.JSON)
	assert.Contains(t, p.last.Prompt, "raw text")
	assert.Contains(t, p.last.Prompt, "Do NOT guess")
}

func TestParseIdentityNulls(t *testing.T) {
	p := &fakeProvider{response: `{"aadhaarNumber": 853948587776, "name": null, "dateOfBirth": "null", "gender": null}`}

	rec, err := newTestExtractor(p).ParseIdentity(context.Background(), "x")
	require.NoError(t, err)

	assert.Equal(t, "853948587776", rec.IDNumber)
	assert.Empty(t, rec.Name)
	assert.Empty(t, rec.DateOfBirth)
	assert.Zero(t, rec.Age)
}

func TestParseReport(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     models.ReportRecord
	}{
		{
			name:     "canonical values",
			response: `{"bloodGroup": "A+", "patientName": "Akshat Kumar", "age": 21, "gender": "Male", "testDate": "12/03/2024"}`,
			want:     models.ReportRecord{BloodGroup: "A+", PatientName: "Akshat Kumar", PatientAge: 21, Gender: "Male", TestDate: "12/03/2024"},
		},
		{
			name:     "verbal sign and textual age",
			response: `{"bloodGroup": "B Negative", "patientName": null, "age": "34 Years", "gender": "female", "testDate": null}`,
			want:     models.ReportRecord{BloodGroup: "B-", PatientAge: 34, Gender: "Female"},
		},
		{
			name:     "non-reducible group",
			response: `{"bloodGroup": "unknown", "age": 150}`,
			want:     models.ReportRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := newTestExtractor(&fakeProvider{response: tt.response}).ParseReport(context.Background(), "x")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec)
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Run("no json object", func(t *testing.T) {
		_, err := newTestExtractor(&fakeProvider{response: "I cannot read this document."}).ParseReport(context.Background(), "x")

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "fake", perr.Provider)
		assert.Equal(t, "I cannot read this document.", perr.Raw)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := newTestExtractor(&fakeProvider{response: `{"bloodGroup": A+}`}).ParseReport(context.Background(), "x")

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Error(t, perr.Err)
	})

	t.Run("provider failure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := newTestExtractor(&fakeProvider{err: boom}).ParseIdentity(context.Background(), "x")

		require.ErrorIs(t, err, boom)
		var perr *ParseError
		assert.False(t, errors.As(err, &perr))
	})
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"surrounding prose", `Sure! {"a":1} hope this helps {"b":2}`, `{"a":1}`, true},
		{"nested", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"braces in strings", `{"a":"}{","b":"\"}"}`, `{"a":"}{","b":"\"}"}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"none", "nothing here", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("scan is bounded", func(t *testing.T) {
		long := `{"a":"` + strings.Repeat("x", maxJSONScan) + `"}`
		_, ok := extractJSONObject(long)
		assert.False(t, ok)
	})
}

func TestNewProvider(t *testing.T) {
	t.Run("groq is the default", func(t *testing.T) {
		p, err := NewProvider(models.AIConfig{Groq: models.OpenAIConfig{APIKey: "k"}})
		require.NoError(t, err)
		assert.Equal(t, "groq", p.Name())
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewProvider(models.AIConfig{DefaultProvider: "openai"})
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		p, err := NewProvider(models.AIConfig{DefaultProvider: "ollama"})
		require.NoError(t, err)
		assert.Equal(t, "ollama", p.Name())
	})

	t.Run("gemini", func(t *testing.T) {
		p, err := NewProvider(models.AIConfig{DefaultProvider: "Gemini", Gemini: models.GeminiConfig{APIKey: "k"}})
		require.NoError(t, err)
		assert.Equal(t, "gemini", p.Name())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewProvider(models.AIConfig{DefaultProvider: "claude"})
		assert.Error(t, err)
	})
}
