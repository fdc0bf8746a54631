package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
	"github.com/bloodbridge/donor-extraction-service/internal/services"
)

const (
	systemPrompt = "You are a strict medical document analyzer. Always return clean JSON only."

	defaultTemperature = 0.1
	defaultMaxTokens   = 500

	// rawPreviewLen bounds how much of an unparseable response is kept.
	rawPreviewLen = 512
)

// ParseError is returned when a completion contains no usable JSON object.
type ParseError struct {
	Provider string
	Raw      string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s returned unparseable output: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s returned no JSON object", e.Provider)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extractor turns raw OCR text into document records with a text-completion model
type Extractor struct {
	provider    Provider
	temperature float32
	maxTokens   int
	now         func() time.Time
}

// NewExtractor creates a new AI extractor. Zero temperature and token
// settings in cfg fall back to 0.1 and 500.
func NewExtractor(provider Provider, cfg models.AIConfig) *Extractor {
	e := &Extractor{
		provider:    provider,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		now:         time.Now,
	}
	if e.temperature <= 0 {
		e.temperature = defaultTemperature
	}
	if e.maxTokens <= 0 {
		e.maxTokens = defaultMaxTokens
	}
	return e
}

// ProviderName reports the backend in use.
func (e *Extractor) ProviderName() string { return e.provider.Name() }

// ParseIdentity extracts identity-card fields from OCR text.
// Name plausibility is left to the caller.
func (e *Extractor) ParseIdentity(ctx context.Context, ocrText string) (models.IdentityRecord, error) {
	response, err := e.complete(ctx, buildIdentityPrompt(ocrText))
	if err != nil {
		return models.IdentityRecord{}, err
	}

	var raw struct {
		AadhaarNumber interface{} `json:"aadhaarNumber"`
		Name          interface{} `json:"name"`
		DateOfBirth   interface{} `json:"dateOfBirth"`
		Gender        interface{} `json:"gender"`
	}
	if err := e.decode(response, &raw); err != nil {
		return models.IdentityRecord{}, err
	}

	rec := models.IdentityRecord{
		IDNumber:    cleanIDNumber(asString(raw.AadhaarNumber)),
		Name:        strings.Join(strings.Fields(asString(raw.Name)), " "),
		DateOfBirth: asString(raw.DateOfBirth),
		Gender:      services.NormalizeGender(asString(raw.Gender)),
	}
	if rec.DateOfBirth != "" {
		rec.Age = services.AgeFromDOB(rec.DateOfBirth, e.now())
	}
	return rec, nil
}

// ParseReport extracts blood-report fields from OCR text.
func (e *Extractor) ParseReport(ctx context.Context, ocrText string) (models.ReportRecord, error) {
	response, err := e.complete(ctx, buildReportPrompt(ocrText))
	if err != nil {
		return models.ReportRecord{}, err
	}

	var raw struct {
		BloodGroup  interface{} `json:"bloodGroup"`
		PatientName interface{} `json:"patientName"`
		Age         interface{} `json:"age"`
		Gender      interface{} `json:"gender"`
		TestDate    interface{} `json:"testDate"`
	}
	if err := e.decode(response, &raw); err != nil {
		return models.ReportRecord{}, err
	}

	return models.ReportRecord{
		BloodGroup:  services.NormalizeBloodGroup(asString(raw.BloodGroup)),
		PatientName: strings.Join(strings.Fields(asString(raw.PatientName)), " "),
		PatientAge:  parseAge(raw.Age),
		Gender:      services.NormalizeGender(asString(raw.Gender)),
		TestDate:    asString(raw.TestDate),
	}, nil
}

func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	response, err := e.provider.Complete(ctx, CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
		JSON:        true,
	})
	if err != nil {
		return "", fmt.Errorf("AI extraction failed: %w", err)
	}
	return response, nil
}

func (e *Extractor) decode(response string, v interface{}) error {
	obj, ok := extractJSONObject(response)
	if !ok {
		return &ParseError{Provider: e.provider.Name(), Raw: preview(response)}
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return &ParseError{Provider: e.provider.Name(), Raw: preview(response), Err: err}
	}
	return nil
}

func buildIdentityPrompt(ocrText string) string {
	return fmt.Sprintf(`Extract the following fields from this Aadhaar card OCR text.

Return ONLY a JSON object with exactly these keys:
{
  "aadhaarNumber": "12-digit number without spaces",
  "name": "full name of the card holder in English",
  "dateOfBirth": "DD/MM/YYYY",
  "gender": "Male or Female"
}

Rules:
- If a field is not clearly present, use null. Do NOT guess.
- The name is a person's name, never a heading such as GOVERNMENT OF INDIA.
- Ignore the 16-digit VID.

OCR text:
"""
%s
"""`, ocrText)
}

func buildReportPrompt(ocrText string) string {
	return fmt.Sprintf(`Extract the following fields from this blood group lab report OCR text.

Return ONLY a JSON object with exactly these keys:
{
  "bloodGroup": "one of A+, A-, B+, B-, O+, O-, AB+, AB-",
  "patientName": "patient full name",
  "age": "age in years as a number",
  "gender": "Male or Female",
  "testDate": "DD/MM/YYYY"
}

Rules:
- If a field is not clearly present, use null. Do NOT guess.
- Combine a separate ABO group and Rh factor into one blood group.

OCR text:
"""
%s
"""`, ocrText)
}

// asString converts a decoded JSON scalar to a trimmed string; null and
// the literal "null" both map to "".
func asString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(val)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func cleanIDNumber(id string) string {
	// Remove whitespace and separators
	var result strings.Builder
	for _, r := range id {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

var leadingNumber = regexp.MustCompile(`\d{1,3}`)

// parseAge accepts 21, "21" or "21 Years"; out-of-range values map to 0.
func parseAge(v interface{}) int {
	var age int
	switch val := v.(type) {
	case float64:
		age = int(math.Round(val))
	case string:
		m := leadingNumber.FindString(val)
		if m == "" {
			return 0
		}
		age, _ = strconv.Atoi(m)
	default:
		return 0
	}
	if !services.ValidAge(age) {
		return 0
	}
	return age
}

func preview(s string) string {
	if len(s) <= rawPreviewLen {
		return s
	}
	return s[:rawPreviewLen] + "..."
}
