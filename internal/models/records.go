package models

import "time"

// Method identifies which waterfall stage produced a record.
type Method string

const (
	MethodRemoteOCR Method = "remote OCR"
	MethodAI        Method = "AI"
	MethodLocalOCR  Method = "local OCR"
)

// Confidence is the coarse confidence reported with every record.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// DocumentType names the two supported documents.
type DocumentType string

const (
	DocumentIdentity DocumentType = "identity"
	DocumentReport   DocumentType = "report"
)

// OCRSource tells where an OCRResult came from.
type OCRSource string

const (
	SourceLocal  OCRSource = "local"
	SourceRemote OCRSource = "remote"
)

// OCRResult is the raw text recognized from one document.
type OCRResult struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"` // 0-100
	Source     OCRSource `json:"source"`
	Provider   string    `json:"provider,omitempty"`
}

// IdentityRecord holds the fields extracted from an Aadhaar card.
// Empty strings and a zero age mean the field was not found.
type IdentityRecord struct {
	IDNumber    string `json:"aadhaarNumber,omitempty"` // exactly 12 digits, no separators
	Name        string `json:"name,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"` // as printed, DD/MM/YYYY
	Gender      string `json:"gender,omitempty"`      // "Male" or "Female"
	Age         int    `json:"age,omitempty"`

	Method     Method     `json:"method"`
	Confidence Confidence `json:"confidence"`
}

// Complete reports whether the record carries a well-formed identity number.
func (r IdentityRecord) Complete() bool {
	return IsIdentityNumber(r.IDNumber)
}

// ReportRecord holds the fields extracted from a blood-group lab report.
type ReportRecord struct {
	BloodGroup  string `json:"bloodGroup,omitempty"`
	PatientName string `json:"patientName,omitempty"`
	PatientAge  int    `json:"age,omitempty"`
	Gender      string `json:"gender,omitempty"`
	TestDate    string `json:"testDate,omitempty"`

	Method     Method     `json:"method"`
	Confidence Confidence `json:"confidence"`
}

// Complete reports whether the record carries a canonical blood group.
func (r ReportRecord) Complete() bool {
	return IsBloodGroup(r.BloodGroup)
}

// BloodGroups lists the eight canonical ABO/Rh groups.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "O+", "O-", "AB+", "AB-"}

// IsBloodGroup reports whether s is exactly one of BloodGroups.
func IsBloodGroup(s string) bool {
	for _, g := range BloodGroups {
		if s == g {
			return true
		}
	}
	return false
}

// IsIdentityNumber reports whether s is exactly twelve ASCII digits.
func IsIdentityNumber(s string) bool {
	if len(s) != 12 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidationWarning describes one inconsistency between two documents.
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of cross-checking an identity record
// against a report record.
type ValidationResult struct {
	IsValid  bool                `json:"isValid"`
	Warnings []ValidationWarning `json:"warnings"`
}

// StageAttempt records one stage of an extraction for diagnostics.
type StageAttempt struct {
	Stage    Method        `json:"stage"`
	Backend  string        `json:"backend,omitempty"`
	Accepted bool          `json:"accepted"`
	Duration time.Duration `json:"durationNs"`
	Error    string        `json:"error,omitempty"`
}

// ExtractionTrace is the per-request diagnostic record. It never carries
// extracted field values.
type ExtractionTrace struct {
	RequestID    string         `json:"requestId"`
	DocumentType DocumentType   `json:"documentType"`
	SourceName   string         `json:"sourceName"`
	StartedAt    time.Time      `json:"startedAt"`
	Duration     time.Duration  `json:"durationNs"`
	Attempts     []StageAttempt `json:"attempts"`
	Outcome      string         `json:"outcome"` // "success" or a failure reason
	Method       Method         `json:"method,omitempty"`
}
