package services

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

// Warning codes
const (
	CodeNameMismatch   = "name_mismatch"
	CodeGenderMismatch = "gender_mismatch"
)

// CrossValidator compares an identity record with a blood report.
// It is not safe for concurrent use; CrossValidate builds one per call.
type CrossValidator struct {
	fold cases.Caser
}

// NewCrossValidator creates a new cross-document validator
func NewCrossValidator() *CrossValidator {
	return &CrossValidator{fold: cases.Fold()}
}

// CrossValidate is a convenience wrapper around a fresh CrossValidator.
func CrossValidate(identity models.IdentityRecord, report models.ReportRecord) models.ValidationResult {
	return NewCrossValidator().Validate(identity, report)
}

// Validate checks name and gender consistency between the two documents.
// Fields missing on either side are not compared.
func (v *CrossValidator) Validate(identity models.IdentityRecord, report models.ReportRecord) models.ValidationResult {
	result := models.ValidationResult{Warnings: []models.ValidationWarning{}}

	v.validateName(identity.Name, report.PatientName, &result)
	v.validateGender(identity.Gender, report.Gender, &result)

	result.IsValid = len(result.Warnings) == 0
	return result
}

func (v *CrossValidator) validateName(idName, reportName string, result *models.ValidationResult) {
	a := v.normalize(idName)
	b := v.normalize(reportName)
	if a == "" || b == "" {
		return
	}

	if strings.Contains(a, firstToken(b)) || strings.Contains(b, firstToken(a)) {
		return
	}

	result.Warnings = append(result.Warnings, models.ValidationWarning{
		Field:   "name",
		Code:    CodeNameMismatch,
		Message: "Names do not match between Aadhaar and blood report",
	})
}

func (v *CrossValidator) validateGender(idGender, reportGender string, result *models.ValidationResult) {
	a := v.normalize(idGender)
	b := v.normalize(reportGender)
	if a == "" || b == "" || a == b {
		return
	}

	result.Warnings = append(result.Warnings, models.ValidationWarning{
		Field:   "gender",
		Code:    CodeGenderMismatch,
		Message: "Gender mismatch between documents",
	})
}

func (v *CrossValidator) normalize(s string) string {
	return strings.Join(strings.Fields(v.fold.String(s)), " ")
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}
