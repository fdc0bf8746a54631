package extraction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

// Reason classifies a terminal extraction failure.
type Reason string

const (
	// ReasonNoText means no stage recognized any text at all.
	ReasonNoText Reason = "no_text_found"
	// ReasonFieldsMissing means text was recognized but the required
	// field could not be extracted from it.
	ReasonFieldsMissing Reason = "fields_missing"
	// ReasonCanceled means the request context ended the waterfall.
	ReasonCanceled Reason = "canceled"
)

const (
	identityHint = "Please ensure the image is clear and contains valid Aadhaar information."
	reportHint   = "Please ensure the document is clear, contains valid blood group information, and is in a supported format."
)

// ExtractionFailure is the only error returned by the orchestrator. Stage
// errors are kept in Causes for diagnostics.
type ExtractionFailure struct {
	Document models.DocumentType
	Missing  string // human name of the required field
	Reason   Reason
	Hint     string
	Causes   []error
}

func (e *ExtractionFailure) Error() string {
	var b strings.Builder
	switch e.Reason {
	case ReasonCanceled:
		fmt.Fprintf(&b, "%s extraction canceled", e.Document)
	case ReasonNoText:
		fmt.Fprintf(&b, "Could not extract %s: no text found in document.", e.Missing)
	default:
		fmt.Fprintf(&b, "Could not extract %s.", e.Missing)
	}
	if e.Hint != "" {
		b.WriteByte(' ')
		b.WriteString(e.Hint)
	}
	return b.String()
}

// Unwrap exposes the stage errors to errors.Is and errors.As.
func (e *ExtractionFailure) Unwrap() []error { return e.Causes }

// IsNoText reports whether err is a failure where nothing was recognized.
func IsNoText(err error) bool {
	var f *ExtractionFailure
	return errors.As(err, &f) && f.Reason == ReasonNoText
}

func newFailure(doc models.DocumentType, reason Reason, causes []error) *ExtractionFailure {
	f := &ExtractionFailure{Document: doc, Reason: reason, Causes: causes}
	switch doc {
	case models.DocumentIdentity:
		f.Missing, f.Hint = "Aadhaar number", identityHint
	case models.DocumentReport:
		f.Missing, f.Hint = "blood group", reportHint
	}
	if reason == ReasonCanceled {
		f.Hint = ""
	}
	return f
}
