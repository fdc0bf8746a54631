package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
	"github.com/bloodbridge/donor-extraction-service/internal/ocr"
	"github.com/bloodbridge/donor-extraction-service/internal/rescue"
	"github.com/bloodbridge/donor-extraction-service/internal/services"
)

var (
	errBelowThreshold = errors.New("remote OCR confidence below threshold")
	errNoLocalEngine  = errors.New("local OCR engine not configured")
)

// identityStages returns the enabled stages for an identity card in
// waterfall order.
func (o *Orchestrator) identityStages() []stage[models.IdentityRecord] {
	var stages []stage[models.IdentityRecord]
	if o.remote != nil {
		stages = append(stages, stage[models.IdentityRecord]{models.MethodRemoteOCR, o.remoteIdentity})
	}
	if o.ai != nil {
		stages = append(stages, stage[models.IdentityRecord]{models.MethodAI, o.aiIdentity})
	}
	return append(stages, stage[models.IdentityRecord]{models.MethodLocalOCR, o.localIdentity})
}

func (o *Orchestrator) reportStages() []stage[models.ReportRecord] {
	var stages []stage[models.ReportRecord]
	if o.remote != nil {
		stages = append(stages, stage[models.ReportRecord]{models.MethodRemoteOCR, o.remoteReport})
	}
	if o.ai != nil {
		stages = append(stages, stage[models.ReportRecord]{models.MethodAI, o.aiReport})
	}
	return append(stages, stage[models.ReportRecord]{models.MethodLocalOCR, o.localReport})
}

func (o *Orchestrator) remoteIdentity(ctx context.Context, req *request[models.IdentityRecord]) (stageResult[models.IdentityRecord], error) {
	res := stageResult[models.IdentityRecord]{backend: o.remote.Name()}
	text, err := remoteText(ctx, o, req, ocr.RemoteOptions{DetectOrientation: true})
	if err != nil {
		return res, err
	}
	rec := rescue.Identity(text, models.IdentityRecord{}, o.now())
	rec.Method = models.MethodRemoteOCR
	req.partial = rec
	res.record, res.ok = rec, rec.Complete() && rec.Name != ""
	return res, nil
}

func (o *Orchestrator) remoteReport(ctx context.Context, req *request[models.ReportRecord]) (stageResult[models.ReportRecord], error) {
	res := stageResult[models.ReportRecord]{backend: o.remote.Name()}
	text, err := remoteText(ctx, o, req, ocr.RemoteOptions{DetectOrientation: true, IsTable: true})
	if err != nil {
		return res, err
	}
	rec := rescue.Report(text, models.ReportRecord{})
	rec.Method = models.MethodRemoteOCR
	req.partial = rec
	res.record, res.ok = rec, rec.Complete()
	return res, nil
}

func (o *Orchestrator) aiIdentity(ctx context.Context, req *request[models.IdentityRecord]) (stageResult[models.IdentityRecord], error) {
	res := stageResult[models.IdentityRecord]{backend: o.ai.ProviderName()}
	text, err := bestText(ctx, o, req)
	if err != nil {
		return res, fmt.Errorf("no text to parse: %w", err)
	}
	rec, err := o.ai.ParseIdentity(ctx, text)
	if err != nil {
		return res, err
	}
	if rec.Name != "" && !services.IsPlausibleName(rec.Name) {
		o.logger.Debug("implausible name rejected", "request_id", req.id, "stage", models.MethodAI)
		rec.Name = ""
	}
	rec.Method = models.MethodAI
	if !rec.Complete() || rec.Name == "" {
		req.partial = mergeIdentity(rec, req.partial)
		res.record = rec
		return res, nil
	}
	// Accepted on the model's own output; rescue only fills the rest.
	res.record = rescue.Identity(text, rec, o.now())
	res.ok = true
	return res, nil
}

func (o *Orchestrator) aiReport(ctx context.Context, req *request[models.ReportRecord]) (stageResult[models.ReportRecord], error) {
	res := stageResult[models.ReportRecord]{backend: o.ai.ProviderName()}
	text, err := bestText(ctx, o, req)
	if err != nil {
		return res, fmt.Errorf("no text to parse: %w", err)
	}
	rec, err := o.ai.ParseReport(ctx, text)
	if err != nil {
		return res, err
	}
	if rec.PatientName != "" && !services.IsPlausibleName(rec.PatientName) {
		o.logger.Debug("implausible name rejected", "request_id", req.id, "stage", models.MethodAI)
		rec.PatientName = ""
	}
	rec.Method = models.MethodAI
	if !rec.Complete() {
		req.partial = mergeReport(rec, req.partial)
		res.record = rec
		return res, nil
	}
	res.record = rescue.Report(text, rec)
	res.ok = true
	return res, nil
}

func (o *Orchestrator) localIdentity(ctx context.Context, req *request[models.IdentityRecord]) (stageResult[models.IdentityRecord], error) {
	text, method, backend, err := fallbackText(ctx, o, req)
	res := stageResult[models.IdentityRecord]{backend: backend}
	if err != nil {
		return res, err
	}
	rec := rescue.Identity(text, req.partial, o.now())
	rec.Method = method
	res.record, res.ok = rec, rec.Complete()
	return res, nil
}

func (o *Orchestrator) localReport(ctx context.Context, req *request[models.ReportRecord]) (stageResult[models.ReportRecord], error) {
	text, method, backend, err := fallbackText(ctx, o, req)
	res := stageResult[models.ReportRecord]{backend: backend}
	if err != nil {
		return res, err
	}
	rec := rescue.Report(text, req.partial)
	rec.Method = method
	res.record, res.ok = rec, rec.Complete()
	return res, nil
}

// remoteText calls the remote recognizer. Text at or below the confidence
// threshold counts as seen but is not kept for later stages.
func remoteText[R any](ctx context.Context, o *Orchestrator, req *request[R], opts ocr.RemoteOptions) (string, error) {
	res, err := o.remote.Recognize(ctx, req.path, opts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.Text) != "" {
		req.sawText = true
	}
	if res.Confidence <= o.threshold {
		return "", fmt.Errorf("%w: %.0f <= %.0f", errBelowThreshold, res.Confidence, o.threshold)
	}
	req.remoteText = res.Text
	req.remoteBackend = o.remote.Name()
	return res.Text, nil
}

// localText runs the local engine at most once per request.
func localText[R any](ctx context.Context, o *Orchestrator, req *request[R]) (string, error) {
	if !req.localDone {
		req.localDone = true
		if o.local == nil {
			req.localErr = errNoLocalEngine
		} else {
			res, err := o.local.Recognize(ctx, req.path)
			if err != nil {
				req.localErr = err
			} else {
				req.localText = res.Text
				req.sawText = req.sawText || strings.TrimSpace(res.Text) != ""
			}
		}
	}
	return req.localText, req.localErr
}

// bestText prefers accepted remote text and otherwise reads the document
// locally.
func bestText[R any](ctx context.Context, o *Orchestrator, req *request[R]) (string, error) {
	if req.remoteText != "" {
		return req.remoteText, nil
	}
	return localText(ctx, o, req)
}

// fallbackText returns the local text, or the accepted remote text when
// the local engine fails. The method reports which one was used.
func fallbackText[R any](ctx context.Context, o *Orchestrator, req *request[R]) (string, models.Method, string, error) {
	backend := "tesseract"
	if o.local != nil {
		backend = o.local.Name()
	}
	text, err := localText(ctx, o, req)
	if err == nil {
		return text, models.MethodLocalOCR, backend, nil
	}
	if req.remoteText != "" {
		o.logger.Info("local OCR failed, reusing remote text", "request_id", req.id, "error", err)
		return req.remoteText, models.MethodRemoteOCR, req.remoteBackend, nil
	}
	return "", models.MethodLocalOCR, backend, err
}

// mergeIdentity fills the empty fields of a from b.
func mergeIdentity(a, b models.IdentityRecord) models.IdentityRecord {
	if !a.Complete() {
		a.IDNumber = b.IDNumber
	}
	if a.Name == "" {
		a.Name = b.Name
	}
	if a.DateOfBirth == "" {
		a.DateOfBirth = b.DateOfBirth
	}
	if a.Gender == "" {
		a.Gender = b.Gender
	}
	if a.Age == 0 {
		a.Age = b.Age
	}
	return a
}

func mergeReport(a, b models.ReportRecord) models.ReportRecord {
	if !a.Complete() {
		a.BloodGroup = b.BloodGroup
	}
	if a.PatientName == "" {
		a.PatientName = b.PatientName
	}
	if a.PatientAge == 0 {
		a.PatientAge = b.PatientAge
	}
	if a.Gender == "" {
		a.Gender = b.Gender
	}
	if a.TestDate == "" {
		a.TestDate = b.TestDate
	}
	return a
}
