package flow

import (
	"context"
	"errors"
	"time"

	"plant-doctor/api/internal/apperr"
	"plant-doctor/api/internal/metrics"
	"plant-doctor/api/internal/plant/prompt"
	"plant-doctor/api/internal/plant/schema"
	"plant-doctor/api/internal/plant/types"
	"plant-doctor/api/internal/store"
	"plant-doctor/api/internal/util"
)

// Diagnose identifies the plant on the photo and assesses its health.
func (f *Flows) Diagnose(ctx context.Context, in types.DiagnosisRequest) (types.DiagnosisResult, error) {
	start := time.Now()
	outcome := metrics.OutcomeInvalidInput
	defer func() { f.observe(prompt.FlowDiagnose, start, outcome) }()

	if err := validateInput(schema.DiagnoseInput, in); err != nil {
		return types.DiagnosisResult{}, err
	}
	photo, mime, err := util.DecodeImageDataURL(in.PhotoDataURI)
	if err != nil {
		return types.DiagnosisResult{}, apperr.InvalidInput("photoDataUri must be a base64 image data URI", err.Error())
	}

	req, err := f.binder.Diagnose(in, photo, mime)
	if err != nil {
		outcome = metrics.OutcomeInvocationError
		return types.DiagnosisResult{}, err
	}

	var out types.DiagnosisResult
	c := call{
		flow:   prompt.FlowDiagnose,
		output: schema.DiagnoseOutput,
		req:    req,
		key:    store.Key(prompt.FlowDiagnose, f.model.Name(), f.model.GetModel(), []byte(mime), photo, []byte(in.Description)),
	}
	outcome, err = f.invoke(ctx, c, &out)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Code == apperr.CodeModelOutput {
			ae.Message = diagnoseFailed
		}
		return types.DiagnosisResult{}, err
	}
	return out, nil
}
