package flow

import (
	"context"
	"strings"
	"time"

	"plant-doctor/api/internal/catalog"
	"plant-doctor/api/internal/metrics"
	"plant-doctor/api/internal/plant/prompt"
	"plant-doctor/api/internal/plant/schema"
	"plant-doctor/api/internal/plant/types"
	"plant-doctor/api/internal/store"
)

// SummarizeDisease asks the model for a concise summary of a disease.
func (f *Flows) SummarizeDisease(ctx context.Context, in types.DiseaseSummaryRequest) (types.DiseaseSummaryResult, error) {
	start := time.Now()
	outcome := metrics.OutcomeInvalidInput
	defer func() { f.observe(prompt.FlowSummary, start, outcome) }()

	if err := validateInput(schema.SummaryInput, in); err != nil {
		return types.DiseaseSummaryResult{}, err
	}
	req, err := f.binder.Summary(in)
	if err != nil {
		outcome = metrics.OutcomeInvocationError
		return types.DiseaseSummaryResult{}, err
	}

	var out types.DiseaseSummaryResult
	c := call{
		flow:   prompt.FlowSummary,
		output: schema.SummaryOutput,
		req:    req,
		key: store.Key(prompt.FlowSummary, f.model.Name(), f.model.GetModel(),
			[]byte(in.DiseaseName), []byte(in.PotentialCauses), []byte(in.RecommendedActions)),
	}
	outcome, err = f.invoke(ctx, c, &out)
	if err != nil {
		return types.DiseaseSummaryResult{}, err
	}
	return out, nil
}

// SummaryRequestFor builds the summary input for a catalog disease the way the detail page does:
// causes joined with ", ", organic treatments with "; ".
func SummaryRequestFor(d catalog.Disease) types.DiseaseSummaryRequest {
	return types.DiseaseSummaryRequest{
		DiseaseName:        d.Name,
		PotentialCauses:    strings.Join(d.Causes, ", "),
		RecommendedActions: strings.Join(d.Treatment.Organic, "; "),
	}
}

// DiagnosisSummary is a history record with its disease and a fresh model summary.
type DiagnosisSummary struct {
	Record  catalog.DiagnosisRecord    `json:"record"`
	Disease catalog.Disease            `json:"disease"`
	Summary types.DiseaseSummaryResult `json:"summary"`
}

// SummarizeDiagnosis looks up a history record and its disease and summarizes the disease.
func (f *Flows) SummarizeDiagnosis(ctx context.Context, recordID string) (DiagnosisSummary, error) {
	rec, err := f.catalog.DiagnosisByID(recordID)
	if err != nil {
		return DiagnosisSummary{}, err
	}
	d, err := f.catalog.DiseaseByID(rec.DiseaseID)
	if err != nil {
		return DiagnosisSummary{}, err
	}
	s, err := f.SummarizeDisease(ctx, SummaryRequestFor(d))
	if err != nil {
		return DiagnosisSummary{}, err
	}
	return DiagnosisSummary{Record: rec, Disease: d, Summary: s}, nil
}

// SummarizeDiseaseBySlug summarizes a catalog disease.
func (f *Flows) SummarizeDiseaseBySlug(ctx context.Context, slug string) (catalog.Disease, types.DiseaseSummaryResult, error) {
	d, err := f.catalog.DiseaseBySlug(slug)
	if err != nil {
		return catalog.Disease{}, types.DiseaseSummaryResult{}, err
	}
	s, err := f.SummarizeDisease(ctx, SummaryRequestFor(d))
	return d, s, err
}
