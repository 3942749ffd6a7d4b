package handle

import (
	"net/http"

	"plant-doctor/api/internal/plant/schema"
	"plant-doctor/api/internal/plant/types"
)

type DiagnoseRequest struct {
	LLMName string `json:"llmName,omitempty"`
	types.DiagnosisRequest
}

type SummaryRequest struct {
	LLMName string `json:"llmName,omitempty"`
	types.DiseaseSummaryRequest
}

func (h *Handle) Diagnose(w http.ResponseWriter, r *http.Request) {
	var req DiagnoseRequest
	if err := readValidated(r, schema.DiagnoseInput, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := h.flowsFor(req.LLMName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	out, err := f.Diagnose(ctx, req.DiagnosisRequest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handle) Summary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := readValidated(r, schema.SummaryInput, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := h.flowsFor(req.LLMName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	out, err := f.SummarizeDisease(ctx, req.DiseaseSummaryRequest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
