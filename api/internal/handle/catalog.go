package handle

import (
	"net/http"

	"plant-doctor/api/internal/catalog"
	"plant-doctor/api/internal/plant/types"
)

func (h *Handle) Diseases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.flows.Catalog().Diseases())
}

func (h *Handle) DiseaseBySlug(w http.ResponseWriter, r *http.Request) {
	d, err := h.flows.Catalog().DiseaseBySlug(r.PathValue("slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handle) DiseaseByID(w http.ResponseWriter, r *http.Request) {
	d, err := h.flows.Catalog().DiseaseByID(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type DiseaseSummaryResponse struct {
	Disease catalog.Disease            `json:"disease"`
	Summary types.DiseaseSummaryResult `json:"summary"`
}

func (h *Handle) DiseaseSummary(w http.ResponseWriter, r *http.Request) {
	f, err := h.flowsFor(r.URL.Query().Get("llmName"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	d, s, err := f.SummarizeDiseaseBySlug(ctx, r.PathValue("slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DiseaseSummaryResponse{Disease: d, Summary: s})
}

func (h *Handle) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.flows.Catalog().History())
}

func (h *Handle) Diagnosis(w http.ResponseWriter, r *http.Request) {
	rec, err := h.flows.Catalog().DiagnosisByID(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handle) DiagnosisSummary(w http.ResponseWriter, r *http.Request) {
	f, err := h.flowsFor(r.URL.Query().Get("llmName"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	out, err := f.SummarizeDiagnosis(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
