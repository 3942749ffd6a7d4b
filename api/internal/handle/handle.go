package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"plant-doctor/api/internal/apperr"
	"plant-doctor/api/internal/logger"
	"plant-doctor/api/internal/plant/flow"
	"plant-doctor/api/internal/plant/prompt"
	"plant-doctor/api/internal/plant/schema"
)

const (
	defaultDeadline = 180 * time.Second
	maxBodyBytes    = 16 << 20
)

type Handle struct {
	flows     *flow.Flows
	binder    *prompt.Binder
	promptDir string
	log       *zap.Logger
}

func New(flows *flow.Flows, binder *prompt.Binder, promptDir string, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{flows: flows, binder: binder, promptDir: promptDir, log: log}
}

// Routes registers every endpoint on mux.
func (h *Handle) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/plant/diagnose", h.Diagnose)
	mux.HandleFunc("POST /v1/plant/summary", h.Summary)
	mux.HandleFunc("GET /v1/plant/summary/{slug}", h.DiseaseSummary)

	mux.HandleFunc("GET /v1/diseases", h.Diseases)
	mux.HandleFunc("GET /v1/diseases/{slug}", h.DiseaseBySlug)
	mux.HandleFunc("GET /v1/diseases/id/{id}", h.DiseaseByID)

	mux.HandleFunc("GET /v1/history", h.History)
	mux.HandleFunc("GET /v1/history/{id}", h.Diagnosis)
	mux.HandleFunc("GET /v1/history/{id}/summary", h.DiagnosisSummary)

	mux.HandleFunc("GET /v1/prompts", h.Prompts)
	mux.HandleFunc("PUT /v1/prompts/{name}", h.UpdatePrompt)
}

type errorBody struct {
	Error     string      `json:"error"`
	Code      apperr.Code `json:"code,omitempty"`
	Retryable bool        `json:"retryable"`
	Details   []string    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps flow errors to HTTP: 400 bad input, 404 unknown id/slug, 502 model failure,
// 504 deadline.
func statusOf(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrModelInvocation), errors.Is(err, apperr.ErrModelOutput):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handle) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	body := errorBody{Error: "internal error"}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body = errorBody{Error: ae.Message, Code: ae.Code, Retryable: ae.Retryable, Details: ae.Details}
	}
	if code == http.StatusGatewayTimeout {
		body.Error = "model call exceeded the request deadline"
	}

	fields := []zap.Field{
		zap.String("request_id", logger.RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", code),
		zap.Error(err),
	}
	if ae != nil && ae.Raw != "" {
		fields = append(fields, zap.Int("raw_bytes", len(ae.Raw)))
	}
	if code >= 500 {
		h.log.Error("request failed", fields...)
	} else {
		h.log.Info("request rejected", fields...)
	}
	writeJSON(w, code, body)
}

// requestContext applies the per-request deadline: X-Request-Timeout header or timeoutSec query,
// in seconds, defaulting to 180.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := defaultDeadline
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}

// readValidated reads the body, checks it against the input schema and decodes it into v.
func readValidated(r *http.Request, schemaName string, v any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperr.InvalidInput("cannot read body", err.Error())
	}
	if len(raw) > maxBodyBytes {
		return apperr.InvalidInput(fmt.Sprintf("body larger than %d bytes", maxBodyBytes))
	}
	if err := schema.ValidateJSON(schemaName, raw); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			return apperr.InvalidInput("bad json", ve.Problems...)
		}
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.InvalidInput("bad json", err.Error())
	}
	return nil
}

// flowsFor picks the engine named by llmName (body field or query parameter).
func (h *Handle) flowsFor(llmName string) (*flow.Flows, error) {
	if llmName == "" {
		return h.flows, nil
	}
	return h.flows.Using(llmName)
}
