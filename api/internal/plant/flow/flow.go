// Package flow runs the plant AI flows: validate the input, bind the prompt, call the model with
// the output schema, check what came back and return a typed result or an *apperr.Error.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"plant-doctor/api/internal/apperr"
	"plant-doctor/api/internal/catalog"
	"plant-doctor/api/internal/llm"
	"plant-doctor/api/internal/logger"
	"plant-doctor/api/internal/metrics"
	"plant-doctor/api/internal/plant/prompt"
	"plant-doctor/api/internal/plant/schema"
	"plant-doctor/api/internal/store"
)

const DefaultTimeout = 60 * time.Second

const diagnoseFailed = "Diagnosis failed because the AI model could not process the request."

type Options struct {
	// Timeout bounds each model call; zero means DefaultTimeout, negative disables it.
	Timeout time.Duration
	// Cache is optional.
	Cache  store.Cache
	Logger *zap.Logger
}

// Flows is stateless per call and safe for concurrent use.
type Flows struct {
	engines *llm.Engines
	model   llm.Model
	binder  *prompt.Binder
	catalog *catalog.Catalog
	timeout time.Duration
	cache   store.Cache
	log     *zap.Logger
}

func New(engines *llm.Engines, binder *prompt.Binder, cat *catalog.Catalog, opts Options) *Flows {
	f := &Flows{
		engines: engines,
		model:   engines.Default(),
		binder:  binder,
		catalog: cat,
		timeout: opts.Timeout,
		cache:   opts.Cache,
		log:     opts.Logger,
	}
	if f.timeout == 0 {
		f.timeout = DefaultTimeout
	}
	if f.log == nil {
		f.log = zap.NewNop()
	}
	return f
}

// Using returns the same flows bound to the named engine; "" keeps the default one.
func (f *Flows) Using(name string) (*Flows, error) {
	m, err := f.engines.GetEngine(name)
	if err != nil {
		return nil, apperr.InvalidInput("unknown llmName", err.Error())
	}
	cp := *f
	cp.model = m
	return &cp, nil
}

// Engine is the model this instance calls.
func (f *Flows) Engine() llm.Model { return f.model }

func (f *Flows) Engines() *llm.Engines { return f.engines }

func (f *Flows) Catalog() *catalog.Catalog { return f.catalog }

// validateInput checks a request against its input schema and turns violations into INVALID_INPUT.
func validateInput(name string, in any) error {
	err := schema.ValidateGo(name, in)
	if err == nil {
		return nil
	}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return apperr.InvalidInput("request does not match "+name, ve.Problems...)
	}
	return err
}

type call struct {
	flow   string
	output string
	req    llm.Request
	key    string
}

// invoke calls the model and decodes a schema-valid answer into out.
func (f *Flows) invoke(ctx context.Context, c call, out any) (outcome string, err error) {
	log := logger.For(ctx, f.log).With(zap.String("flow", c.flow), zap.String("engine", f.model.Name()))

	if raw, ok := f.cacheGet(ctx, c, log); ok {
		if err := decode(c.output, raw, out); err == nil {
			return metrics.OutcomeCacheHit, nil
		}
		log.Warn("cached result no longer valid, calling model")
	}

	sch, err := schema.Load(c.output)
	if err != nil {
		return metrics.OutcomeInvocationError, err
	}
	c.req.Schema = sch

	cctx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	resp, err := f.model.Generate(cctx, c.req)
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrBlocked):
			return metrics.OutcomeInvalidOutput, apperr.ModelOutput("", err, "model blocked the response")
		case errors.Is(err, llm.ErrEmptyOutput):
			return metrics.OutcomeInvalidOutput, apperr.ModelOutput("", err, "model returned no output")
		}
		return metrics.OutcomeInvocationError, apperr.ModelInvocation(err)
	}

	if err := decode(c.output, resp.Text, out); err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			return metrics.OutcomeInvalidOutput, apperr.ModelOutput(resp.Text, err, ve.Problems...)
		}
		return metrics.OutcomeInvalidOutput, apperr.ModelOutput(resp.Text, err)
	}

	f.cachePut(ctx, c, resp, log)
	return metrics.OutcomeOK, nil
}

func decode(name, raw string, out any) error {
	if err := schema.ValidateJSON(name, []byte(raw)); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("bad JSON: %w", err)
	}
	return nil
}

func (f *Flows) cacheGet(ctx context.Context, c call, log *zap.Logger) (string, bool) {
	if f.cache == nil || c.key == "" {
		return "", false
	}
	raw, err := f.cache.Get(ctx, c.key)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues(c.flow, "hit").Inc()
		return raw, true
	case errors.Is(err, store.ErrMiss):
		metrics.CacheLookups.WithLabelValues(c.flow, "miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues(c.flow, "error").Inc()
		log.Warn("cache get failed", zap.Error(err))
	}
	return "", false
}

func (f *Flows) cachePut(ctx context.Context, c call, resp llm.Response, log *zap.Logger) {
	if f.cache == nil || c.key == "" {
		return
	}
	e := store.Entry{Flow: c.flow, Engine: f.model.Name(), Model: f.model.GetModel(), JSON: resp.Text}
	if err := f.cache.Put(ctx, c.key, e); err != nil {
		log.Warn("cache put failed", zap.Error(err))
	}
}

func (f *Flows) observe(flow string, start time.Time, outcome string) {
	metrics.ObserveFlow(flow, f.model.Name(), outcome, time.Since(start))
}
