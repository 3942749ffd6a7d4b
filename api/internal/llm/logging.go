package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"plant-doctor/api/internal/logger"
)

type loggingModel struct {
	next Model
	log  *zap.Logger
}

// WithLogging logs every Generate call: flow, engine, model, latency and output size.
func WithLogging(m Model, log *zap.Logger) Model {
	return &loggingModel{next: m, log: log.Named("llm")}
}

func (l *loggingModel) Name() string     { return l.next.Name() }
func (l *loggingModel) GetModel() string { return l.next.GetModel() }

func (l *loggingModel) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	log := logger.For(ctx, l.log)
	fields := []zap.Field{
		zap.String("flow", req.Flow),
		zap.String("engine", l.next.Name()),
		zap.String("model", l.next.GetModel()),
		zap.Int("parts", len(req.Parts)),
	}
	log.Debug("generate start", fields...)

	resp, err := l.next.Generate(ctx, req)
	fields = append(fields, zap.Duration("latency", time.Since(start)))
	if err != nil {
		log.Warn("generate failed", append(fields, zap.Error(err))...)
		return resp, err
	}
	log.Info("generate done", append(fields, zap.Int("output_bytes", len(resp.Text)))...)
	return resp, nil
}
