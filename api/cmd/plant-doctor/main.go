package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"plant-doctor/api/internal/app"
	"plant-doctor/api/internal/config"
	"plant-doctor/api/internal/handle"
	"plant-doctor/api/internal/httpserver"
	"plant-doctor/api/internal/logger"
)

func main() {
	cfg := config.MustLoad()

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("startup failed", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Warn("close", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	httpserver.Mount(mux, "ok", a.Health)
	handle.New(a.Flows, a.Binder, cfg.PromptDir, lg).Routes(mux)

	srv := httpserver.New(":"+cfg.Port, mux, lg)
	if err := httpserver.Run(ctx, srv, lg); err != nil {
		lg.Error("server stopped", zap.Error(err))
	}
}
