package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"plant-doctor/api/internal/app"
	"plant-doctor/api/internal/config"
	"plant-doctor/api/internal/httpserver"
	"plant-doctor/api/internal/logger"
	"plant-doctor/api/internal/telegram"
)

func main() {
	cfg := config.MustLoad()
	if cfg.TelegramBotToken == "" {
		log.Fatal("missing required env TELEGRAM_BOT_TOKEN")
	}

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
	defer func() { _ = a.Close() }()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		lg.Fatal("telegram", zap.Error(err))
	}
	bot.Debug = false
	lg.Info("authorized", zap.String("bot", bot.Self.UserName))

	r := telegram.NewRouter(bot, a.Flows, lg.Named("telegram"))

	mux := http.NewServeMux()
	httpserver.Mount(mux, "ok", a.Health)
	srv := httpserver.New(":"+cfg.Port, mux, lg)

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(ctx, srv, mux, bot, r, webhookURL, lg)
	} else {
		startPollingMode(ctx, srv, bot, r, lg)
	}
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, srv *http.Server, mux *http.ServeMux, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string, lg *zap.Logger) {
	// secret webhook path
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		lg.Fatal("webhook", zap.Error(err))
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		lg.Fatal("set webhook", zap.Error(err))
	}

	mux.HandleFunc("POST "+path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			lg.Warn("bad webhook update", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		// answer Telegram right away; diagnosis can take a while
		go r.HandleUpdate(ctx, *upd)
	})

	lg.Info("webhook mode", zap.String("path", path))
	if err := httpserver.Run(ctx, srv, lg); err != nil {
		lg.Error("server stopped", zap.Error(err))
	}
}

func startPollingMode(ctx context.Context, srv *http.Server, bot *tgbotapi.BotAPI, r *telegram.Router, lg *zap.Logger) {
	// delete a webhook left from an earlier deployment, otherwise getUpdates fails
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		lg.Warn("delete webhook", zap.Error(err))
	}

	// the HTTP server only serves /healthz and /metrics here
	go func() {
		if err := httpserver.Run(ctx, srv, lg); err != nil {
			lg.Error("server stopped", zap.Error(err))
		}
	}()

	lg.Info("polling mode")
	runPolling(ctx, bot, lg, func(upd tgbotapi.Update) {
		r.HandleUpdate(ctx, upd)
	})
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return 2 * time.Second
		}
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, lg *zap.Logger, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		if ctx.Err() != nil {
			lg.Info("polling: context cancelled")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			lg.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// FNV-1a, stable for a given token; not a secret by itself
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
